package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/daybreak-labs/triggerd/internal/domain"
	"github.com/daybreak-labs/triggerd/internal/registry"
	"github.com/daybreak-labs/triggerd/internal/testutil"
	"github.com/daybreak-labs/triggerd/internal/webhook"
)

type nullStore struct{}

func (nullStore) SaveWebhooks([]domain.WebhookDefinition) error     { return nil }
func (nullStore) LoadWebhooks() ([]domain.WebhookDefinition, error) { return nil, nil }
func (nullStore) SaveSchedules([]domain.ScheduledEvent) error       { return nil }
func (nullStore) LoadSchedules() ([]domain.ScheduledEvent, error)   { return nil, nil }

type mockDispatcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *mockDispatcher) Dispatch(ctx context.Context, assignee string, action domain.Action, contextText string, event domain.TriggerEvent) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	return "task-1", nil
}

type fixture struct {
	registry   *registry.Registry
	dispatcher *mockDispatcher
	clock      *testutil.FakeClock
	handler    *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	reg, err := registry.New(nullStore{})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	reg.WithClock(clock.Now)

	disp := &mockDispatcher{}
	pipeline := webhook.NewPipeline(reg, disp).WithClock(clock.Now)

	return &fixture{
		registry:   reg,
		dispatcher: disp,
		clock:      clock,
		handler:    NewHandler(reg, pipeline),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResp[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResp[HealthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestCreateWebhook(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/webhooks", CreateWebhookRequest{
		Name:     "deploy hook",
		Assignee: "agent",
		Action:   &ActionRequest{Kind: "create_task", Priority: "high"},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	resp := decodeResp[WebhookResponse](t, rec)
	if resp.ID == "" {
		t.Error("expected assigned ID")
	}
	if !resp.Enabled {
		t.Error("expected webhook enabled on create")
	}
	if len(resp.Secret) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(resp.Secret))
	}
	if resp.Action.Kind != "create_task" || resp.Action.Priority != "high" {
		t.Errorf("action round-trip mismatch: %+v", resp.Action)
	}
}

func TestCreateWebhookValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  CreateWebhookRequest
	}{
		{"missing_name", CreateWebhookRequest{Action: &ActionRequest{Kind: "notify"}}},
		{"missing_action", CreateWebhookRequest{Name: "x"}},
		{"unknown_action_kind", CreateWebhookRequest{Name: "x", Action: &ActionRequest{Kind: "launch_missiles"}}},
		{"workflow_without_template", CreateWebhookRequest{Name: "x", Action: &ActionRequest{Kind: "create_workflow"}}},
		{"broken_condition", CreateWebhookRequest{Name: "x", Action: &ActionRequest{Kind: "notify"}, Condition: "payload.x =="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/webhooks", tt.req, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestWebhookLifecycle(t *testing.T) {
	f := newFixture(t)
	created := decodeResp[WebhookResponse](t, f.do(t, http.MethodPost, "/v1/webhooks", CreateWebhookRequest{
		Name:   "hook",
		Action: &ActionRequest{Kind: "notify"},
	}, nil))

	rec := f.do(t, http.MethodGet, "/v1/webhooks/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/webhooks", nil, nil)
	list := decodeResp[ListWebhooksResponse](t, rec)
	if len(list.Webhooks) != 1 {
		t.Fatalf("list length = %d, want 1", len(list.Webhooks))
	}

	rec = f.do(t, http.MethodPost, "/v1/webhooks/"+created.ID+"/toggle", ToggleRequest{Enabled: false}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, want 200", rec.Code)
	}
	if decodeResp[WebhookResponse](t, rec).Enabled {
		t.Error("expected webhook disabled after toggle")
	}

	rec = f.do(t, http.MethodDelete, "/v1/webhooks/"+created.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/v1/webhooks/"+created.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateSchedule(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/schedules", CreateScheduleRequest{
		Name:       "standup",
		Assignee:   "agent",
		Recurrence: &RecurrenceRequest{Kind: "weekly", Weekday: "Monday", Hour: 9, Minute: 30},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	resp := decodeResp[ScheduleResponse](t, rec)
	if resp.NextFire == "" {
		t.Error("expected next_fire populated on create")
	}
	if resp.Recurrence.Kind != "weekly" || resp.Recurrence.Weekday != "monday" {
		t.Errorf("recurrence round-trip mismatch: %+v", resp.Recurrence)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  CreateScheduleRequest
	}{
		{"missing_recurrence", CreateScheduleRequest{Name: "x"}},
		{"unknown_kind", CreateScheduleRequest{Name: "x", Recurrence: &RecurrenceRequest{Kind: "lunar"}}},
		{"zero_interval", CreateScheduleRequest{Name: "x", Recurrence: &RecurrenceRequest{Kind: "interval"}}},
		{"bad_hour", CreateScheduleRequest{Name: "x", Recurrence: &RecurrenceRequest{Kind: "daily", Hour: 24}}},
		{"bad_weekday", CreateScheduleRequest{Name: "x", Recurrence: &RecurrenceRequest{Kind: "weekly", Weekday: "someday"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/schedules", tt.req, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func deliveryHeaders(secret string, body []byte, at time.Time) map[string]string {
	return map[string]string{
		webhook.HeaderHubSignature: webhook.ComputeSignature(secret, body),
		webhook.HeaderTimestamp:    strconv.FormatInt(at.Unix(), 10),
	}
}

func TestDeliveryAccepted(t *testing.T) {
	f := newFixture(t)
	hook, err := f.registry.CreateWebhook(registry.CreateWebhookParams{
		Name:   "hook",
		Action: domain.CreateTask{},
	})
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}

	body := []byte(`{"branch":"main"}`)
	rec := f.do(t, http.MethodPost, "/v1/webhooks/"+hook.ID, body, deliveryHeaders(hook.Secret, body, f.clock.Now()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	resp := decodeResp[DeliveryResponse](t, rec)
	if !resp.Accepted {
		t.Fatalf("expected accepted, reason=%q", resp.Reason)
	}
	if resp.Ref != "task-1" {
		t.Errorf("ref = %q, want task-1", resp.Ref)
	}
	if f.dispatcher.calls != 1 {
		t.Errorf("dispatch calls = %d, want 1", f.dispatcher.calls)
	}
}

func TestDeliveryStatusMapping(t *testing.T) {
	f := newFixture(t)
	hook, err := f.registry.CreateWebhook(registry.CreateWebhookParams{
		Name:   "hook",
		Action: domain.CreateTask{},
	})
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}
	disabled, err := f.registry.CreateWebhook(registry.CreateWebhookParams{
		Name:   "disabled hook",
		Action: domain.CreateTask{},
	})
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}
	if _, err := f.registry.ToggleWebhook(disabled.ID, false); err != nil {
		t.Fatalf("ToggleWebhook: %v", err)
	}

	body := []byte(`{"x":1}`)
	now := f.clock.Now()

	tests := []struct {
		name    string
		id      string
		headers map[string]string
		want    int
	}{
		{"unknown_webhook", "wh_nope", deliveryHeaders("s", body, now), http.StatusNotFound},
		{"disabled_webhook", disabled.ID, deliveryHeaders(disabled.Secret, body, now), http.StatusForbidden},
		{"missing_signature", hook.ID, map[string]string{webhook.HeaderTimestamp: strconv.FormatInt(now.Unix(), 10)}, http.StatusUnauthorized},
		{"wrong_signature", hook.ID, deliveryHeaders("wrong secret", body, now), http.StatusUnauthorized},
		{"stale_timestamp", hook.ID, deliveryHeaders(hook.Secret, body, now.Add(-301*time.Second)), http.StatusBadRequest},
		{"missing_timestamp", hook.ID, map[string]string{webhook.HeaderHubSignature: webhook.ComputeSignature(hook.Secret, body)}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/webhooks/"+tt.id, body, tt.headers)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestDeliveryDuplicateConflict(t *testing.T) {
	f := newFixture(t)
	hook, err := f.registry.CreateWebhook(registry.CreateWebhookParams{
		Name:   "hook",
		Action: domain.CreateTask{},
	})
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}

	body := []byte(`{"x":1}`)
	headers := deliveryHeaders(hook.Secret, body, f.clock.Now())
	headers[webhook.HeaderDeliveryID] = "delivery-1"

	if rec := f.do(t, http.MethodPost, "/v1/webhooks/"+hook.ID, body, headers); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d, want 200", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/v1/webhooks/"+hook.ID, body, headers)
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409: %s", rec.Code, rec.Body)
	}
}

func TestDeliveryDispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("executor down")

	hook, err := f.registry.CreateWebhook(registry.CreateWebhookParams{
		Name:   "hook",
		Action: domain.CreateTask{},
	})
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}

	body := []byte(`{"x":1}`)
	rec := f.do(t, http.MethodPost, "/v1/webhooks/"+hook.ID, body, deliveryHeaders(hook.Secret, body, f.clock.Now()))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v2/unknown", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
