// Package api is the HTTP surface of the trigger engine: inbound
// webhook deliveries plus the management endpoints the gateway's
// UI and CLI drive.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/daybreak-labs/triggerd/internal/domain"
	"github.com/daybreak-labs/triggerd/internal/registry"
	"github.com/daybreak-labs/triggerd/internal/webhook"
)

// Registry is the management slice of the trigger registry.
type Registry interface {
	CreateWebhook(p registry.CreateWebhookParams) (domain.WebhookDefinition, error)
	GetWebhook(id string) (domain.WebhookDefinition, bool)
	ListWebhooks() []domain.WebhookDefinition
	ToggleWebhook(id string, enabled bool) (domain.WebhookDefinition, error)
	DeleteWebhook(id string) bool

	CreateSchedule(p registry.CreateScheduleParams) (domain.ScheduledEvent, error)
	GetSchedule(id string) (domain.ScheduledEvent, bool)
	ListSchedules() []domain.ScheduledEvent
	ToggleSchedule(id string, enabled bool) (domain.ScheduledEvent, error)
	DeleteSchedule(id string) bool
}

// DeliveryHandler runs the verification pipeline for one delivery.
type DeliveryHandler interface {
	HandleDelivery(ctx context.Context, webhookID string, payload map[string]any, headers http.Header, rawBody []byte) webhook.Result
}

// HealthChecker reports backend connectivity for verbose /health
// responses.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	registry Registry
	pipeline DeliveryHandler
	checker  HealthChecker
}

func NewHandler(registry Registry, pipeline DeliveryHandler) *Handler {
	return &Handler{registry: registry, pipeline: pipeline}
}

// WithHealthChecker adds a backend probe to verbose /health responses.
func (h *Handler) WithHealthChecker(checker HealthChecker) *Handler {
	h.checker = checker
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/v1/webhooks" && r.Method == http.MethodPost:
		h.createWebhook(w, r)
	case path == "/v1/webhooks" && r.Method == http.MethodGet:
		h.listWebhooks(w, r)
	case strings.HasPrefix(path, "/v1/webhooks/"):
		h.webhookByID(w, r, strings.TrimPrefix(path, "/v1/webhooks/"))

	case path == "/v1/schedules" && r.Method == http.MethodPost:
		h.createSchedule(w, r)
	case path == "/v1/schedules" && r.Method == http.MethodGet:
		h.listSchedules(w, r)
	case strings.HasPrefix(path, "/v1/schedules/"):
		h.scheduleByID(w, r, strings.TrimPrefix(path, "/v1/schedules/"))

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// webhookByID routes /v1/webhooks/{id} and /v1/webhooks/{id}/toggle.
// POST on the bare ID is an inbound delivery, not management.
func (h *Handler) webhookByID(w http.ResponseWriter, r *http.Request, rest string) {
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodPost:
		h.handleDelivery(w, r, id)
	case sub == "" && r.Method == http.MethodGet:
		h.getWebhook(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.deleteWebhook(w, r, id)
	case sub == "toggle" && r.Method == http.MethodPost:
		h.toggleWebhook(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) scheduleByID(w http.ResponseWriter, r *http.Request, rest string) {
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.getSchedule(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.deleteSchedule(w, r, id)
	case sub == "toggle" && r.Method == http.MethodPost:
		h.toggleSchedule(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.checker == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.checker.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["analytics"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["analytics"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// handleDelivery is the inbound webhook endpoint. The raw body is
// kept byte-exact for signature verification; a body that is not a
// JSON object still goes through the pipeline with an empty payload,
// since acceptance is decided by the signature, not the content.
func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	var payload map[string]any
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &payload); err != nil {
			log.Printf("api: delivery for %s has non-object body (%d bytes)", id, len(rawBody))
			payload = nil
		}
	}

	result := h.pipeline.HandleDelivery(r.Context(), id, payload, r.Header, rawBody)
	writeJSON(w, deliveryStatus(result), DeliveryResponse{
		Accepted: result.Accepted,
		Reason:   result.Reason,
		Ref:      result.Ref,
	})
}

// deliveryStatus maps a pipeline result to an HTTP status code.
func deliveryStatus(result webhook.Result) int {
	if result.Accepted {
		return http.StatusOK
	}
	switch {
	case errors.Is(result.Err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(result.Err, domain.ErrDisabled):
		return http.StatusForbidden
	case errors.Is(result.Err, domain.ErrSignatureMissing),
		errors.Is(result.Err, domain.ErrSignatureInvalid),
		errors.Is(result.Err, domain.ErrVerificationUnavailable):
		return http.StatusUnauthorized
	case errors.Is(result.Err, domain.ErrTimestampMissing),
		errors.Is(result.Err, domain.ErrTimestampStale):
		return http.StatusBadRequest
	case errors.Is(result.Err, domain.ErrDuplicateDelivery):
		return http.StatusConflict
	default:
		// Verified but not completed, e.g. the downstream dispatch
		// failed.
		return http.StatusBadGateway
	}
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	action, err := parseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateCondition(req.Condition); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hook, err := h.registry.CreateWebhook(registry.CreateWebhookParams{
		Name:        req.Name,
		Description: req.Description,
		Assignee:    req.Assignee,
		Action:      action,
		Secret:      req.Secret,
		Condition:   req.Condition,
	})
	if err != nil {
		log.Printf("api: create webhook error: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, webhookResponse(hook))
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks := h.registry.ListWebhooks()
	resp := ListWebhooksResponse{Webhooks: make([]WebhookResponse, len(hooks))}
	for i, hook := range hooks {
		resp.Webhooks[i] = webhookResponse(hook)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getWebhook(w http.ResponseWriter, r *http.Request, id string) {
	hook, ok := h.registry.GetWebhook(id)
	if !ok {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse(hook))
}

func (h *Handler) toggleWebhook(w http.ResponseWriter, r *http.Request, id string) {
	var req ToggleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hook, err := h.registry.ToggleWebhook(id, req.Enabled)
	if err != nil {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse(hook))
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request, id string) {
	if !h.registry.DeleteWebhook(id) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	rec, err := parseRecurrence(req.Recurrence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.registry.CreateSchedule(registry.CreateScheduleParams{
		Name:        req.Name,
		Description: req.Description,
		Assignee:    req.Assignee,
		Recurrence:  rec,
	})
	if err != nil {
		log.Printf("api: create schedule error: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, scheduleResponse(ev))
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	events := h.registry.ListSchedules()
	resp := ListSchedulesResponse{Schedules: make([]ScheduleResponse, len(events))}
	for i, ev := range events {
		resp.Schedules[i] = scheduleResponse(ev)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request, id string) {
	ev, ok := h.registry.GetSchedule(id)
	if !ok {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse(ev))
}

func (h *Handler) toggleSchedule(w http.ResponseWriter, r *http.Request, id string) {
	var req ToggleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := h.registry.ToggleSchedule(id, req.Enabled)
	if err != nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse(ev))
}

func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request, id string) {
	if !h.registry.DeleteSchedule(id) {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func webhookResponse(hook domain.WebhookDefinition) WebhookResponse {
	return WebhookResponse{
		ID:            hook.ID,
		Name:          hook.Name,
		Description:   hook.Description,
		Assignee:      hook.Assignee,
		Action:        actionResponse(hook.Action),
		Enabled:       hook.Enabled,
		Secret:        hook.Secret,
		Condition:     hook.Condition,
		CreatedAt:     formatTime(hook.CreatedAt),
		LastTriggered: formatTimePtr(hook.LastTriggered),
		TriggerCount:  hook.TriggerCount,
	}
}

func scheduleResponse(ev domain.ScheduledEvent) ScheduleResponse {
	return ScheduleResponse{
		ID:          ev.ID,
		Name:        ev.Name,
		Description: ev.Description,
		Assignee:    ev.Assignee,
		Recurrence:  recurrenceResponse(ev.Recurrence),
		Enabled:     ev.Enabled,
		CreatedAt:   formatTime(ev.CreatedAt),
		LastRun:     formatTimePtr(ev.LastRun),
		NextFire:    formatTimePtr(ev.NextFire),
		RunCount:    ev.RunCount,
	}
}

// decodeBody parses a management request body, writing the error
// response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
