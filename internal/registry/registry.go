// Package registry owns the webhook and scheduled-event definitions
// and the delivery dedup map. All state lives behind a single mutex;
// concurrent webhook verifications and scheduler ticks never observe
// a torn read or a cross-field invariant mid-update. The durable
// store is a passive mirror: it is rewritten on every mutation and
// read only at startup, and a write failure is logged without rolling
// back the in-memory change.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/daybreak-labs/triggerd/internal/domain"
	"github.com/daybreak-labs/triggerd/internal/recurrence"
)

// Store mirrors the registry collections to durable storage.
type Store interface {
	SaveWebhooks([]domain.WebhookDefinition) error
	LoadWebhooks() ([]domain.WebhookDefinition, error)
	SaveSchedules([]domain.ScheduledEvent) error
	LoadSchedules() ([]domain.ScheduledEvent, error)
}

type Registry struct {
	mu    sync.Mutex
	store Store
	clock func() time.Time

	webhooks   map[string]domain.WebhookDefinition
	schedules  map[string]domain.ScheduledEvent
	deliveries map[string]time.Time
}

// New creates a registry backed by store, loading whatever the store
// holds. A store that reads nothing yields an empty registry.
func New(store Store) (*Registry, error) {
	r := &Registry{
		store:      store,
		clock:      time.Now,
		webhooks:   make(map[string]domain.WebhookDefinition),
		schedules:  make(map[string]domain.ScheduledEvent),
		deliveries: make(map[string]time.Time),
	}

	hooks, err := store.LoadWebhooks()
	if err != nil {
		return nil, fmt.Errorf("load webhooks: %w", err)
	}
	for _, h := range hooks {
		r.webhooks[h.ID] = h
	}

	events, err := store.LoadSchedules()
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	for _, ev := range events {
		r.schedules[ev.ID] = ev
	}

	return r, nil
}

// WithClock replaces the time source, for tests.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// CreateWebhookParams are the caller-supplied fields of a new webhook.
type CreateWebhookParams struct {
	Name        string
	Description string
	Assignee    string
	Action      domain.Action
	Secret      string
	Condition   string
}

// CreateWebhook registers a webhook and returns the stored definition,
// including the generated secret when the caller supplied none. A
// webhook without a secret cannot be verified, so one is always
// present after creation.
func (r *Registry) CreateWebhook(p CreateWebhookParams) (domain.WebhookDefinition, error) {
	if p.Name == "" {
		return domain.WebhookDefinition{}, fmt.Errorf("webhook name is required")
	}
	if p.Action == nil {
		return domain.WebhookDefinition{}, fmt.Errorf("webhook action is required")
	}

	secret := p.Secret
	if secret == "" {
		var err error
		secret, err = generateSecret()
		if err != nil {
			return domain.WebhookDefinition{}, fmt.Errorf("generate secret: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.newWebhookIDLocked()
	if err != nil {
		return domain.WebhookDefinition{}, err
	}

	hook := domain.WebhookDefinition{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Assignee:    p.Assignee,
		Action:      p.Action,
		Enabled:     true,
		Secret:      secret,
		Condition:   p.Condition,
		CreatedAt:   r.clock().UTC(),
	}
	r.webhooks[id] = hook
	r.persistWebhooksLocked()

	return hook, nil
}

// GetWebhook returns a copy of the definition, if present.
func (r *Registry) GetWebhook(id string) (domain.WebhookDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hook, ok := r.webhooks[id]
	return hook, ok
}

// ListWebhooks returns all definitions ordered by creation time,
// newest first.
func (r *Registry) ListWebhooks() []domain.WebhookDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	hooks := make([]domain.WebhookDefinition, 0, len(r.webhooks))
	for _, h := range r.webhooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		if !hooks[i].CreatedAt.Equal(hooks[j].CreatedAt) {
			return hooks[i].CreatedAt.After(hooks[j].CreatedAt)
		}
		return hooks[i].ID < hooks[j].ID
	})
	return hooks
}

// UpdateWebhook applies mutate under the registry lock and persists.
// The mutator sees the stored value; partial updates are never visible
// to concurrent readers.
func (r *Registry) UpdateWebhook(id string, mutate func(*domain.WebhookDefinition)) (domain.WebhookDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hook, ok := r.webhooks[id]
	if !ok {
		return domain.WebhookDefinition{}, domain.ErrNotFound
	}
	mutate(&hook)
	r.webhooks[id] = hook
	r.persistWebhooksLocked()
	return hook, nil
}

// ToggleWebhook sets the enabled flag.
func (r *Registry) ToggleWebhook(id string, enabled bool) (domain.WebhookDefinition, error) {
	return r.UpdateWebhook(id, func(h *domain.WebhookDefinition) {
		h.Enabled = enabled
	})
}

// RecordTrigger bumps the trigger stats after an accepted delivery.
func (r *Registry) RecordTrigger(id string, at time.Time) (domain.WebhookDefinition, error) {
	return r.UpdateWebhook(id, func(h *domain.WebhookDefinition) {
		at := at.UTC()
		h.LastTriggered = &at
		h.TriggerCount++
	})
}

// DeleteWebhook removes a definition, reporting whether it existed.
func (r *Registry) DeleteWebhook(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.webhooks[id]; !ok {
		return false
	}
	delete(r.webhooks, id)
	r.persistWebhooksLocked()
	return true
}

// CreateScheduleParams are the caller-supplied fields of a new
// scheduled event.
type CreateScheduleParams struct {
	Name        string
	Description string
	Assignee    string
	Recurrence  domain.Recurrence
}

// CreateSchedule registers a scheduled event, enabled, with its first
// fire time computed immediately.
func (r *Registry) CreateSchedule(p CreateScheduleParams) (domain.ScheduledEvent, error) {
	if p.Name == "" {
		return domain.ScheduledEvent{}, fmt.Errorf("schedule name is required")
	}
	if p.Recurrence == nil {
		return domain.ScheduledEvent{}, fmt.Errorf("schedule recurrence is required")
	}
	if err := recurrence.Validate(p.Recurrence); err != nil {
		return domain.ScheduledEvent{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.newScheduleIDLocked()
	if err != nil {
		return domain.ScheduledEvent{}, err
	}

	now := r.clock()
	next, err := recurrence.NextFire(p.Recurrence, now)
	if err != nil {
		return domain.ScheduledEvent{}, err
	}

	event := domain.ScheduledEvent{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Assignee:    p.Assignee,
		Recurrence:  p.Recurrence,
		Enabled:     true,
		CreatedAt:   now.UTC(),
		NextFire:    &next,
	}
	r.schedules[id] = event
	r.persistSchedulesLocked()

	return event, nil
}

// GetSchedule returns a copy of the event, if present.
func (r *Registry) GetSchedule(id string) (domain.ScheduledEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.schedules[id]
	return ev, ok
}

// ListSchedules returns all events ordered by next fire time,
// soonest first; events without one (disabled) sort last.
func (r *Registry) ListSchedules() []domain.ScheduledEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]domain.ScheduledEvent, 0, len(r.schedules))
	for _, ev := range r.schedules {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i].NextFire, events[j].NextFire
		switch {
		case a == nil && b == nil:
			return events[i].ID < events[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return events[i].ID < events[j].ID
		}
	})
	return events
}

// ToggleSchedule sets the enabled flag. Enabling a disabled event
// computes a fresh future fire time; toggling an already-enabled
// event leaves its existing one untouched. Disabling freezes the
// event as-is.
func (r *Registry) ToggleSchedule(id string, enabled bool) (domain.ScheduledEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.schedules[id]
	if !ok {
		return domain.ScheduledEvent{}, domain.ErrNotFound
	}

	if enabled && !ev.Enabled {
		next, err := recurrence.NextFire(ev.Recurrence, r.clock())
		if err != nil {
			return domain.ScheduledEvent{}, err
		}
		ev.NextFire = &next
	}
	ev.Enabled = enabled

	r.schedules[id] = ev
	r.persistSchedulesLocked()
	return ev, nil
}

// DeleteSchedule removes an event, reporting whether it existed.
func (r *Registry) DeleteSchedule(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return false
	}
	delete(r.schedules, id)
	r.persistSchedulesLocked()
	return true
}

// DueSchedules returns copies of every enabled event whose fire time
// is at or before now. The scheduler iterates over this snapshot, so
// definitions added or removed mid-tick cannot corrupt the walk.
func (r *Registry) DueSchedules(now time.Time) []domain.ScheduledEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []domain.ScheduledEvent
	for _, ev := range r.schedules {
		if ev.Enabled && ev.NextFire != nil && !ev.NextFire.After(now) {
			due = append(due, ev)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due
}

// CompleteRun records a firing: last-run, run counter, and the next
// fire time, atomically. It does not persist; the scheduler flushes
// once per tick to bound write amplification. A run completed for an
// event deleted mid-tick is dropped.
func (r *Registry) CompleteRun(id string, ranAt, nextFire time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.schedules[id]
	if !ok {
		return
	}
	ranAt = ranAt.UTC()
	ev.LastRun = &ranAt
	ev.RunCount++
	ev.NextFire = &nextFire
	r.schedules[id] = ev
}

// FlushSchedules persists the schedule collection.
func (r *Registry) FlushSchedules() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistSchedulesLocked()
}

func (r *Registry) persistWebhooksLocked() {
	hooks := make([]domain.WebhookDefinition, 0, len(r.webhooks))
	for _, h := range r.webhooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	if err := r.store.SaveWebhooks(hooks); err != nil {
		log.Printf("registry: persist webhooks: %v", err)
	}
}

func (r *Registry) persistSchedulesLocked() {
	events := make([]domain.ScheduledEvent, 0, len(r.schedules))
	for _, ev := range r.schedules {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	if err := r.store.SaveSchedules(events); err != nil {
		log.Printf("registry: persist schedules: %v", err)
	}
}

const idAttempts = 10

func (r *Registry) newWebhookIDLocked() (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := "wh_" + randomHex(6)
		if _, taken := r.webhooks[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate webhook id after %d attempts", idAttempts)
}

func (r *Registry) newScheduleIDLocked() (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := "ev_" + randomHex(6)
		if _, taken := r.schedules[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate schedule id after %d attempts", idAttempts)
}

// generateSecret returns 32 bytes of cryptographic randomness,
// hex encoded for transport.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; an ID from a
		// failed read must not look valid.
		panic("registry: rand.Read: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
