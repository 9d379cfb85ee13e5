// Package file persists registry snapshots as JSON files on local
// disk. Each collection is rewritten in full on every save: the
// snapshot is written to a temp file and renamed over the previous
// one, so readers never observe a partial write. A missing or corrupt
// file loads as an empty collection.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/daybreak-labs/triggerd/internal/domain"
)

const (
	webhooksFile  = "webhooks.json"
	schedulesFile = "schedules.json"
)

// Store reads and writes the two definition collections under a
// single directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// webhookRecord is the persisted form of a WebhookDefinition. The
// action variant is flattened into a kind tag plus its fields.
type webhookRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee"`
	ActionKind  string     `json:"action"`
	Priority    string     `json:"priority,omitempty"`
	TemplateRef string     `json:"template_ref,omitempty"`
	Enabled     bool       `json:"enabled"`
	Secret      string     `json:"secret,omitempty"`
	Condition   string     `json:"condition,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastTrigger *time.Time `json:"last_triggered,omitempty"`
	Count       int        `json:"trigger_count"`
}

type scheduleRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee"`
	Recurrence  string     `json:"recurrence"`
	Seconds     int        `json:"seconds,omitempty"`
	Weekday     int        `json:"weekday,omitempty"`
	Hour        int        `json:"hour,omitempty"`
	Minute      int        `json:"minute,omitempty"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextFire    *time.Time `json:"next_fire,omitempty"`
	Count       int        `json:"run_count"`
}

const (
	actionCreateTask     = "create_task"
	actionCreateWorkflow = "create_workflow"
	actionNotify         = "notify"

	recurrenceInterval = "interval"
	recurrenceDaily    = "daily"
	recurrenceWeekdays = "weekdays"
	recurrenceWeekly   = "weekly"
)

// SaveWebhooks rewrites the webhook collection.
func (s *Store) SaveWebhooks(hooks []domain.WebhookDefinition) error {
	records := make([]webhookRecord, 0, len(hooks))
	for _, h := range hooks {
		rec, err := encodeWebhook(h)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return s.writeAtomic(webhooksFile, records)
}

// LoadWebhooks reads the webhook collection. Missing or corrupt files
// yield an empty slice; individually undecodable records are skipped
// with a log line rather than discarding the rest.
func (s *Store) LoadWebhooks() ([]domain.WebhookDefinition, error) {
	var records []webhookRecord
	if !s.readFile(webhooksFile, &records) {
		return nil, nil
	}

	hooks := make([]domain.WebhookDefinition, 0, len(records))
	for _, rec := range records {
		h, err := decodeWebhook(rec)
		if err != nil {
			log.Printf("store: skipping webhook %s: %v", rec.ID, err)
			continue
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}

// SaveSchedules rewrites the scheduled-event collection.
func (s *Store) SaveSchedules(events []domain.ScheduledEvent) error {
	records := make([]scheduleRecord, 0, len(events))
	for _, ev := range events {
		rec, err := encodeSchedule(ev)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return s.writeAtomic(schedulesFile, records)
}

// LoadSchedules reads the scheduled-event collection.
func (s *Store) LoadSchedules() ([]domain.ScheduledEvent, error) {
	var records []scheduleRecord
	if !s.readFile(schedulesFile, &records) {
		return nil, nil
	}

	events := make([]domain.ScheduledEvent, 0, len(records))
	for _, rec := range records {
		ev, err := decodeSchedule(rec)
		if err != nil {
			log.Printf("store: skipping schedule %s: %v", rec.ID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Store) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// readFile decodes name into v. Returns false when the file is
// missing or unreadable; startup proceeds with an empty registry.
func (s *Store) readFile(name string, v any) bool {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("store: read %s: %v, starting empty", name, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("store: corrupt %s: %v, starting empty", name, err)
		return false
	}
	return true
}

func encodeWebhook(h domain.WebhookDefinition) (webhookRecord, error) {
	rec := webhookRecord{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		Assignee:    h.Assignee,
		Enabled:     h.Enabled,
		Secret:      h.Secret,
		Condition:   h.Condition,
		CreatedAt:   h.CreatedAt,
		LastTrigger: h.LastTriggered,
		Count:       h.TriggerCount,
	}

	switch a := h.Action.(type) {
	case domain.CreateTask:
		rec.ActionKind = actionCreateTask
		rec.Priority = a.Priority
	case domain.CreateWorkflow:
		rec.ActionKind = actionCreateWorkflow
		rec.TemplateRef = a.TemplateRef
	case domain.Notify:
		rec.ActionKind = actionNotify
	default:
		return webhookRecord{}, fmt.Errorf("unknown action %T", h.Action)
	}
	return rec, nil
}

func decodeWebhook(rec webhookRecord) (domain.WebhookDefinition, error) {
	h := domain.WebhookDefinition{
		ID:            rec.ID,
		Name:          rec.Name,
		Description:   rec.Description,
		Assignee:      rec.Assignee,
		Enabled:       rec.Enabled,
		Secret:        rec.Secret,
		Condition:     rec.Condition,
		CreatedAt:     rec.CreatedAt,
		LastTriggered: rec.LastTrigger,
		TriggerCount:  rec.Count,
	}

	switch rec.ActionKind {
	case actionCreateTask:
		h.Action = domain.CreateTask{Priority: rec.Priority}
	case actionCreateWorkflow:
		h.Action = domain.CreateWorkflow{TemplateRef: rec.TemplateRef}
	case actionNotify:
		h.Action = domain.Notify{}
	default:
		return domain.WebhookDefinition{}, fmt.Errorf("unknown action kind %q", rec.ActionKind)
	}
	return h, nil
}

func encodeSchedule(ev domain.ScheduledEvent) (scheduleRecord, error) {
	rec := scheduleRecord{
		ID:          ev.ID,
		Name:        ev.Name,
		Description: ev.Description,
		Assignee:    ev.Assignee,
		Enabled:     ev.Enabled,
		CreatedAt:   ev.CreatedAt,
		LastRun:     ev.LastRun,
		NextFire:    ev.NextFire,
		Count:       ev.RunCount,
	}

	switch r := ev.Recurrence.(type) {
	case domain.Interval:
		rec.Recurrence = recurrenceInterval
		rec.Seconds = r.Seconds
	case domain.Daily:
		rec.Recurrence = recurrenceDaily
		rec.Hour, rec.Minute = r.Hour, r.Minute
	case domain.Weekdays:
		rec.Recurrence = recurrenceWeekdays
		rec.Hour, rec.Minute = r.Hour, r.Minute
	case domain.Weekly:
		rec.Recurrence = recurrenceWeekly
		rec.Weekday = int(r.Weekday)
		rec.Hour, rec.Minute = r.Hour, r.Minute
	default:
		return scheduleRecord{}, fmt.Errorf("unknown recurrence %T", ev.Recurrence)
	}
	return rec, nil
}

func decodeSchedule(rec scheduleRecord) (domain.ScheduledEvent, error) {
	ev := domain.ScheduledEvent{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Assignee:    rec.Assignee,
		Enabled:     rec.Enabled,
		CreatedAt:   rec.CreatedAt,
		LastRun:     rec.LastRun,
		NextFire:    rec.NextFire,
		RunCount:    rec.Count,
	}

	switch rec.Recurrence {
	case recurrenceInterval:
		ev.Recurrence = domain.Interval{Seconds: rec.Seconds}
	case recurrenceDaily:
		ev.Recurrence = domain.Daily{Hour: rec.Hour, Minute: rec.Minute}
	case recurrenceWeekdays:
		ev.Recurrence = domain.Weekdays{Hour: rec.Hour, Minute: rec.Minute}
	case recurrenceWeekly:
		ev.Recurrence = domain.Weekly{Weekday: time.Weekday(rec.Weekday), Hour: rec.Hour, Minute: rec.Minute}
	default:
		return domain.ScheduledEvent{}, fmt.Errorf("unknown recurrence kind %q", rec.Recurrence)
	}
	return ev, nil
}
