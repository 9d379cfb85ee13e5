package api

import "time"

type ActionRequest struct {
	Kind        string `json:"kind"` // create_task | create_workflow | notify
	Priority    string `json:"priority,omitempty"`
	TemplateRef string `json:"template_ref,omitempty"`
}

type CreateWebhookRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Assignee    string         `json:"assignee,omitempty"`
	Action      *ActionRequest `json:"action"`
	Secret      string         `json:"secret,omitempty"`
	Condition   string         `json:"condition,omitempty"`
}

type RecurrenceRequest struct {
	Kind    string `json:"kind"` // interval | daily | weekdays | weekly
	Seconds int    `json:"seconds,omitempty"`
	Hour    int    `json:"hour"`
	Minute  int    `json:"minute"`
	Weekday string `json:"weekday,omitempty"` // sunday .. saturday
}

type CreateScheduleRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Assignee    string             `json:"assignee,omitempty"`
	Recurrence  *RecurrenceRequest `json:"recurrence"`
}

type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type WebhookResponse struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Assignee      string        `json:"assignee,omitempty"`
	Action        ActionRequest `json:"action"`
	Enabled       bool          `json:"enabled"`
	Secret        string        `json:"secret,omitempty"`
	Condition     string        `json:"condition,omitempty"`
	CreatedAt     string        `json:"created_at"`
	LastTriggered string        `json:"last_triggered,omitempty"`
	TriggerCount  int           `json:"trigger_count"`
}

type ScheduleResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Assignee    string            `json:"assignee,omitempty"`
	Recurrence  RecurrenceRequest `json:"recurrence"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   string            `json:"created_at"`
	LastRun     string            `json:"last_run,omitempty"`
	NextFire    string            `json:"next_fire,omitempty"`
	RunCount    int               `json:"run_count"`
}

type ListWebhooksResponse struct {
	Webhooks []WebhookResponse `json:"webhooks"`
}

type ListSchedulesResponse struct {
	Schedules []ScheduleResponse `json:"schedules"`
}

type DeliveryResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
	Ref      string `json:"ref,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
