package domain

import "time"

// WebhookDefinition is a registered inbound webhook trigger.
//
// Secret is set at creation time and never regenerated afterwards. If
// the caller supplies none, the registry generates one; a webhook that
// cannot be verified is not a supported configuration.
type WebhookDefinition struct {
	ID          string
	Name        string
	Description string

	// Assignee identifies the downstream handler that receives the
	// dispatched work. Opaque to this engine.
	Assignee string

	Action  Action
	Enabled bool
	Secret  string

	// Condition is an optional boolean expression evaluated against
	// the parsed payload. When it evaluates false the delivery is
	// accepted but not dispatched. Empty means always dispatch.
	Condition string

	CreatedAt     time.Time
	LastTriggered *time.Time
	TriggerCount  int
}
