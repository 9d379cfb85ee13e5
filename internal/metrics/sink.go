package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Scheduler metrics
	TickCompleted(duration time.Duration, fired int)

	// Webhook verification metrics
	VerificationCompleted(outcome string)

	// Dispatch metrics
	DispatchCompleted(kind string, err error)
}

// Well-known verification outcome labels. Rejections carry a label
// naming the stage that refused them; see the webhook package.
const (
	OutcomeAccepted      = "accepted"
	OutcomeSkipped       = "skipped"
	OutcomeDispatchError = "dispatch_error"
)
