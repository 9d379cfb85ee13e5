package domain

import "time"

// ScheduledEvent is a registered time-based trigger.
//
// Invariant: Enabled implies NextFire is non-nil and was strictly in
// the future when last computed. NextFire is left frozen while the
// event is disabled and recomputed on re-enable and after every
// firing.
type ScheduledEvent struct {
	ID          string
	Name        string
	Description string
	Assignee    string

	Recurrence Recurrence
	Enabled    bool

	CreatedAt time.Time
	LastRun   *time.Time
	NextFire  *time.Time
	RunCount  int
}
