package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies what produced a trigger firing.
type SourceKind string

const (
	SourceWebhook   SourceKind = "webhook"
	SourceScheduler SourceKind = "scheduler"
)

// TriggerEvent records a single accepted firing handed to dispatch.
// Delivery to the executor is at-least-once; IdempotencyKey lets the
// downstream side deduplicate.
type TriggerEvent struct {
	EventID        uuid.UUID
	Source         SourceKind
	SourceID       string
	FiredAt        time.Time
	IdempotencyKey string
}

// NewTriggerEvent builds a firing record for the given source.
func NewTriggerEvent(source SourceKind, sourceID string, firedAt time.Time) TriggerEvent {
	return TriggerEvent{
		EventID:        uuid.New(),
		Source:         source,
		SourceID:       sourceID,
		FiredAt:        firedAt,
		IdempotencyKey: idempotencyKey(sourceID, firedAt),
	}
}

// Attribution returns the tag identifying the trigger source, e.g.
// "webhook/wh_1a2b3c" or "scheduler/ev_4d5e6f".
func (e TriggerEvent) Attribution() string {
	return string(e.Source) + "/" + e.SourceID
}

func idempotencyKey(sourceID string, firedAt time.Time) string {
	data := fmt.Sprintf("%s:%d", sourceID, firedAt.Unix())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
