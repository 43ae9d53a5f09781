package models

import (
	"time"

	"rbs/src/types"
)

// WebhookEvent is the dedup record for processor events. One row per
// processor event id, created on first sight and never updated; insertion
// with ON CONFLICT DO NOTHING is the idempotency gate for event
// application.
type WebhookEvent struct {
	EventID   string      `gorm:"primarykey" json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   types.JSONB `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time   `gorm:"autoCreateTime:nano" json:"created_at"`
}
