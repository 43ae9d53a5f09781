package models

import (
	"rbs/src/types"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a durably recorded domain event. Written in the same
// transaction as the transition that produced it; the dispatcher publishes
// pending rows to the notification broker and marks them sent, so a
// dispatcher failure never rolls back a transition and delivery can be
// replayed.
type OutboxEvent struct {
	ID        uuid.UUID          `gorm:"primarykey;type:uuid" json:"id"`
	Name      types.DomainEvent  `json:"name"`
	BookingID uuid.UUID          `gorm:"type:uuid" json:"booking_id"`
	Payload   types.JSONB        `gorm:"type:jsonb" json:"payload"`
	Status    types.OutboxStatus `json:"status"`
	Attempts  int                `json:"attempts"`
	SentAt    *time.Time         `json:"sent_at,omitempty"`

	types.Timestamps
}
