package models

import (
	"rbs/src/types"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry records one party's side of a booking settlement. The three
// rows for a booking (renter charge, owner payout, platform revenue) are
// written atomically with the capture commit.
type LedgerEntry struct {
	ID          uint               `gorm:"primarykey" json:"id"`
	BookingID   uuid.UUID          `gorm:"type:uuid;uniqueIndex:idx_ledger_booking_party" json:"booking_id"`
	Party       types.LedgerParty  `gorm:"uniqueIndex:idx_ledger_booking_party" json:"party"`
	AmountCents int64              `json:"amount_cents"`
	Currency    string             `json:"currency"`
	Status      types.LedgerStatus `json:"status"`
	SettledAt   *time.Time         `json:"settled_at,omitempty"`

	Booking *Booking `gorm:"foreignKey:booking_id" json:"-"`

	types.Timestamps
}
