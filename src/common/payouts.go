package common

import (
	"context"
	"log"
	"time"

	"rbs/src/db"
	"rbs/src/lib"
	"rbs/src/models"
	"rbs/src/types"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ReleasePayout transfers the owner's net amount for a completed booking.
// The transfer reference is write-once: a booking that already carries one
// is treated as released and the call is a no-op. The ledger row stays
// pending until the processor confirms the transfer through the webhook.
func ReleasePayout(ctx context.Context, bookingId uuid.UUID) error {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.Preload("Owner").First(&booking, "id = ?", bookingId).Error; err != nil {
		return err
	}
	if booking.Status != types.BOOKING_COMPLETED {
		return types.ErrConflict
	}
	if booking.TransferRef != nil {
		return nil
	}
	if booking.Owner == nil || booking.Owner.StripeAccountId == nil {
		return types.ErrValidation
	}

	var payout models.LedgerEntry
	err := conn.
		Where("booking_id = ? AND party = ?", booking.ID, types.LEDGER_OWNER_PAYOUT).
		First(&payout).
		Error
	if err != nil {
		return err
	}
	switch payout.Status {
	case types.LEDGER_SETTLED:
		return nil
	case types.LEDGER_FROZEN:
		return types.ErrConflict
	}

	transferRef, err := lib.TransferPayout(ctx, booking.ID, *booking.Owner.StripeAccountId, booking.OwnerNetCents, booking.Currency)
	if err != nil {
		return err
	}

	res := conn.Model(&models.Booking{}).
		Where("id = ? AND transfer_ref IS NULL", booking.ID).
		Updates(map[string]any{
			"transfer_ref":   transferRef,
			"transferred_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[Payout] Booking %s already carries a transfer ref\n", booking.ID)
	}
	return nil
}

// HandlePayoutCommand consumes a payout release command from the broker.
// The payload carries the booking id; anything else on the message is
// ignored.
func HandlePayoutCommand(payload string) {
	raw := gjson.Get(payload, "booking_id").String()
	if raw == "" {
		log.Printf("[Payout] Command without booking_id: %s\n", payload)
		return
	}
	bookingId, err := uuid.Parse(raw)
	if err != nil {
		log.Printf("[Payout] Invalid booking_id %q: %s\n", raw, err.Error())
		return
	}
	if err := ReleasePayout(context.Background(), bookingId); err != nil {
		log.Printf("[Payout] Release failed for %s: %s\n", bookingId, err.Error())
	}
}
