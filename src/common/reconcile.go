package common

import (
	"context"
	"fmt"
	"log"
	"time"

	"rbs/src/config"
	"rbs/src/db"
	"rbs/src/fees"
	"rbs/src/lib"
	"rbs/src/models"
	"rbs/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The reconcilers apply processor webhook events to local state. Every one
// of them is idempotent: events can be redelivered or arrive after the API
// path already performed the transition, and reapplying must change
// nothing. The processor's view of money always wins; disagreements are
// flagged for review instead of blocking the event.

// ReconcileCaptureSucceeded handles a confirmed capture. It drives the same
// pending-to-confirmed transition as the approval path, so a capture whose
// API response was lost still lands. A capture against a cancelled booking
// cannot be fixed locally and is flagged for operator review.
func ReconcileCaptureSucceeded(ctx context.Context, intentId, chargeId string, amountCents int64) error {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.First(&booking, "authorization_ref = ?", intentId).Error
	if err == gorm.ErrRecordNotFound {
		log.Printf("[StripeEvent] No booking for intent %s\n", intentId)
		return nil
	}
	if err != nil {
		return err
	}

	if booking.Status == types.BOOKING_CANCELLED {
		flagForReview(&booking, types.REVIEW_CAPTURE_ON_CANCELLED,
			fmt.Sprintf("capture %s succeeded for cancelled booking %s", chargeId, booking.ID))
		return nil
	}

	breakdown := fees.ComputeBreakdown(booking.RentalTerms(config.ServiceFeeRate(), config.OwnerCommissionRate()))
	if diff := amountCents - breakdown.RenterTotalCents; diff > 1 || diff < -1 {
		flagForReview(&booking, types.REVIEW_INTEGRITY_MISMATCH,
			fmt.Sprintf("captured %d but computed %d for booking %s: %s",
				amountCents, breakdown.RenterTotalCents, booking.ID, types.ErrIntegrityMismatch))
	}

	if booking.Status != types.BOOKING_PENDING_APPROVAL {
		return nil
	}
	err = finalizeApproval(&booking, breakdown, chargeId, "", false)
	if err == types.ErrConflict {
		// Lost the race against the approval path; the transition landed.
		return nil
	}
	return err
}

// ReconcileCaptureFailed cancels a pending booking whose capture was
// declined terminally by the processor.
func ReconcileCaptureFailed(ctx context.Context, intentId string) error {
	return cancelByIntent(intentId, string(types.CANCEL_PAYMENT_FAILED))
}

// ReconcileAuthorizationCanceled cancels a pending booking whose
// authorization lapsed or was voided on the processor side.
func ReconcileAuthorizationCanceled(ctx context.Context, intentId string) error {
	return cancelByIntent(intentId, string(types.CANCEL_EXPIRED))
}

func cancelByIntent(intentId string, reason string) error {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.First(&booking, "authorization_ref = ?", intentId).Error
	if err == gorm.ErrRecordNotFound {
		log.Printf("[StripeEvent] No booking for intent %s\n", intentId)
		return nil
	}
	if err != nil {
		return err
	}
	if booking.Status != types.BOOKING_PENDING_APPROVAL {
		return nil
	}
	err = cancelPending(&booking, reason, types.EVENT_BOOKING_CANCELLED, nil)
	if err == types.ErrConflict {
		return nil
	}
	return err
}

// ReconcileTransferPaid settles the owner payout ledger row once the
// processor confirms the transfer. Booking status is left alone: a
// transfer confirmation never forces completion. The event can outrun the
// release path's local transfer_ref write, so an unmatched transfer falls
// back to the booking id the release stamped into the transfer metadata,
// and a transfer matching neither is an error so the processor redelivers.
func ReconcileTransferPaid(ctx context.Context, transferId string, bookingIdRaw string) error {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.First(&booking, "transfer_ref = ?", transferId).Error
	if err == gorm.ErrRecordNotFound && bookingIdRaw != "" {
		if bookingId, perr := uuid.Parse(bookingIdRaw); perr == nil {
			err = conn.First(&booking, "id = ?", bookingId).Error
		}
	}
	if err == gorm.ErrRecordNotFound {
		log.Printf("[StripeEvent] No booking for transfer %s\n", transferId)
		return fmt.Errorf("no booking for transfer %s", transferId)
	}
	if err != nil {
		return err
	}
	now := time.Now()
	return conn.Transaction(func(tx *gorm.DB) error {
		if booking.TransferRef == nil {
			if err := tx.Model(&models.Booking{}).
				Where("id = ? AND transfer_ref IS NULL", booking.ID).
				Updates(map[string]any{
					"transfer_ref":   transferId,
					"transferred_at": now,
				}).
				Error; err != nil {
				return err
			}
		}
		res := tx.Model(&models.LedgerEntry{}).
			Where("booking_id = ? AND party = ? AND status = ?", booking.ID, types.LEDGER_OWNER_PAYOUT, types.LEDGER_PENDING).
			Updates(map[string]any{
				"status":     types.LEDGER_SETTLED,
				"settled_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return RecordDomainEvent(tx, types.EVENT_TRANSFER_SETTLED, booking.ID, types.JSONB{
			"transfer_ref": transferId,
			"amount_cents": booking.OwnerNetCents,
		})
	})
}

// ReconcileDisputeOpened forces a booking into disputed when the renter
// disputes the charge with their bank, regardless of local state short of
// cancellation.
func ReconcileDisputeOpened(ctx context.Context, chargeId string, reason string) error {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.First(&booking, "capture_ref = ?", chargeId).Error
	if err == gorm.ErrRecordNotFound {
		log.Printf("[StripeEvent] No booking for charge %s\n", chargeId)
		return nil
	}
	if err != nil {
		return err
	}
	if booking.Status == types.BOOKING_DISPUTED {
		return nil
	}
	if booking.Status == types.BOOKING_CANCELLED {
		flagForReview(&booking, types.REVIEW_CAPTURE_ON_CANCELLED,
			fmt.Sprintf("dispute on charge %s for cancelled booking %s", chargeId, booking.ID))
		return nil
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status NOT IN ?", booking.ID, []types.BookingStatus{types.BOOKING_DISPUTED, types.BOOKING_CANCELLED}).
			Updates(map[string]any{
				"status":      types.BOOKING_DISPUTED,
				"disputed_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := freezePayout(tx, booking.ID); err != nil {
			return err
		}
		return RecordDomainEvent(tx, types.EVENT_DISPUTE_OPENED, booking.ID, types.JSONB{"reason": reason})
	})
}

// ReconcileRefund folds the processor's cumulative refunded amount into the
// booking. The counter only moves forward, so a late or replayed event with
// a smaller total is a no-op.
func ReconcileRefund(ctx context.Context, chargeId string, amountRefundedCents int64) error {
	conn := db.GetDb()
	var booking models.Booking
	err := conn.First(&booking, "capture_ref = ?", chargeId).Error
	if err == gorm.ErrRecordNotFound {
		log.Printf("[StripeEvent] No booking for charge %s\n", chargeId)
		return nil
	}
	if err != nil {
		return err
	}
	if amountRefundedCents > booking.RenterTotalCents {
		flagForReview(&booking, types.REVIEW_REFUND_ON_OVERCAPTURE,
			fmt.Sprintf("refunded %d exceeds renter total %d on booking %s",
				amountRefundedCents, booking.RenterTotalCents, booking.ID))
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND refunded_cents < ?", booking.ID, amountRefundedCents).
			Update("refunded_cents", amountRefundedCents)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if amountRefundedCents >= booking.RenterTotalCents {
			return tx.Model(&models.LedgerEntry{}).
				Where("booking_id = ? AND party = ?", booking.ID, types.LEDGER_RENTER_CHARGE).
				Update("status", types.LEDGER_REFUNDED).
				Error
		}
		return nil
	})
}

// flagForReview marks the booking for operator attention and raises an ops
// alert. Never mutates status.
func flagForReview(b *models.Booking, flag types.ReviewFlag, message string) {
	conn := db.GetDb()
	err := conn.Model(&models.Booking{}).
		Where("id = ?", b.ID).
		Update("review_flag", flag).
		Error
	if err != nil {
		log.Printf("[StripeEvent] Error flagging booking %s: %s\n", b.ID, err.Error())
	}
	lib.OpsAlert(string(flag), message)
}
