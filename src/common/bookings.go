package common

import (
	"context"
	"errors"
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

// approvalGuard checks the preconditions for approving a booking. Pure so
// the rules are testable without a database.
func approvalGuard(b *models.Booking, approverId uint, now time.Time) error {
	if approverId != b.OwnerID {
		return types.ErrValidation
	}
	if b.Status != types.BOOKING_PENDING_APPROVAL {
		return types.ErrConflict
	}
	if now.After(b.ApprovalDeadline) {
		return types.ErrDeadlineExpired
	}
	if b.AuthorizationRef == nil || *b.AuthorizationRef == "" {
		return types.ErrValidation
	}
	return nil
}

// partyGuard requires the actor to be one of the booking's parties.
func partyGuard(b *models.Booking, actorId uint) error {
	if actorId != b.RenterID && actorId != b.OwnerID {
		return types.ErrValidation
	}
	return nil
}

// pickupGuard checks that a confirmed booking may start fulfilment.
func pickupGuard(b *models.Booking, now time.Time) error {
	if b.Status != types.BOOKING_CONFIRMED {
		return types.ErrConflict
	}
	if now.Before(b.StartDate) {
		return types.ErrValidation
	}
	return nil
}

// ApproveBooking captures the renter's authorized payment and moves the
// booking to confirmed. The capture happens before the status update
// commits: if two approvals race, both may reach the processor, where the
// shared idempotency key collapses them to one capture, and the conditional
// update then picks a single winner. The loser gets a conflict and nothing
// to roll back.
func ApproveBooking(ctx context.Context, bookingId uuid.UUID, approverId uint, notes string) (*models.Booking, error) {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		return nil, err
	}
	if err := approvalGuard(&booking, approverId, time.Now()); err != nil {
		return nil, err
	}
	breakdown := fees.ComputeBreakdown(booking.RentalTerms(config.ServiceFeeRate(), config.OwnerCommissionRate()))

	chargeRef, err := lib.CapturePayment(ctx, booking.ID, *booking.AuthorizationRef, breakdown.RenterTotalCents)
	if err != nil {
		return nil, err
	}

	if err := finalizeApproval(&booking, breakdown, chargeRef, notes, true); err != nil {
		return nil, err
	}
	go func() {
		if err := lib.ConfirmHolds(booking.ID, booking.ListingID, booking.StartDate, booking.EndDate); err != nil {
			log.Printf("[Booking] Calendar confirm failed for %s: %s\n", booking.ID, err.Error())
		}
	}()
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		// Reload is a refresh only; finalizeApproval already applied the
		// committed fields to the in-memory booking.
		log.Printf("[Booking] Reload after approval failed for %s: %s\n", booking.ID, err.Error())
	}
	return &booking, nil
}

// finalizeApproval commits the approval atomically: the conditional status
// flip, the immutable breakdown columns, the three settlement ledger rows
// and the outbox events all land in one transaction. With enforceDeadline
// the conditional update re-checks the approval deadline at commit time,
// so a deadline that lapses during the capture call still blocks the
// transition. The reconciler skips that check: the processor already holds
// the money, and refusing the commit cannot give it back.
func finalizeApproval(b *models.Booking, bd fees.Breakdown, chargeRef string, notes string, enforceDeadline bool) error {
	conn := db.GetDb()
	now := time.Now()
	err := conn.Transaction(func(tx *gorm.DB) error {
		values := map[string]any{
			"status":                   types.BOOKING_CONFIRMED,
			"capture_ref":              chargeRef,
			"approved_at":              now,
			"captured_at":              now,
			"subtotal_cents":           bd.SubtotalCents,
			"renter_service_fee_cents": bd.RenterServiceFeeCents,
			"insurance_fee_cents":      bd.InsuranceFeeCents,
			"delivery_fee_cents":       bd.DeliveryFeeCents,
			"security_deposit_cents":   bd.SecurityDepositCents,
			"points_credit_cents":      bd.PointsCreditCents,
			"renter_total_cents":       bd.RenterTotalCents,
			"owner_commission_cents":   bd.OwnerCommissionCents,
			"owner_net_cents":          bd.OwnerNetCents,
			"platform_revenue_cents":   bd.PlatformRevenueCents,
		}
		if notes != "" {
			values["approval_notes"] = notes
		}
		query := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ? AND capture_ref IS NULL", b.ID, types.BOOKING_PENDING_APPROVAL)
		if enforceDeadline {
			query = query.Where("approval_deadline >= ?", now)
		}
		res := query.Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConflict
		}

		entries := []models.LedgerEntry{
			{BookingID: b.ID, Party: types.LEDGER_RENTER_CHARGE, AmountCents: bd.RenterTotalCents, Currency: b.Currency, Status: types.LEDGER_PENDING},
			{BookingID: b.ID, Party: types.LEDGER_OWNER_PAYOUT, AmountCents: bd.OwnerNetCents, Currency: b.Currency, Status: types.LEDGER_PENDING},
			{BookingID: b.ID, Party: types.LEDGER_PLATFORM_REVENUE, AmountCents: bd.PlatformRevenueCents, Currency: b.Currency, Status: types.LEDGER_PENDING},
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}

		if err := RecordDomainEvent(tx, types.EVENT_BOOKING_APPROVED, b.ID, types.JSONB{
			"renter_id": b.RenterID,
			"owner_id":  b.OwnerID,
		}); err != nil {
			return err
		}
		return RecordDomainEvent(tx, types.EVENT_PAYMENT_CAPTURED, b.ID, types.JSONB{
			"capture_ref":  chargeRef,
			"amount_cents": bd.RenterTotalCents,
		})
	})
	if err != nil {
		return err
	}
	b.Status = types.BOOKING_CONFIRMED
	b.CaptureRef = &chargeRef
	b.ApprovedAt = &now
	b.CapturedAt = &now
	if notes != "" {
		b.ApprovalNotes = &notes
	}
	b.SubtotalCents = bd.SubtotalCents
	b.RenterServiceFeeCents = bd.RenterServiceFeeCents
	b.InsuranceFeeCents = bd.InsuranceFeeCents
	b.DeliveryFeeCents = bd.DeliveryFeeCents
	b.SecurityDepositCents = bd.SecurityDepositCents
	b.PointsCreditCents = bd.PointsCreditCents
	b.RenterTotalCents = bd.RenterTotalCents
	b.OwnerCommissionCents = bd.OwnerCommissionCents
	b.OwnerNetCents = bd.OwnerNetCents
	b.PlatformRevenueCents = bd.PlatformRevenueCents
	return nil
}

// RejectBooking voids the authorization and cancels a pending booking.
// Rejecting a booking the sweeper already expired is a no-op success, so an
// owner racing the deadline does not see a spurious conflict.
func RejectBooking(ctx context.Context, bookingId uuid.UUID, approverId uint, reason string) error {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		return err
	}
	if approverId != booking.OwnerID {
		return types.ErrValidation
	}
	if booking.Status == types.BOOKING_CANCELLED {
		return nil
	}
	if booking.Status != types.BOOKING_PENDING_APPROVAL {
		return types.ErrConflict
	}
	if booking.AuthorizationRef != nil {
		if err := lib.VoidAuthorization(ctx, booking.ID, *booking.AuthorizationRef); err != nil {
			return err
		}
	}
	now := time.Now()
	err := cancelPending(&booking, string(types.CANCEL_REJECTED)+": "+reason, types.EVENT_BOOKING_REJECTED, map[string]any{"rejected_at": now})
	if errors.Is(err, types.ErrConflict) {
		var current models.Booking
		if conn.First(&current, "id = ?", bookingId).Error == nil && current.Status == types.BOOKING_CANCELLED {
			return nil
		}
	}
	return err
}

// cancelPending flips a pending booking to cancelled with a conditional
// update, records the event and releases the calendar holds.
func cancelPending(b *models.Booking, reason string, event types.DomainEvent, extra map[string]any) error {
	conn := db.GetDb()
	err := conn.Transaction(func(tx *gorm.DB) error {
		values := map[string]any{
			"status":        types.BOOKING_CANCELLED,
			"cancel_reason": reason,
		}
		for k, v := range extra {
			values[k] = v
		}
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", b.ID, types.BOOKING_PENDING_APPROVAL).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConflict
		}
		return RecordDomainEvent(tx, event, b.ID, types.JSONB{"reason": reason})
	})
	if err != nil {
		return err
	}
	go func() {
		if err := lib.ReleaseHolds(b.ID, b.ListingID, b.StartDate, b.EndDate); err != nil {
			log.Printf("[Booking] Calendar release failed for %s: %s\n", b.ID, err.Error())
		}
	}()
	return nil
}

// ConfirmPickup moves a confirmed booking into fulfilment.
func ConfirmPickup(ctx context.Context, bookingId uuid.UUID, actorId uint) error {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		return err
	}
	if err := partyGuard(&booking, actorId); err != nil {
		return err
	}
	if err := pickupGuard(&booking, time.Now()); err != nil {
		return err
	}
	res := conn.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, types.BOOKING_CONFIRMED).
		Updates(map[string]any{
			"status":       types.BOOKING_FULFILLING,
			"picked_up_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.ErrConflict
	}
	return nil
}

// ConfirmReturn completes a fulfilling booking. Under the auto payout
// policy the owner transfer is attempted right away; a transfer failure is
// logged and left for the manual release path, it never undoes the return.
func ConfirmReturn(ctx context.Context, bookingId uuid.UUID, actorId uint) error {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		return err
	}
	if err := partyGuard(&booking, actorId); err != nil {
		return err
	}
	if booking.Status != types.BOOKING_FULFILLING {
		return types.ErrConflict
	}
	res := conn.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, types.BOOKING_FULFILLING).
		Updates(map[string]any{
			"status":      types.BOOKING_COMPLETED,
			"returned_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.ErrConflict
	}
	if config.PayoutPolicy() == string(types.PAYOUT_AUTO) {
		if err := ReleasePayout(ctx, bookingId); err != nil {
			log.Printf("[Booking] Auto payout failed for %s: %s\n", bookingId, err.Error())
		}
	}
	return nil
}

// ReportDispute freezes settlement for a booking in or past fulfilment. The
// owner payout ledger row is frozen so a pending release cannot settle
// while the dispute is open.
func ReportDispute(ctx context.Context, bookingId uuid.UUID, actorId uint, reason string) error {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		return err
	}
	if err := partyGuard(&booking, actorId); err != nil {
		return err
	}
	switch booking.Status {
	case types.BOOKING_FULFILLING, types.BOOKING_COMPLETED:
	default:
		return types.ErrConflict
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status IN ?", booking.ID, []types.BookingStatus{types.BOOKING_FULFILLING, types.BOOKING_COMPLETED}).
			Updates(map[string]any{
				"status":      types.BOOKING_DISPUTED,
				"disputed_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConflict
		}
		if err := freezePayout(tx, booking.ID); err != nil {
			return err
		}
		return RecordDomainEvent(tx, types.EVENT_DISPUTE_OPENED, booking.ID, types.JSONB{"reason": reason})
	})
}

func freezePayout(tx *gorm.DB, bookingId uuid.UUID) error {
	return tx.Model(&models.LedgerEntry{}).
		Where("booking_id = ? AND party = ? AND status = ?", bookingId, types.LEDGER_OWNER_PAYOUT, types.LEDGER_PENDING).
		Update("status", types.LEDGER_FROZEN).
		Error
}

// RecordRefund issues a partial or full refund against the captured
// payment. The cumulative refunded amount is monotonic and capped by the
// renter total; the cap is enforced in the conditional update so racing
// refunds cannot overshoot.
func RecordRefund(ctx context.Context, bookingId uuid.UUID, amountCents int64, reason string) error {
	conn := db.GetDb()
	var booking models.Booking
	if err := conn.First(&booking, "id = ?", bookingId).Error; err != nil {
		return err
	}
	switch booking.Status {
	case types.BOOKING_CONFIRMED, types.BOOKING_FULFILLING, types.BOOKING_COMPLETED, types.BOOKING_DISPUTED:
	default:
		return types.ErrConflict
	}
	if booking.CaptureRef == nil || booking.AuthorizationRef == nil {
		return types.ErrValidation
	}
	cumulative := booking.RefundedCents + amountCents
	if cumulative > booking.RenterTotalCents {
		return types.ErrValidation
	}

	if _, err := lib.RefundCapture(ctx, booking.ID, *booking.AuthorizationRef, amountCents, cumulative); err != nil {
		return err
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND refunded_cents + ? <= renter_total_cents", booking.ID, amountCents).
			Update("refunded_cents", gorm.Expr("refunded_cents + ?", amountCents))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConflict
		}
		if cumulative >= booking.RenterTotalCents {
			if err := tx.Model(&models.LedgerEntry{}).
				Where("booking_id = ? AND party = ?", booking.ID, types.LEDGER_RENTER_CHARGE).
				Update("status", types.LEDGER_REFUNDED).
				Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ExpireDueBookings cancels pending bookings whose approval deadline has
// passed, voiding each authorization first. A booking whose void fails is
// skipped and picked up again on the next sweep.
func ExpireDueBookings(ctx context.Context) (int, error) {
	conn := db.GetDb()
	var due []models.Booking
	err := conn.
		Where("status = ? AND approval_deadline < ?", types.BOOKING_PENDING_APPROVAL, time.Now()).
		Find(&due).
		Error
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		booking := &due[i]
		if booking.AuthorizationRef != nil {
			if err := lib.VoidAuthorization(ctx, booking.ID, *booking.AuthorizationRef); err != nil {
				log.Printf("[sweep] Void failed for booking %s: %s\n", booking.ID, err.Error())
				continue
			}
		}
		if err := cancelPending(booking, string(types.CANCEL_EXPIRED), types.EVENT_BOOKING_CANCELLED, nil); err != nil {
			log.Printf("[sweep] Cancel failed for booking %s: %s\n", booking.ID, err.Error())
			continue
		}
		expired++
	}
	if expired > 0 {
		log.Printf("[sweep] Expired %d booking(s)\n", expired)
	}
	return expired, nil
}
