package models

import (
	"rbs/src/fees"
	"rbs/src/types"
	"time"

	"github.com/google/uuid"
)

// Booking is the central entity of the settlement engine. Status is mutated
// only through conditional updates in the common package; the processor
// references are write-once.
type Booking struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	RenterID  uint      `json:"renter_id"`
	OwnerID   uint      `json:"owner_id"`
	ListingID uint      `json:"listing_id"`

	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	DailyRateCents int64     `json:"daily_rate_cents"`
	Currency       string    `json:"currency"`

	Status types.BookingStatus `gorm:"default:'pending_approval'" json:"status"`

	AuthorizationRef *string `json:"authorization_ref,omitempty"`
	CaptureRef       *string `json:"capture_ref,omitempty"`
	TransferRef      *string `json:"transfer_ref,omitempty"`

	ApprovalDeadline time.Time `json:"approval_deadline"`
	ApprovalNotes    *string   `json:"approval_notes,omitempty"`
	CancelReason     *string   `json:"cancel_reason,omitempty"`
	ReviewFlag       *string   `json:"review_flag,omitempty"`

	SubtotalCents         int64 `json:"subtotal_cents,omitempty"`
	RenterServiceFeeCents int64 `json:"renter_service_fee_cents,omitempty"`
	InsuranceFeeCents     int64 `json:"insurance_fee_cents,omitempty"`
	DeliveryFeeCents      int64 `json:"delivery_fee_cents,omitempty"`
	SecurityDepositCents  int64 `json:"security_deposit_cents,omitempty"`
	PointsToRedeem        int64 `json:"points_to_redeem,omitempty"`
	PointsCreditCents     int64 `json:"points_credit_cents,omitempty"`
	RenterTotalCents      int64 `json:"renter_total_cents,omitempty"`
	OwnerCommissionCents  int64 `json:"owner_commission_cents,omitempty"`
	OwnerNetCents         int64 `json:"owner_net_cents,omitempty"`
	PlatformRevenueCents  int64 `json:"platform_revenue_cents,omitempty"`
	RefundedCents         int64 `json:"refunded_cents,omitempty"`

	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	CapturedAt    *time.Time `json:"captured_at,omitempty"`
	PickedUpAt    *time.Time `json:"picked_up_at,omitempty"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
	DisputedAt    *time.Time `json:"disputed_at,omitempty"`
	TransferredAt *time.Time `json:"transferred_at,omitempty"`

	Renter  *User    `gorm:"foreignKey:renter_id" json:"renter,omitempty"`
	Owner   *User    `gorm:"foreignKey:owner_id" json:"owner,omitempty"`
	Listing *Listing `gorm:"foreignKey:listing_id" json:"listing,omitempty"`

	types.Timestamps
}

// Days counts billable rental days, minimum one.
func (b *Booking) Days() int64 {
	days := int64(b.EndDate.Sub(b.StartDate).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

// RentalTerms assembles the fee-engine input from the booking's persisted
// terms plus the configured rates.
func (b *Booking) RentalTerms(serviceFeeRate, commissionRate float64) fees.Terms {
	return fees.Terms{
		DailyRateCents:       b.DailyRateCents,
		Days:                 b.Days(),
		ServiceFeeRate:       serviceFeeRate,
		CommissionRate:       commissionRate,
		InsuranceFeeCents:    b.InsuranceFeeCents,
		DeliveryFeeCents:     b.DeliveryFeeCents,
		SecurityDepositCents: b.SecurityDepositCents,
		PointsToRedeem:       b.PointsToRedeem,
	}
}
