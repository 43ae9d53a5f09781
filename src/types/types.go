package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type BookingStatus string

const (
	BOOKING_PENDING_APPROVAL BookingStatus = "pending_approval"
	BOOKING_CONFIRMED        BookingStatus = "confirmed"
	BOOKING_FULFILLING       BookingStatus = "fulfilling"
	BOOKING_COMPLETED        BookingStatus = "completed"
	BOOKING_CANCELLED        BookingStatus = "cancelled"
	BOOKING_DISPUTED         BookingStatus = "disputed"
)

type LedgerParty string

const (
	LEDGER_RENTER_CHARGE    LedgerParty = "renter_charge"
	LEDGER_OWNER_PAYOUT     LedgerParty = "owner_payout"
	LEDGER_PLATFORM_REVENUE LedgerParty = "platform_revenue"
)

type LedgerStatus string

const (
	LEDGER_PENDING  LedgerStatus = "pending"
	LEDGER_SETTLED  LedgerStatus = "settled"
	LEDGER_FROZEN   LedgerStatus = "frozen"
	LEDGER_REFUNDED LedgerStatus = "refunded"
)

type OutboxStatus string

const (
	OUTBOX_PENDING OutboxStatus = "pending"
	OUTBOX_SENT    OutboxStatus = "sent"
)

type DomainEvent string

const (
	EVENT_BOOKING_APPROVED  DomainEvent = "BookingApproved"
	EVENT_BOOKING_REJECTED  DomainEvent = "BookingRejected"
	EVENT_BOOKING_CANCELLED DomainEvent = "BookingCancelled"
	EVENT_PAYMENT_CAPTURED  DomainEvent = "PaymentCaptured"
	EVENT_DISPUTE_OPENED    DomainEvent = "DisputeOpened"
	EVENT_TRANSFER_SETTLED  DomainEvent = "TransferSettled"
)

type PayoutPolicy string

const (
	PAYOUT_MANUAL PayoutPolicy = "manual"
	PAYOUT_AUTO   PayoutPolicy = "auto"
)

type APIEnv string

const (
	Local      APIEnv = "local"
	Test       APIEnv = "test"
	Production APIEnv = "production"
)

type CancelReason string

const (
	CANCEL_REJECTED       CancelReason = "rejected"
	CANCEL_EXPIRED        CancelReason = "expired"
	CANCEL_PAYMENT_FAILED CancelReason = "payment failed"
)

type ReviewFlag string

const (
	REVIEW_INTEGRITY_MISMATCH    ReviewFlag = "integrity_mismatch"
	REVIEW_CAPTURE_ON_CANCELLED  ReviewFlag = "capture_on_cancelled"
	REVIEW_REFUND_ON_OVERCAPTURE ReviewFlag = "refund_on_overcapture"
)

type CreateBookingRequestBody struct {
	RenterID             uint   `json:"renter_id" binding:"required"`
	OwnerID              uint   `json:"owner_id" binding:"required"`
	ListingID            uint   `json:"listing_id" binding:"required"`
	StartDate            string `json:"start_date" binding:"required,rentaldate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndDate              string `json:"end_date" binding:"required,rentaldate,gtdate=StartDate" time_format:"2006-01-02 15:04:05 -07:00"`
	DailyRateCents       int64  `json:"daily_rate_cents" binding:"required,gt=0"`
	Currency             string `json:"currency" binding:"required,len=3"`
	AuthorizationRef     string `json:"authorization_ref" binding:"required"`
	ApprovalDeadline     string `json:"approval_deadline" binding:"required,rentaldate" time_format:"2006-01-02 15:04:05 -07:00"`
	InsuranceFeeCents    int64  `json:"insurance_fee_cents,omitempty" binding:"omitempty,gte=0"`
	DeliveryFeeCents     int64  `json:"delivery_fee_cents,omitempty" binding:"omitempty,gte=0"`
	SecurityDepositCents int64  `json:"security_deposit_cents,omitempty" binding:"omitempty,gte=0"`
	PointsToRedeem       int64  `json:"points_to_redeem,omitempty" binding:"omitempty,gte=0"`
}

type ApproveBookingRequestBody struct {
	Notes string `json:"notes,omitempty"`
}

type RejectBookingRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type DisputeBookingRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type RefundBookingRequestBody struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Reason      string `json:"reason,omitempty"`
}

type BookingURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Handler func(payload string)
