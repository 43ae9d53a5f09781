package fees

import "math"

// PointValueCents is the redemption value of a single loyalty point.
const PointValueCents int64 = 10

type Terms struct {
	DailyRateCents       int64
	Days                 int64
	ServiceFeeRate       float64
	CommissionRate       float64
	InsuranceFeeCents    int64
	DeliveryFeeCents     int64
	SecurityDepositCents int64
	PointsToRedeem       int64
}

// Breakdown is the financial contract persisted on a booking at capture
// time. Immutable once attached; later refunds and disputes use the
// breakdown in force at capture, never recomputed terms.
type Breakdown struct {
	SubtotalCents         int64 `json:"subtotal_cents"`
	RenterServiceFeeCents int64 `json:"renter_service_fee_cents"`
	InsuranceFeeCents     int64 `json:"insurance_fee_cents"`
	DeliveryFeeCents      int64 `json:"delivery_fee_cents"`
	SecurityDepositCents  int64 `json:"security_deposit_cents"`
	PointsCreditCents     int64 `json:"points_credit_cents"`
	RenterTotalCents      int64 `json:"renter_total_cents"`
	OwnerCommissionCents  int64 `json:"owner_commission_cents"`
	OwnerNetCents         int64 `json:"owner_net_cents"`
	PlatformRevenueCents  int64 `json:"platform_revenue_cents"`
}

// ComputeBreakdown maps rental terms to the three-party money split. Pure
// and deterministic: identical input always yields identical output, which
// lets the reconciler recompute defensively and compare against the
// persisted breakdown. Intermediate sums stay unrounded; rounding to the
// smallest currency unit happens once, at the end, half-to-even.
func ComputeBreakdown(t Terms) Breakdown {
	subtotal := t.DailyRateCents * t.Days
	serviceFee := float64(subtotal) * t.ServiceFeeRate
	extras := float64(t.InsuranceFeeCents + t.DeliveryFeeCents + t.SecurityDepositCents)

	gross := float64(subtotal) + serviceFee + extras
	credit := float64(t.PointsToRedeem * PointValueCents)
	if credit > gross {
		credit = gross
	}
	total := gross - credit
	if total < 0 {
		total = 0
	}
	commission := float64(subtotal) * t.CommissionRate

	b := Breakdown{
		SubtotalCents:         subtotal,
		RenterServiceFeeCents: roundCents(serviceFee),
		InsuranceFeeCents:     t.InsuranceFeeCents,
		DeliveryFeeCents:      t.DeliveryFeeCents,
		SecurityDepositCents:  t.SecurityDepositCents,
		PointsCreditCents:     roundCents(credit),
		RenterTotalCents:      roundCents(total),
		OwnerCommissionCents:  roundCents(commission),
	}
	b.OwnerNetCents = subtotal - b.OwnerCommissionCents
	b.PlatformRevenueCents = b.RenterServiceFeeCents + b.OwnerCommissionCents
	return b
}

// RentalPortionCents is the part of the renter total that reconciles
// against the owner payout and platform take: total minus the pass-through
// amounts (deposit, insurance, delivery), with the points credit added
// back.
func (b Breakdown) RentalPortionCents() int64 {
	return b.RenterTotalCents - b.SecurityDepositCents - b.InsuranceFeeCents - b.DeliveryFeeCents + b.PointsCreditCents
}

// Conserved reports whether the rental-fee portion fully reconciles between
// owner payout and platform revenue, within one currency unit.
func (b Breakdown) Conserved() bool {
	diff := b.RentalPortionCents() - (b.OwnerNetCents + b.PlatformRevenueCents)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func roundCents(v float64) int64 {
	return int64(math.RoundToEven(v))
}
