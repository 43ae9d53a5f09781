package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestComputeBreakdownBasic(t *testing.T) {
	b := ComputeBreakdown(Terms{
		DailyRateCents: 3000,
		Days:           3,
		ServiceFeeRate: 0.15,
		CommissionRate: 0.20,
	})

	assert.Equal(t, int64(9000), b.SubtotalCents)
	assert.Equal(t, int64(1350), b.RenterServiceFeeCents)
	assert.Equal(t, int64(10350), b.RenterTotalCents)
	assert.Equal(t, int64(1800), b.OwnerCommissionCents)
	assert.Equal(t, int64(7200), b.OwnerNetCents)
	assert.Equal(t, int64(3150), b.PlatformRevenueCents)
	assert.True(t, b.Conserved())
}

func TestComputeBreakdownPointsCredit(t *testing.T) {
	b := ComputeBreakdown(Terms{
		DailyRateCents: 2000,
		Days:           3,
		ServiceFeeRate: 0.15,
		CommissionRate: 0.20,
		PointsToRedeem: 100,
	})

	assert.Equal(t, int64(6000), b.SubtotalCents)
	assert.Equal(t, int64(900), b.RenterServiceFeeCents)
	assert.Equal(t, int64(1000), b.PointsCreditCents)
	assert.Equal(t, int64(5900), b.RenterTotalCents)
	assert.True(t, b.Conserved())
}

func TestComputeBreakdownOptionalFees(t *testing.T) {
	b := ComputeBreakdown(Terms{
		DailyRateCents:       5000,
		Days:                 2,
		ServiceFeeRate:       0.15,
		CommissionRate:       0.20,
		InsuranceFeeCents:    500,
		DeliveryFeeCents:     750,
		SecurityDepositCents: 10000,
	})

	assert.Equal(t, int64(10000), b.SubtotalCents)
	assert.Equal(t, int64(1500), b.RenterServiceFeeCents)
	assert.Equal(t, int64(22750), b.RenterTotalCents)
	assert.Equal(t, int64(8000), b.OwnerNetCents)
	assert.Equal(t, int64(3500), b.PlatformRevenueCents)
	assert.True(t, b.Conserved())
}

func TestComputeBreakdownCreditNeverNegative(t *testing.T) {
	b := ComputeBreakdown(Terms{
		DailyRateCents: 100,
		Days:           1,
		ServiceFeeRate: 0.15,
		CommissionRate: 0.20,
		PointsToRedeem: 100000,
	})

	assert.Equal(t, int64(0), b.RenterTotalCents)
	assert.LessOrEqual(t, b.PointsCreditCents, int64(116))
	assert.True(t, b.Conserved())
}

func TestComputeBreakdownDeterministic(t *testing.T) {
	terms := Terms{
		DailyRateCents:    3333,
		Days:              7,
		ServiceFeeRate:    0.15,
		CommissionRate:    0.20,
		InsuranceFeeCents: 129,
		PointsToRedeem:    13,
	}
	first := ComputeBreakdown(terms)
	for range 50 {
		assert.Equal(t, first, ComputeBreakdown(terms))
	}
}

func TestBreakdownConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		terms := Terms{
			DailyRateCents:       rapid.Int64Range(1, 10_000_00).Draw(t, "dailyRate"),
			Days:                 rapid.Int64Range(1, 365).Draw(t, "days"),
			ServiceFeeRate:       rapid.Float64Range(0, 0.5).Draw(t, "serviceFeeRate"),
			CommissionRate:       rapid.Float64Range(0, 0.5).Draw(t, "commissionRate"),
			InsuranceFeeCents:    rapid.Int64Range(0, 100_00).Draw(t, "insurance"),
			DeliveryFeeCents:     rapid.Int64Range(0, 100_00).Draw(t, "delivery"),
			SecurityDepositCents: rapid.Int64Range(0, 1000_00).Draw(t, "deposit"),
			PointsToRedeem:       rapid.Int64Range(0, 10_000).Draw(t, "points"),
		}
		b := ComputeBreakdown(terms)

		if b.RenterTotalCents < 0 {
			t.Fatalf("renter total went negative: %d", b.RenterTotalCents)
		}
		if b.OwnerNetCents+b.OwnerCommissionCents != b.SubtotalCents {
			t.Fatalf("owner split does not cover subtotal: %d + %d != %d",
				b.OwnerNetCents, b.OwnerCommissionCents, b.SubtotalCents)
		}
		if !b.Conserved() {
			t.Fatalf("rental portion %d does not reconcile with ownerNet %d + platform %d",
				b.RentalPortionCents(), b.OwnerNetCents, b.PlatformRevenueCents)
		}
	})
}
