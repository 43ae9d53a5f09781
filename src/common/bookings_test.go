package common

import (
	"context"
	"log"
	"testing"
	"time"

	"rbs/src/db"
	"rbs/src/fees"
	"rbs/src/models"
	"rbs/src/types"
	"rbs/src/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

func pendingBooking(deadline time.Time) *models.Booking {
	return &models.Booking{
		ID:               uuid.New(),
		RenterID:         1,
		OwnerID:          2,
		Status:           types.BOOKING_PENDING_APPROVAL,
		AuthorizationRef: utils.Ptr("pi_123"),
		ApprovalDeadline: deadline,
		StartDate:        time.Now().Add(24 * time.Hour),
		EndDate:          time.Now().Add(96 * time.Hour),
		DailyRateCents:   30000,
		Currency:         "usd",
	}
}

func TestApprovalGuard(t *testing.T) {
	now := time.Now()

	t.Run("pending booking before deadline passes", func(t *testing.T) {
		b := pendingBooking(now.Add(time.Hour))
		assert.NoError(t, approvalGuard(b, b.OwnerID, now))
	})

	t.Run("only the owner may approve", func(t *testing.T) {
		b := pendingBooking(now.Add(time.Hour))
		assert.ErrorIs(t, approvalGuard(b, b.RenterID, now), types.ErrValidation)
	})

	t.Run("non-pending booking conflicts", func(t *testing.T) {
		b := pendingBooking(now.Add(time.Hour))
		b.Status = types.BOOKING_CONFIRMED
		assert.ErrorIs(t, approvalGuard(b, b.OwnerID, now), types.ErrConflict)
	})

	t.Run("past deadline is terminal", func(t *testing.T) {
		b := pendingBooking(now.Add(-time.Minute))
		assert.ErrorIs(t, approvalGuard(b, b.OwnerID, now), types.ErrDeadlineExpired)
	})

	t.Run("missing authorization is invalid", func(t *testing.T) {
		b := pendingBooking(now.Add(time.Hour))
		b.AuthorizationRef = nil
		assert.ErrorIs(t, approvalGuard(b, b.OwnerID, now), types.ErrValidation)
	})
}

func TestPartyGuard(t *testing.T) {
	b := pendingBooking(time.Now().Add(time.Hour))
	assert.NoError(t, partyGuard(b, b.RenterID))
	assert.NoError(t, partyGuard(b, b.OwnerID))
	assert.ErrorIs(t, partyGuard(b, 99), types.ErrValidation)
}

func TestPickupGuard(t *testing.T) {
	now := time.Now()
	b := pendingBooking(now.Add(time.Hour))
	b.Status = types.BOOKING_CONFIRMED
	b.StartDate = now.Add(-time.Hour)

	assert.NoError(t, pickupGuard(b, now))

	b.StartDate = now.Add(time.Hour)
	assert.ErrorIs(t, pickupGuard(b, now), types.ErrValidation)

	b.Status = types.BOOKING_FULFILLING
	assert.ErrorIs(t, pickupGuard(b, now), types.ErrConflict)
}

func TestFinalizeApprovalLosesRace(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	b := pendingBooking(time.Now().Add(time.Hour))
	bd := fees.ComputeBreakdown(b.RentalTerms(0.15, 0.20))
	err := finalizeApproval(b, bd, "ch_1", "", true)

	assert.ErrorIs(t, err, types.ErrConflict)
	assert.Equal(t, types.BOOKING_PENDING_APPROVAL, b.Status)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestFinalizeApprovalChecksDeadlineAtCommit(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	// The conditional update must re-check the deadline: the inline guard
	// runs before the capture call, and the deadline can lapse while the
	// capture is in flight.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET (.+) WHERE (.+)approval_deadline >= (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	b := pendingBooking(time.Now().Add(-time.Hour))
	bd := fees.ComputeBreakdown(b.RentalTerms(0.15, 0.20))
	err := finalizeApproval(b, bd, "ch_1", "", true)

	assert.ErrorIs(t, err, types.ErrConflict)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestFinalizeApprovalCommitsLedgerAndOutbox(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "ledger_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))
	mock.ExpectExec(`INSERT INTO "outbox_events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "outbox_events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := pendingBooking(time.Now().Add(time.Hour))
	bd := fees.ComputeBreakdown(b.RentalTerms(0.15, 0.20))
	err := finalizeApproval(b, bd, "ch_1", "looks good", true)

	assert.NoError(t, err)
	assert.Equal(t, types.BOOKING_CONFIRMED, b.Status)
	if assert.NotNil(t, b.CaptureRef) {
		assert.Equal(t, "ch_1", *b.CaptureRef)
	}
	assert.Equal(t, bd.RenterTotalCents, b.RenterTotalCents)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCancelPendingLosesRace(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	b := pendingBooking(time.Now().Add(time.Hour))
	err := cancelPending(b, string(types.CANCEL_EXPIRED), types.EVENT_BOOKING_CANCELLED, nil)

	assert.ErrorIs(t, err, types.ErrConflict)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestExpireDueBookingsNoneDue(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	count, err := ExpireDueBookings(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Nil(t, mock.ExpectationsWereMet())
}
