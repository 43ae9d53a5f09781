package common

import (
	"context"
	"testing"

	"rbs/src/db"
	"rbs/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReconcileTransferUnknownReturnsError(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// An unresolvable transfer must not be acked: the dedup record would
	// make the redelivered event a no-op and the payout row would stay
	// pending forever.
	err := ReconcileTransferPaid(context.Background(), "tr_unknown", "")

	assert.Error(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestReconcileTransferResolvesByBookingMetadata(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	bookingId := uuid.New()

	// transfer_ref lookup misses: the local write from the release path has
	// not committed yet. The metadata booking id resolves the booking and
	// the reconciler records the transfer ref itself.
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "owner_net_cents", "currency"}).
			AddRow(bookingId, string(types.BOOKING_COMPLETED), int64(68000), "usd"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET (.+)transfer_ref(.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "ledger_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "outbox_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := ReconcileTransferPaid(context.Background(), "tr_123", bookingId.String())

	assert.NoError(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestReconcileTransferSettlesPendingPayout(t *testing.T) {
	d, mock := newMockDB(t)
	db.NewDB(d)

	bookingId := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "transfer_ref", "owner_net_cents", "currency"}).
			AddRow(bookingId, string(types.BOOKING_COMPLETED), "tr_123", int64(68000), "usd"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "ledger_entries"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "outbox_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := ReconcileTransferPaid(context.Background(), "tr_123", bookingId.String())

	assert.NoError(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}
