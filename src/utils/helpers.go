package utils

import (
	"fmt"
	"time"

	"rbs/src/config"

	"github.com/google/uuid"
)

func Ptr[T any](v T) *T {
	return &v
}

// IdempotencyKey derives the processor idempotency key for a money
// operation on a booking. Deterministic so retries of the same logical
// operation always present the same key.
func IdempotencyKey(bookingId uuid.UUID, op string) string {
	return fmt.Sprintf("rbs:%s:%s", op, bookingId)
}

// ParseBookingDate parses a rental date in the wire format and truncates
// it to the minute.
func ParseBookingDate(value string) (*time.Time, error) {
	t, err := time.Parse(config.TIME_PARSE_FORMAT, value)
	if err != nil {
		return nil, err
	}
	t = t.Truncate(time.Minute)
	return &t, nil
}
