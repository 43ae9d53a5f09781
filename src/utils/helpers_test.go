package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("5b5fb0e4-9a6b-4c6e-8f2d-6d1c2a3b4c5d")
	key := IdempotencyKey(id, "capture")
	assert.Equal(t, "rbs:capture:5b5fb0e4-9a6b-4c6e-8f2d-6d1c2a3b4c5d", key)
	assert.Equal(t, key, IdempotencyKey(id, "capture"))
	assert.NotEqual(t, key, IdempotencyKey(id, "void"))
}

func TestParseBookingDate(t *testing.T) {
	parsed, err := ParseBookingDate("2026-09-01 10:30:45 +00:00")
	assert.NoError(t, err)
	assert.Equal(t, 30, parsed.Minute())
	assert.Equal(t, 0, parsed.Second())

	_, err = ParseBookingDate("not-a-date")
	assert.Error(t, err)
}
