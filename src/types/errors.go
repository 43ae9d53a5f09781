package types

import "errors"

// Sentinel errors for the booking lifecycle. Callers classify with
// errors.Is; domain code wraps these with fmt.Errorf("%w: ...").
var (
	// ErrValidation covers bad input and failed preconditions that are the
	// caller's fault. Not retriable.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means the operation lost a concurrent race: the booking is
	// no longer in the state the caller observed. Re-fetch before deciding.
	ErrConflict = errors.New("booking is no longer in the expected state")
	// ErrDeadlineExpired is terminal for the operation; the sweeper will
	// cancel the booking.
	ErrDeadlineExpired = errors.New("approval deadline has passed")
	ErrPaymentDeclined = errors.New("payment declined by processor")
	// ErrAuthorizationExpired means the payment hold lapsed before capture.
	ErrAuthorizationExpired = errors.New("payment authorization expired")
	// ErrProcessorUnavailable is an unknown outcome: the caller must re-query
	// processor state before retrying the mutating call.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	// ErrIntegrityMismatch flags a breakdown disagreement beyond rounding
	// tolerance. Logged for manual review; never blocks a transition.
	ErrIntegrityMismatch = errors.New("financial breakdown mismatch")
)
