package lib

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"rbs/src/types"
	"rbs/src/utils"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

var processorBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
	Name:    "stripe",
	Timeout: 30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	},
	OnStateChange: func(name string, from, to gobreaker.State) {
		log.Printf("[%s] breaker %s -> %s\n", name, from.String(), to.String())
	},
})

func execProcessor(fn func() (any, error)) (any, error) {
	out, err := processorBreaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.ErrProcessorUnavailable
	}
	return out, err
}

// CapturePayment captures the authorized payment for a booking and returns
// the processor charge reference. The idempotency key is derived from the
// booking id so concurrent approvals collapse to a single capture on the
// processor side. An intent that was already captured is treated as
// success.
func CapturePayment(ctx context.Context, bookingId uuid.UUID, intentId string, amountCents int64) (string, error) {
	sc := GetStripeClient()
	params := stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amountCents),
	}
	params.SetIdempotencyKey(utils.IdempotencyKey(bookingId, "capture"))
	out, err := execProcessor(func() (any, error) {
		return sc.V1PaymentIntents.Capture(ctx, intentId, &params)
	})
	if err != nil {
		return mapCaptureError(ctx, intentId, err)
	}
	pi := out.(*stripe.PaymentIntent)
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		log.Printf("[StripeCapture] Intent %s in unexpected status after capture: %s\n", intentId, pi.Status)
		return "", types.ErrProcessorUnavailable
	}
	return chargeRef(pi), nil
}

func mapCaptureError(ctx context.Context, intentId string, err error) (string, error) {
	if errors.Is(err, types.ErrProcessorUnavailable) {
		return "", err
	}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard:
			return "", types.ErrPaymentDeclined
		case stripe.ErrorCodePaymentIntentUnexpectedState:
			return resolveIntentState(ctx, intentId)
		}
	}
	log.Printf("[StripeCapture] Error capturing intent %s: %s\n", intentId, err.Error())
	return "", types.ErrProcessorUnavailable
}

// resolveIntentState re-queries the intent when the processor reports it is
// not capturable. A concurrent or earlier capture that already succeeded is
// surfaced as success with its charge reference.
func resolveIntentState(ctx context.Context, intentId string) (string, error) {
	sc := GetStripeClient()
	out, err := execProcessor(func() (any, error) {
		return sc.V1PaymentIntents.Retrieve(ctx, intentId, nil)
	})
	if err != nil {
		log.Printf("[StripeCapture] Error resolving intent %s: %s\n", intentId, err.Error())
		return "", types.ErrProcessorUnavailable
	}
	pi := out.(*stripe.PaymentIntent)
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return chargeRef(pi), nil
	case stripe.PaymentIntentStatusCanceled:
		return "", types.ErrAuthorizationExpired
	default:
		return "", types.ErrProcessorUnavailable
	}
}

// VoidAuthorization cancels the uncaptured authorization for a rejected or
// expired booking. An intent that is already canceled counts as voided.
func VoidAuthorization(ctx context.Context, bookingId uuid.UUID, intentId string) error {
	sc := GetStripeClient()
	params := stripe.PaymentIntentCancelParams{}
	params.SetIdempotencyKey(utils.IdempotencyKey(bookingId, "void"))
	_, err := execProcessor(func() (any, error) {
		return sc.V1PaymentIntents.Cancel(ctx, intentId, &params)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrProcessorUnavailable) {
		return err
	}
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
		out, rerr := execProcessor(func() (any, error) {
			return sc.V1PaymentIntents.Retrieve(ctx, intentId, nil)
		})
		if rerr == nil && out.(*stripe.PaymentIntent).Status == stripe.PaymentIntentStatusCanceled {
			return nil
		}
	}
	log.Printf("[StripeVoid] Error voiding intent %s: %s\n", intentId, err.Error())
	return types.ErrProcessorUnavailable
}

// TransferPayout moves the owner's net amount to their connected account.
func TransferPayout(ctx context.Context, bookingId uuid.UUID, destination string, amountCents int64, currency string) (string, error) {
	sc := GetStripeClient()
	params := stripe.TransferCreateParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(destination),
		TransferGroup: stripe.String(bookingId.String()),
		Metadata: map[string]string{
			"booking_id": bookingId.String(),
		},
	}
	params.SetIdempotencyKey(utils.IdempotencyKey(bookingId, "transfer"))
	out, err := execProcessor(func() (any, error) {
		return sc.V1Transfers.Create(ctx, &params)
	})
	if err != nil {
		if errors.Is(err, types.ErrProcessorUnavailable) {
			return "", err
		}
		log.Printf("[StripeTransfer] Error transferring payout for booking %s: %s\n", bookingId, err.Error())
		return "", types.ErrProcessorUnavailable
	}
	tr := out.(*stripe.Transfer)
	return tr.ID, nil
}

// RefundCapture refunds part or all of a captured payment. The idempotency
// key carries the cumulative refunded total so each distinct refund amount
// gets its own key while retries of the same request reuse it.
func RefundCapture(ctx context.Context, bookingId uuid.UUID, intentId string, amountCents, cumulativeCents int64) (string, error) {
	sc := GetStripeClient()
	params := stripe.RefundCreateParams{
		PaymentIntent: stripe.String(intentId),
		Amount:        stripe.Int64(amountCents),
	}
	params.SetIdempotencyKey(fmt.Sprintf("%s:%d", utils.IdempotencyKey(bookingId, "refund"), cumulativeCents))
	out, err := execProcessor(func() (any, error) {
		return sc.V1Refunds.Create(ctx, &params)
	})
	if err != nil {
		if errors.Is(err, types.ErrProcessorUnavailable) {
			return "", err
		}
		log.Printf("[StripeRefund] Error refunding booking %s: %s\n", bookingId, err.Error())
		return "", types.ErrProcessorUnavailable
	}
	re := out.(*stripe.Refund)
	return re.ID, nil
}

func chargeRef(pi *stripe.PaymentIntent) string {
	if pi.LatestCharge != nil {
		return pi.LatestCharge.ID
	}
	return pi.ID
}
