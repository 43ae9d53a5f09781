package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"rbs/src/common"
	"rbs/src/db"
	"rbs/src/lib"
	"rbs/src/models"
	"rbs/src/types"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm/clause"
)

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.JSON(http.StatusBadRequest, gin.H{"error": types.ErrInvalidSignature.Error()})
			return
		}
		log.Printf("[StripeEvent] %s %s\n", event.ID, event.Type)

		if seenBefore(ctx.Request.Context(), &event) {
			ctx.Status(http.StatusOK)
			return
		}

		if err := dispatchStripeEvent(ctx.Request.Context(), &event); err != nil {
			log.Printf("[StripeEvent] Error applying %s: %s\n", event.ID, err.Error())
			// Drop the dedup record so the redelivery is processed again.
			forgetEvent(ctx.Request.Context(), event.ID)
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}

// seenBefore records the event id and reports whether it was already
// processed. Redis answers the common duplicate fast; the insert with
// ON CONFLICT DO NOTHING is the authoritative gate.
func seenBefore(ctx context.Context, event *stripe.Event) bool {
	rdb := lib.GetRedisClient()
	if rdb != nil {
		ok, err := rdb.SetNX(ctx, "stripe:event:"+event.ID, 1, 24*time.Hour).Result()
		if err == nil && !ok {
			log.Printf("[StripeEvent] Duplicate %s\n", event.ID)
			return true
		}
	}
	conn := db.GetDb()
	record := models.WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   types.JSONB{"raw": string(event.Data.Raw)},
	}
	res := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		log.Printf("[StripeEvent] Error recording %s: %s\n", event.ID, res.Error.Error())
		return false
	}
	if res.RowsAffected == 0 {
		log.Printf("[StripeEvent] Duplicate %s\n", event.ID)
		return true
	}
	return false
}

func forgetEvent(ctx context.Context, eventId string) {
	conn := db.GetDb()
	conn.Delete(&models.WebhookEvent{}, "event_id = ?", eventId)
	if rdb := lib.GetRedisClient(); rdb != nil {
		rdb.Del(ctx, "stripe:event:"+eventId)
	}
}

func dispatchStripeEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
			return nil
		}
		chargeId := pi.ID
		if pi.LatestCharge != nil {
			chargeId = pi.LatestCharge.ID
		}
		return common.ReconcileCaptureSucceeded(ctx, pi.ID, chargeId, pi.AmountReceived)
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
			return nil
		}
		return common.ReconcileCaptureFailed(ctx, pi.ID)
	case "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
			return nil
		}
		return common.ReconcileAuthorizationCanceled(ctx, pi.ID)
	case "transfer.created", "transfer.updated":
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			log.Printf("[Stripe] Error parsing Transfer: %s\n", err.Error())
			return nil
		}
		return common.ReconcileTransferPaid(ctx, tr.ID, tr.Metadata["booking_id"])
	case "charge.dispute.created":
		var dp stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dp); err != nil {
			log.Printf("[Stripe] Error parsing Dispute: %s\n", err.Error())
			return nil
		}
		chargeId := ""
		if dp.Charge != nil {
			chargeId = dp.Charge.ID
		}
		return common.ReconcileDisputeOpened(ctx, chargeId, string(dp.Reason))
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			log.Printf("[Stripe] Error parsing Charge: %s\n", err.Error())
			return nil
		}
		return common.ReconcileRefund(ctx, ch.ID, ch.AmountRefunded)
	default:
		log.Printf("[StripeEvent] Ignoring %s\n", event.Type)
		return nil
	}
}
