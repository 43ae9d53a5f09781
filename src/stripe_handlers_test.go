package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"rbs/src/lib"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const webhookSecret = "whsec_test_secret"

func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), webhookSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
	req, err := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
	assert.Nil(t, err)
	req.Header.Set("Stripe-Signature", header)
	return req
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	os.Setenv("STRIPE_WEBHOOK_SECRET", webhookSecret)
	defer os.Unsetenv("STRIPE_WEBHOOK_SECRET")

	router := setupRouter()
	stripeWebhookRoute(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestWebhookAcksDuplicateEvent(t *testing.T) {
	os.Setenv("STRIPE_WEBHOOK_SECRET", webhookSecret)
	defer os.Unsetenv("STRIPE_WEBHOOK_SECRET")

	rdb, mock := redismock.NewClientMock()
	lib.NewRedisClient(rdb)
	defer lib.NewRedisClient(nil)

	payload := fmt.Sprintf(`{
		"id": "evt_dup_1",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "object": "payment_intent"}}
	}`, stripe.APIVersion)

	mock.ExpectSetNX("stripe:event:evt_dup_1", 1, 24*time.Hour).SetVal(false)

	router := setupRouter()
	stripeWebhookRoute(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedWebhookRequest(t, payload))

	assert.Equal(t, 200, w.Code)
	assert.Nil(t, mock.ExpectationsWereMet())
}
