package common

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"rbs/src/config"
	"rbs/src/db"
	"rbs/src/lib"
	"rbs/src/models"
	"rbs/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordDomainEvent writes an outbox row inside the caller's transaction so
// the event is durable iff the transition that produced it commits.
func RecordDomainEvent(tx *gorm.DB, name types.DomainEvent, bookingId uuid.UUID, payload types.JSONB) error {
	event := models.OutboxEvent{
		ID:        uuid.New(),
		Name:      name,
		BookingID: bookingId,
		Payload:   payload,
		Status:    types.OUTBOX_PENDING,
	}
	return tx.Create(&event).Error
}

// DispatchOutbox publishes pending outbox rows to the notification broker
// and marks them sent. Runs on a schedule; a publish failure leaves the row
// pending with its attempt count bumped so the next run retries it.
func DispatchOutbox() {
	conn := db.GetDb()
	var events []models.OutboxEvent
	err := conn.
		Where(&models.OutboxEvent{Status: types.OUTBOX_PENDING}).
		Order("created_at asc").
		Limit(50).
		Find(&events).
		Error
	if err != nil {
		log.Printf("[outbox] Error loading pending events: %s\n", err.Error())
		return
	}
	for _, event := range events {
		if err := publishEvent(&event); err != nil {
			log.Printf("[outbox] Error publishing %s (%s): %s\n", event.Name, event.ID, err.Error())
			conn.Model(&models.OutboxEvent{}).
				Where("id = ?", event.ID).
				Update("attempts", gorm.Expr("attempts + 1"))
			continue
		}
		now := time.Now()
		conn.Model(&models.OutboxEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]any{
				"status":   types.OUTBOX_SENT,
				"sent_at":  now,
				"attempts": gorm.Expr("attempts + 1"),
			})
	}
}

func publishEvent(event *models.OutboxEvent) error {
	body := map[string]any{
		"id":         event.ID.String(),
		"name":       string(event.Name),
		"booking_id": event.BookingID.String(),
		"payload":    map[string]any(event.Payload),
	}
	env := config.API_ENV
	if env == string(types.Test) || env == string(types.Production) {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		queue := os.Getenv("BOOKING_EVENTS_QUEUE")
		return lib.SQSSendMessage(queue, string(raw))
	}
	return lib.KafkaProduceMessage("rbsOutbox", "booking-events", body)
}
