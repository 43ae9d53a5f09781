package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

var calendarHttp = &http.Client{Timeout: 5 * time.Second}

type calendarHoldBody struct {
	BookingID uuid.UUID `json:"booking_id"`
	ListingID uint      `json:"listing_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ConfirmHolds asks the availability calendar to convert a booking's
// tentative holds into confirmed blocks. Best effort: failures are returned
// for logging but never roll back a booking transition.
func ConfirmHolds(bookingId uuid.UUID, listingId uint, startDate, endDate time.Time) error {
	return postCalendar("confirm", bookingId, listingId, startDate, endDate)
}

// ReleaseHolds frees a cancelled or expired booking's calendar holds.
func ReleaseHolds(bookingId uuid.UUID, listingId uint, startDate, endDate time.Time) error {
	return postCalendar("release", bookingId, listingId, startDate, endDate)
}

func postCalendar(action string, bookingId uuid.UUID, listingId uint, startDate, endDate time.Time) error {
	base := os.Getenv("CALENDAR_API_URL")
	if base == "" {
		return nil
	}
	body, _ := json.Marshal(calendarHoldBody{
		BookingID: bookingId,
		ListingID: listingId,
		StartDate: startDate,
		EndDate:   endDate,
	})
	url := fmt.Sprintf("%s/holds/%s", base, action)
	res, err := calendarHttp.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[calendar] Error on %s for booking %s: %s\n", action, bookingId, err.Error())
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		log.Printf("[calendar] %s for booking %s returned %d\n", action, bookingId, res.StatusCode)
		return fmt.Errorf("calendar %s failed with status %d", action, res.StatusCode)
	}
	return nil
}
