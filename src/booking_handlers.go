package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"rbs/src/common"
	"rbs/src/db"
	"rbs/src/lib"
	"rbs/src/models"
	"rbs/src/types"
	"rbs/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrDeadlineExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrPaymentDeclined), errors.Is(err, types.ErrAuthorizationExpired):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrProcessorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func bindBookingId(ctx *gin.Context) (uuid.UUID, bool) {
	var params types.BookingURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(params.ID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, false
	}
	return id, true
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			startDate, err := utils.ParseBookingDate(body.StartDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			endDate, err := utils.ParseBookingDate(body.EndDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			deadline, err := utils.ParseBookingDate(body.ApprovalDeadline)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if deadline.Before(time.Now()) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "approval_deadline already passed"})
				return
			}
			booking := models.Booking{
				RenterID:             body.RenterID,
				OwnerID:              body.OwnerID,
				ListingID:            body.ListingID,
				StartDate:            *startDate,
				EndDate:              *endDate,
				DailyRateCents:       body.DailyRateCents,
				Currency:             body.Currency,
				AuthorizationRef:     utils.Ptr(body.AuthorizationRef),
				ApprovalDeadline:     *deadline,
				InsuranceFeeCents:    body.InsuranceFeeCents,
				DeliveryFeeCents:     body.DeliveryFeeCents,
				SecurityDepositCents: body.SecurityDepositCents,
				PointsToRedeem:       body.PointsToRedeem,
				Status:               types.BOOKING_PENDING_APPROVAL,
			}
			db := db.GetDb()
			if err := db.Create(&booking).Error; err != nil {
				log.Printf("[Booking] Error creating booking: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			// Safety net for the interval sweep: one shot right at the
			// deadline so expiry is not delayed by a full sweep period.
			_, err = lib.CreateOneTimeCronJob(booking.ApprovalDeadline.Add(time.Second), func() {
				common.ExpireDueBookings(context.Background())
			})
			if err != nil {
				log.Printf("[Booking] Error scheduling expiry job for %s: %s\n", booking.ID, err.Error())
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var bookings []models.Booking
			query := db.
				Model(&models.Booking{}).
				Where("renter_id = ? OR owner_id = ?", userId, userId)
			if status := ctx.Query("status"); status != "" {
				query = query.Where("status = ?", status)
			}
			if err := query.Order("created_at desc").Limit(100).Find(&bookings).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Preload("Renter").
				Preload("Owner").
				Preload("Listing").
				First(&booking, "id = ?", id).
				Error; err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/approve", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			var body types.ApproveBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil && err.Error() != "EOF" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := common.ApproveBooking(ctx.Request.Context(), id, ctx.GetUint("id"), body.Notes)
			if err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/reject", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			var body types.RejectBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := common.RejectBooking(ctx.Request.Context(), id, ctx.GetUint("id"), body.Reason); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/bookings/:id/pickup", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			if err := common.ConfirmPickup(ctx.Request.Context(), id, ctx.GetUint("id")); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/bookings/:id/return", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			if err := common.ConfirmReturn(ctx.Request.Context(), id, ctx.GetUint("id")); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/bookings/:id/dispute", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			var body types.DisputeBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := common.ReportDispute(ctx.Request.Context(), id, ctx.GetUint("id"), body.Reason); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		POST("/bookings/:id/refund", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			var body types.RefundBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := common.RecordRefund(ctx.Request.Context(), id, body.AmountCents, body.Reason); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		POST("/bookings/:id/release", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			if err := common.ReleasePayout(ctx.Request.Context(), id); err != nil {
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
