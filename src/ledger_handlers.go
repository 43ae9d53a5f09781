package main

import (
	"net/http"

	"rbs/src/db"
	"rbs/src/models"

	"github.com/gin-gonic/gin"
)

func ledgerHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/ledger", func(ctx *gin.Context) {
			db := db.GetDb()
			var entries []models.LedgerEntry
			query := db.Model(&models.LedgerEntry{})
			if status := ctx.Query("status"); status != "" {
				query = query.Where("status = ?", status)
			}
			if party := ctx.Query("party"); party != "" {
				query = query.Where("party = ?", party)
			}
			if err := query.Order("created_at desc").Limit(100).Find(&entries).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		GET("/ledger/:id", func(ctx *gin.Context) {
			id, ok := bindBookingId(ctx)
			if !ok {
				return
			}
			db := db.GetDb()
			var entries []models.LedgerEntry
			if err := db.
				Where("booking_id = ?", id).
				Order("party asc").
				Find(&entries).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			if len(entries) == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "no ledger entries for booking"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		GET("/transactions", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var entries []models.LedgerEntry
			if err := db.
				Model(&models.LedgerEntry{}).
				Joins("JOIN bookings ON bookings.id = ledger_entries.booking_id").
				Where("bookings.renter_id = ? OR bookings.owner_id = ?", userId, userId).
				Order("ledger_entries.created_at desc").
				Limit(100).
				Find(&entries).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		})
	return g
}
