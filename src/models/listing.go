package models

import "rbs/src/types"

type Listing struct {
	ID             uint   `gorm:"primarykey" json:"id"`
	OwnerID        uint   `json:"owner_id,omitempty"`
	Title          string `json:"title,omitempty"`
	DailyRateCents int64  `json:"daily_rate_cents,omitempty"`
	Currency       string `json:"currency,omitempty"`
	Status         string `gorm:"default:'active'" json:"status,omitempty"`

	Owner *User `gorm:"foreignKey:owner_id" json:"owner,omitempty"`

	types.Timestamps
}
