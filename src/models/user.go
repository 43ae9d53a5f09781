package models

import "rbs/src/types"

type User struct {
	ID              uint    `gorm:"primarykey" json:"id"`
	Name            string  `json:"name,omitempty"`
	Email           string  `json:"email,omitempty"`
	Role            string  `json:"role,omitempty"`
	StripeAccountId *string `json:"stripe_account_id,omitempty"`

	types.Timestamps
}
