package models

import (
	"time"

	"finance-monitor-server/src/categories"
)

// RecurringDirection distinguishes inflow and outflow streams.
type RecurringDirection int

const (
	RecurringInflow  RecurringDirection = 0
	RecurringOutflow RecurringDirection = 1
)

// RecurringTransaction is one recurring stream on a sub-account. The feed
// reports streams as a snapshot summary, not an append-only log, so each
// recurring sync fully replaces the rows for an account.
type RecurringTransaction struct {
	ID            int64               `json:"id"`
	SubAccountID  int64               `json:"sub_account_id"`
	Direction     RecurringDirection  `json:"direction"`
	AverageAmount float64             `json:"average_amount"`
	LastAmount    float64             `json:"last_amount"`
	FirstDate     time.Time           `json:"first_date"`
	LastDate      time.Time           `json:"last_date"`
	Description   string              `json:"description"`
	MerchantName  string              `json:"merchant_name"`
	IsActive      bool                `json:"is_active"`
	Status        string              `json:"status"`
	Category      categories.Category `json:"category"`
}
