package models

import (
	"time"

	"finance-monitor-server/src/categories"
)

// Transaction belongs to a linked account XOR directly to a user; manual
// and imported rows have no account and no external id. Amounts are
// signed: negative is money out. Category is resolved once at ingestion
// and never overwritten by the feed.
type Transaction struct {
	ID              int64               `json:"id"`
	AccountID       *int64              `json:"account_id"`
	UserID          *int64              `json:"user_id"`
	InstitutionName string              `json:"institution_name"`
	Amount          float64             `json:"amount"`
	Description     string              `json:"description"`
	Merchant        *string             `json:"merchant"`
	Category        categories.Category `json:"category"`
	Date            time.Time           `json:"date"`
	Datetime        *time.Time          `json:"datetime"`
	ExternalID      *string             `json:"external_id"`
	Currency        string              `json:"currency"`
	Pending         bool                `json:"pending"`
	Notes           string              `json:"notes"`
	Highlighted     bool                `json:"highlighted"`
	Ignored         bool                `json:"ignored"`
	LogoURL         *string             `json:"logo_url"`
	CreatedAt       time.Time           `json:"created_at"`
}
