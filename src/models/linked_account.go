package models

import "time"

// LinkedAccount is one credential-bearing connection to a financial
// institution via the aggregator. The cursor starts as an empty string,
// not null; the aggregator API rejects null but accepts "".
type LinkedAccount struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	InstitutionName string `json:"institution_name"`
	AccessToken     string `json:"-"`
	ItemID          string `json:"item_id"`
	Cursor          string `json:"-"`
	NeedsAttention  bool   `json:"needs_attention"`

	// Attempt and success are tracked separately so a persistently
	// failing account is diagnosable by its stale success timestamp.
	LastTranRefreshAttempt time.Time `json:"last_tran_refresh_attempt"`
	LastTranRefreshSuccess time.Time `json:"last_tran_refresh_success"`
	LastRecurringRefresh   time.Time `json:"last_recurring_refresh"`

	CreatedAt time.Time `json:"created_at"`
}
