package models

import (
	"time"

	"finance-monitor-server/src/categories"
)

// CategoryRule pins an exact (normalized) transaction description to a
// category for one user. Unique on (user, description); creating or
// editing a rule retroactively re-categorizes every matching transaction
// the user owns.
type CategoryRule struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	Description string              `json:"description"`
	Category    categories.Category `json:"category"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// CustomCategory names a user-defined category id (>= categories.CustomStart).
type CustomCategory struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"user_id"`
	Category  categories.Category `json:"category"`
	Name      string              `json:"name"`
	CreatedAt time.Time           `json:"created_at"`
}
