package aggregate

import (
	"sort"
	"time"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

// Pure rollups over already-loaded rows. Handlers fetch the rows and
// call these, which keeps the math testable without a database.

// NetWorth sums current balances across sub-accounts. Liability accounts
// (credit, loans) subtract, so a card carrying a $500 balance lowers the
// result by 500 while $500 in checking raises it by 500. Ignored rows and
// rows with no reported balance are skipped.
func NetWorth(subs []models.SubAccount) float64 {
	var total float64
	for _, s := range subs {
		if s.Ignored || s.Current == nil {
			continue
		}
		if s.Type.IsLiability() {
			total -= *s.Current
		} else {
			total += *s.Current
		}
	}
	return total
}

// spendable filters a transaction into spending math: inside the window,
// not ignored, and in a category that counts as spending.
func spendable(t models.Transaction, from, to time.Time) bool {
	if t.Ignored || !t.Category.IsSpending() {
		return false
	}
	if t.Date.Before(from) || t.Date.After(to) {
		return false
	}
	return true
}

// SpendingTotal returns total spend in [from, to] as a positive number.
// Amounts are stored negative for money out; refunds (positive amounts in
// spending categories) reduce the total.
func SpendingTotal(txns []models.Transaction, from, to time.Time) float64 {
	var total float64
	for _, t := range txns {
		if spendable(t, from, to) {
			total -= t.Amount
		}
	}
	return total
}

// CategoryTotal is one slice of a spending breakdown.
type CategoryTotal struct {
	Category categories.Category `json:"category"`
	Name     string              `json:"name"`
	Total    float64             `json:"total"`
	Count    int                 `json:"count"`
}

// CategoryBreakdown groups spend in [from, to] by category, biggest total
// first. Ties break on category id so the order is stable.
func CategoryBreakdown(txns []models.Transaction, from, to time.Time) []CategoryTotal {
	totals := make(map[categories.Category]*CategoryTotal)
	for _, t := range txns {
		if !spendable(t, from, to) {
			continue
		}
		ct, ok := totals[t.Category]
		if !ok {
			ct = &CategoryTotal{Category: t.Category, Name: t.Category.DisplayName()}
			totals[t.Category] = ct
		}
		ct.Total -= t.Amount
		ct.Count++
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategoryChange compares one category's spend across two windows.
type CategoryChange struct {
	Category categories.Category `json:"category"`
	Name     string              `json:"name"`
	Current  float64             `json:"current"`
	Previous float64             `json:"previous"`
	Change   float64             `json:"change"`
}

// WindowComparison compares spend in [from, to] against the preceding
// window of equal length, per category, biggest absolute swing first.
// Categories present in either window appear.
func WindowComparison(txns []models.Transaction, from, to time.Time) []CategoryChange {
	span := to.Sub(from)
	prevTo := from.Add(-24 * time.Hour)
	prevFrom := prevTo.Add(-span)

	changes := make(map[categories.Category]*CategoryChange)
	get := func(c categories.Category) *CategoryChange {
		cc, ok := changes[c]
		if !ok {
			cc = &CategoryChange{Category: c, Name: c.DisplayName()}
			changes[c] = cc
		}
		return cc
	}
	for _, t := range txns {
		if spendable(t, from, to) {
			get(t.Category).Current -= t.Amount
		}
		if spendable(t, prevFrom, prevTo) {
			get(t.Category).Previous -= t.Amount
		}
	}

	out := make([]CategoryChange, 0, len(changes))
	for _, cc := range changes {
		cc.Change = cc.Current - cc.Previous
		out = append(out, *cc)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Change), abs(out[j].Change)
		if ai != aj {
			return ai > aj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
