package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

func f64(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNetWorth_LiabilitiesSubtract(t *testing.T) {
	subs := []models.SubAccount{
		{Type: models.TypeDepository, Current: f64(500)},
		{Type: models.TypeCredit, Current: f64(500)},
		{Type: models.TypeInvestment, Current: f64(1200)},
	}
	assert.Equal(t, 1200.0, NetWorth(subs))
}

func TestNetWorth_SkipsIgnoredAndMissing(t *testing.T) {
	subs := []models.SubAccount{
		{Type: models.TypeDepository, Current: f64(1000)},
		{Type: models.TypeDepository, Current: f64(9999), Ignored: true},
		{Type: models.TypeLoan, Current: nil},
	}
	assert.Equal(t, 1000.0, NetWorth(subs))
}

func spendTxns() []models.Transaction {
	return []models.Transaction{
		{Amount: -40, Category: categories.Restaurants, Date: day("2025-03-05")},
		{Amount: -60, Category: categories.Restaurants, Date: day("2025-03-12")},
		{Amount: -25, Category: categories.CoffeeShop, Date: day("2025-03-20")},
		// Refund offsets its category.
		{Amount: 10, Category: categories.CoffeeShop, Date: day("2025-03-21")},
		// Transfers never count as spend.
		{Amount: -1000, Category: categories.Transfer, Date: day("2025-03-15")},
		// Ignored rows never count.
		{Amount: -500, Category: categories.Shops, Date: day("2025-03-18"), Ignored: true},
		// Outside the window.
		{Amount: -80, Category: categories.Restaurants, Date: day("2025-02-10")},
	}
}

func TestSpendingTotal(t *testing.T) {
	total := SpendingTotal(spendTxns(), day("2025-03-01"), day("2025-03-31"))
	assert.InDelta(t, 115.0, total, 1e-9)
}

func TestCategoryBreakdown_SortedByTotal(t *testing.T) {
	breakdown := CategoryBreakdown(spendTxns(), day("2025-03-01"), day("2025-03-31"))
	require.Len(t, breakdown, 2)

	assert.Equal(t, categories.Restaurants, breakdown[0].Category)
	assert.InDelta(t, 100.0, breakdown[0].Total, 1e-9)
	assert.Equal(t, 2, breakdown[0].Count)

	assert.Equal(t, categories.CoffeeShop, breakdown[1].Category)
	assert.InDelta(t, 15.0, breakdown[1].Total, 1e-9)
}

func TestWindowComparison(t *testing.T) {
	txns := []models.Transaction{
		{Amount: -100, Category: categories.Restaurants, Date: day("2025-03-10")},
		{Amount: -40, Category: categories.Restaurants, Date: day("2025-02-10")},
		{Amount: -70, Category: categories.Shops, Date: day("2025-02-15")},
	}
	changes := WindowComparison(txns, day("2025-03-01"), day("2025-03-28"))
	require.Len(t, changes, 2)

	// Shops swung by 70 (dropped to zero), restaurants by 60.
	assert.Equal(t, categories.Shops, changes[0].Category)
	assert.InDelta(t, -70.0, changes[0].Change, 1e-9)

	assert.Equal(t, categories.Restaurants, changes[1].Category)
	assert.InDelta(t, 100.0, changes[1].Current, 1e-9)
	assert.InDelta(t, 40.0, changes[1].Previous, 1e-9)
	assert.InDelta(t, 60.0, changes[1].Change, 1e-9)
}
