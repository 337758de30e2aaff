package mintcsv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-monitor-server/src/categories"
)

const sampleCSV = `Date,Description,Original Description,Amount,Transaction Type,Category,Account Name,Labels,Notes,Merchant
3/05/2025,Corner Bakery,CORNER BAKERY 0042,18.50,debit,Restaurants,Everyday Checking,,team lunch,
3/06/2025,Paycheck,ACME CORP PAYROLL,2500.00,credit,Payroll,Everyday Checking,,,
3/07/2025,MCDONALDS #4521,MCDONALDS #4521,9.10,debit,Restaurants,Everyday Checking,,,McDonald's
bad-date,Broken Row,,1.00,debit,,,,,
3/08/2025,Mystery Charge,,not-a-number,debit,,,,,
`

func TestImport(t *testing.T) {
	res, err := Import(strings.NewReader(sampleCSV), 7, nil)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 3)
	require.Len(t, res.Rejected, 2)

	bakery := res.Transactions[0]
	assert.Equal(t, -18.50, bakery.Amount)
	assert.Equal(t, "Corner Bakery", bakery.Description)
	assert.Equal(t, categories.Restaurants, bakery.Category)
	assert.Equal(t, "2025-03-05", bakery.Date.Format("2006-01-02"))
	assert.Equal(t, "team lunch", bakery.Notes)
	require.NotNil(t, bakery.UserID)
	assert.Equal(t, int64(7), *bakery.UserID)

	// Credits stay positive.
	assert.Equal(t, 2500.00, res.Transactions[1].Amount)
	assert.Equal(t, categories.Payroll, res.Transactions[1].Category)

	// The file's own label is honored over the keyword table, so a user's
	// past corrections survive a re-import.
	assert.Equal(t, categories.Restaurants, res.Transactions[2].Category)
	require.NotNil(t, res.Transactions[2].Merchant)
	assert.Equal(t, "McDonald's", *res.Transactions[2].Merchant)

	assert.Equal(t, 5, res.Rejected[0].Line)
	assert.Contains(t, res.Rejected[0].Reason, "date")
	assert.Contains(t, res.Rejected[1].Reason, "amount")
}

func TestImport_UserRuleWins(t *testing.T) {
	rules := categories.NewRuleSet()
	rules.Add("Corner Bakery", categories.CoffeeShop)

	res, err := Import(strings.NewReader(sampleCSV), 7, rules)
	require.NoError(t, err)
	assert.Equal(t, categories.CoffeeShop, res.Transactions[0].Category)
}

// Without a usable category label the keyword table still applies.
func TestImport_OverridesFillEmptyLabel(t *testing.T) {
	csvData := `Date,Description,Amount,Transaction Type,Category
3/07/2025,MCDONALDS #4521,9.10,debit,
`
	res, err := Import(strings.NewReader(csvData), 7, nil)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, categories.FastFood, res.Transactions[0].Category)
	assert.Empty(t, res.Unrecognized)
}

func TestImport_UnknownLabelReported(t *testing.T) {
	csvData := `Date,Description,Amount,Transaction Type,Category
3/07/2025,ACME WIDGETS INC,42.00,debit,Quantum Bucket
`
	res, err := Import(strings.NewReader(csvData), 7, nil)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, categories.Uncategorized, res.Transactions[0].Category)
	assert.Equal(t, []string{"Quantum Bucket"}, res.Unrecognized)
}

func TestImport_MissingColumn(t *testing.T) {
	_, err := Import(strings.NewReader("Description,Amount\nfoo,1.00\n"), 7, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date")
}

func TestExportRoundTrip(t *testing.T) {
	res, err := Import(strings.NewReader(sampleCSV), 7, nil)
	require.NoError(t, err)

	// A user correction must survive the round-trip too.
	res.Transactions[0].Category = categories.Gifts

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, res.Transactions))

	again, err := Import(&buf, 7, nil)
	require.NoError(t, err)
	require.Len(t, again.Transactions, len(res.Transactions))
	for i := range res.Transactions {
		assert.Equal(t, res.Transactions[i].Amount, again.Transactions[i].Amount, "row %d amount", i)
		assert.Equal(t, res.Transactions[i].Description, again.Transactions[i].Description, "row %d description", i)
		assert.Equal(t, res.Transactions[i].Date, again.Transactions[i].Date, "row %d date", i)
		assert.Equal(t, res.Transactions[i].Category, again.Transactions[i].Category, "row %d category", i)
		assert.Equal(t, res.Transactions[i].Merchant, again.Transactions[i].Merchant, "row %d merchant", i)
	}
}

// The Merchant column only appears when something needs it.
func TestExport_MerchantColumnOptional(t *testing.T) {
	res, err := Import(strings.NewReader(sampleCSV), 7, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, res.Transactions[:2]))
	assert.NotContains(t, strings.SplitN(buf.String(), "\n", 2)[0], "Merchant")

	buf.Reset()
	require.NoError(t, Export(&buf, res.Transactions))
	assert.Contains(t, strings.SplitN(buf.String(), "\n", 2)[0], "Merchant")
}
