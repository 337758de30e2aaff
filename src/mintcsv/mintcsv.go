package mintcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

// Mint-style transaction CSV. The header names columns, so column order
// does not matter and unknown columns are ignored.

const (
	colDate         = "date"
	colDescription  = "description"
	colOriginalDesc = "original description"
	colAmount       = "amount"
	colType         = "transaction type"
	colCategory     = "category"
	colAccountName  = "account name"
	colLabels       = "labels"
	colNotes        = "notes"
	colMerchant     = "merchant"
)

var dateFormats = []string{"1/02/2006", "01/02/2006", "2006-01-02"}

// RejectedRow reports one input row that could not be imported, with its
// 1-based line number.
type RejectedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult carries the parsed transactions plus a report of rows that
// were skipped. A file with some bad rows still imports the good ones.
type ImportResult struct {
	Transactions []models.Transaction `json:"transactions"`
	Rejected     []RejectedRow        `json:"rejected"`
	// Unrecognized lists category labels that matched neither a display
	// name nor the classifier; those rows fall back to Uncategorized.
	Unrecognized []string `json:"unrecognized"`
}

// Import parses a Mint export into user-owned transactions. Debits become
// negative amounts. A user rule on the description wins; otherwise the
// Category column is honored verbatim when it names a known category, so
// a re-imported export keeps its categories. Only unknown or empty labels
// fall through to keyword overrides and the classifier.
func Import(r io.Reader, userID int64, rules categories.RuleSet) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colDate, colDescription, colAmount} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := &ImportResult{}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Rejected = append(result.Rejected, RejectedRow{Line: line, Reason: err.Error()})
			continue
		}

		date, err := parseDate(field(row, colDate))
		if err != nil {
			result.Rejected = append(result.Rejected, RejectedRow{Line: line, Reason: err.Error()})
			continue
		}

		description := field(row, colDescription)
		if description == "" {
			description = field(row, colOriginalDesc)
		}
		if description == "" {
			result.Rejected = append(result.Rejected, RejectedRow{Line: line, Reason: "empty description"})
			continue
		}

		amount, err := parseAmount(field(row, colAmount))
		if err != nil {
			result.Rejected = append(result.Rejected, RejectedRow{Line: line, Reason: err.Error()})
			continue
		}
		if strings.EqualFold(field(row, colType), "debit") {
			amount = amount.Neg()
		}

		label := field(row, colCategory)
		var cat categories.Category
		if c, ok := rules.Lookup(description); ok {
			cat = c
		} else if c, ok := categories.FromDisplayName(label); ok {
			cat = c
		} else {
			var hints []string
			if label != "" {
				hints = append(hints, label)
			}
			var gaps []string
			cat, gaps = categories.Resolve(hints, description, rules)
			result.Unrecognized = append(result.Unrecognized, gaps...)
		}

		uid := userID
		amt, _ := amount.Float64()
		t := models.Transaction{
			UserID:          &uid,
			InstitutionName: field(row, colAccountName),
			Amount:          amt,
			Description:     description,
			Category:        cat,
			Date:            date,
			Currency:        "USD",
			Notes:           field(row, colNotes),
		}
		if m := field(row, colMerchant); m != "" {
			t.Merchant = &m
		}
		result.Transactions = append(result.Transactions, t)
	}
	return result, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", s)
	}
	return d, nil
}

// Export writes transactions in the same shape Import reads, amounts
// unsigned with a debit/credit type column. The optional Merchant column
// is included when any transaction carries one.
func Export(w io.Writer, txns []models.Transaction) error {
	hasMerchant := false
	for _, t := range txns {
		if t.Merchant != nil && *t.Merchant != "" {
			hasMerchant = true
			break
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"Date", "Description", "Original Description", "Amount", "Transaction Type", "Category", "Account Name", "Labels", "Notes"}
	if hasMerchant {
		header = append(header, "Merchant")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range txns {
		amount := decimal.NewFromFloat(t.Amount)
		tranType := "credit"
		if amount.IsNegative() {
			tranType = "debit"
			amount = amount.Neg()
		}
		row := []string{
			t.Date.Format("2006-01-02"),
			t.Description,
			t.Description,
			amount.StringFixed(2),
			tranType,
			t.Category.DisplayName(),
			t.InstitutionName,
			"",
			t.Notes,
		}
		if hasMerchant {
			merchant := ""
			if t.Merchant != nil {
				merchant = *t.Merchant
			}
			row = append(row, merchant)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
