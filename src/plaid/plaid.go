package plaid

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"

	"finance-monitor-server/src/models"
	"finance-monitor-server/src/sync"
)

func NewPlaidClient(clientID, secret, env string) *plaid.APIClient {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		log.Fatalf("Invalid Plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration)
}

// Client adapts the Plaid API to the engine's Aggregator interface,
// converting wire types into the neutral feed records and classifying API
// errors into the engine's taxonomy.
type Client struct {
	api *plaid.APIClient
}

func NewClient(api *plaid.APIClient) *Client {
	return &Client{api: api}
}

const dateFormat = "2006-01-02"

func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (models.DeltaPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}

	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return models.DeltaPage{}, classifyError(err)
	}

	page := models.DeltaPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, txn := range resp.GetAdded() {
		page.Added = append(page.Added, convertTransaction(txn))
	}
	for _, txn := range resp.GetModified() {
		page.Modified = append(page.Modified, convertTransaction(txn))
	}
	for _, rm := range resp.GetRemoved() {
		page.Removed = append(page.Removed, models.RemovedRecord{
			ExternalID:        rm.GetTransactionId(),
			AccountExternalID: rm.GetAccountId(),
		})
	}
	return page, nil
}

func (c *Client) Balances(ctx context.Context, accessToken string) ([]models.BalanceRecord, error) {
	request := plaid.NewAccountsBalanceGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
	if err != nil {
		return nil, classifyError(err)
	}

	var records []models.BalanceRecord
	for _, acc := range resp.GetAccounts() {
		balances := acc.GetBalances()
		rec := models.BalanceRecord{
			ExternalID:   acc.GetAccountId(),
			Name:         acc.GetName(),
			OfficialName: acc.GetOfficialName(),
			Type:         string(acc.GetType()),
			SubType:      string(acc.GetSubtype()),
			Currency:     balances.GetIsoCurrencyCode(),
		}
		if v, ok := balances.GetAvailableOk(); ok {
			rec.Available = v
		}
		if v, ok := balances.GetCurrentOk(); ok {
			rec.Current = v
		}
		if v, ok := balances.GetLimitOk(); ok {
			rec.Limit = v
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) Recurring(ctx context.Context, accessToken string, accountExternalIDs []string) ([]models.RecurringStream, []models.RecurringStream, error) {
	// The API returns streams for every account on the item; keep only
	// the requested ones.
	request := plaid.NewTransactionsRecurringGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.TransactionsRecurringGet(ctx).TransactionsRecurringGetRequest(*request).Execute()
	if err != nil {
		return nil, nil, classifyError(err)
	}

	wanted := make(map[string]bool, len(accountExternalIDs))
	for _, id := range accountExternalIDs {
		wanted[id] = true
	}

	var inflows, outflows []models.RecurringStream
	for _, s := range resp.GetInflowStreams() {
		if !wanted[s.GetAccountId()] {
			continue
		}
		inflows = append(inflows, convertStream(s))
	}
	for _, s := range resp.GetOutflowStreams() {
		if !wanted[s.GetAccountId()] {
			continue
		}
		outflows = append(outflows, convertStream(s))
	}
	return inflows, outflows, nil
}

func convertTransaction(txn plaid.Transaction) models.TransactionRecord {
	rec := models.TransactionRecord{
		ExternalID:        txn.GetTransactionId(),
		PendingExternalID: txn.GetPendingTransactionId(),
		AccountExternalID: txn.GetAccountId(),
		Amount:            txn.GetAmount(),
		Hints:             categoryHints(txn.GetCategory(), txn.GetPersonalFinanceCategory()),
		MerchantName:      txn.GetMerchantName(),
		Description:       txn.GetName(),
		Currency:          txn.GetIsoCurrencyCode(),
		Pending:           txn.GetPending(),
		LogoURL:           txn.GetLogoUrl(),
	}
	if d, err := time.Parse(dateFormat, txn.GetDate()); err == nil {
		rec.Date = d
	}
	if dt, ok := txn.GetDatetimeOk(); ok && dt != nil {
		rec.Datetime = dt
	}
	return rec
}

func convertStream(s plaid.TransactionStream) models.RecurringStream {
	avg := s.GetAverageAmount()
	last := s.GetLastAmount()
	rec := models.RecurringStream{
		AccountExternalID: s.GetAccountId(),
		AverageAmount:     avg.GetAmount(),
		LastAmount:        last.GetAmount(),
		Description:       s.GetDescription(),
		MerchantName:      s.GetMerchantName(),
		IsActive:          s.GetIsActive(),
		Status:            string(s.GetStatus()),
		Hints:             categoryHints(s.GetCategory(), s.GetPersonalFinanceCategory()),
	}
	if d, err := time.Parse(dateFormat, s.GetFirstDate()); err == nil {
		rec.FirstDate = d
	}
	if d, err := time.Parse(dateFormat, s.GetLastDate()); err == nil {
		rec.LastDate = d
	}
	return rec
}

// categoryHints prefers the hierarchical category path; when Plaid omits
// it, the personal-finance primary category stands in.
func categoryHints(path []string, pfc plaid.PersonalFinanceCategory) []string {
	if len(path) > 0 {
		return path
	}
	if primary := pfc.GetPrimary(); primary != "" {
		return []string{strings.ReplaceAll(primary, "_", " ")}
	}
	return nil
}

// classifyError maps a Plaid API failure into the engine's error
// taxonomy. Re-auth conditions follow the update-mode docs; an
// unresponsive institution is periodic and fixed by waiting.
func classifyError(err error) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return &sync.Error{Kind: sync.KindUnknown, Err: err}
	}

	switch strings.ToUpper(plaidErr.GetErrorCode()) {
	case "ITEM_LOGIN_REQUIRED", "PENDING_EXPIRATION":
		return &sync.Error{Kind: sync.KindReauthRequired, Err: err}
	case "INSTITUTION_NOT_RESPONDING", "INSTITUTION_DOWN", "INSTITUTION_NOT_AVAILABLE":
		return &sync.Error{Kind: sync.KindTransient, Err: err}
	default:
		return &sync.Error{Kind: sync.KindUnknown, Err: err}
	}
}
