package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

// fakeStore is an in-memory Store enforcing the same uniqueness invariant
// as the schema: no two transactions share (date, description, amount,
// account).
type fakeStore struct {
	rules          []models.CategoryRule
	transactions   []*models.Transaction
	nextID         int64
	subAccounts    []*models.SubAccount
	recurring      map[int64][]models.RecurringTransaction
	cursors        map[int64]string
	needsAttention map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recurring:      make(map[int64][]models.RecurringTransaction),
		cursors:        make(map[int64]string),
		needsAttention: make(map[int64]bool),
	}
}

func (s *fakeStore) RulesForUser(_ context.Context, userID int64) ([]models.CategoryRule, error) {
	var out []models.CategoryRule
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertTransaction(_ context.Context, t *models.Transaction) error {
	for _, existing := range s.transactions {
		if existing.Date.Equal(t.Date) &&
			existing.Description == t.Description &&
			existing.Amount == t.Amount &&
			int64ptrEq(existing.AccountID, t.AccountID) &&
			int64ptrEq(existing.UserID, t.UserID) {
			return ErrDuplicateTransaction
		}
	}
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (s *fakeStore) FindTransactionByExternalID(_ context.Context, accountID int64, externalID, pendingExternalID string) (*models.Transaction, error) {
	for _, t := range s.transactions {
		if t.AccountID != nil && *t.AccountID == accountID && t.ExternalID != nil && *t.ExternalID == externalID {
			return t, nil
		}
	}
	if pendingExternalID != "" {
		for _, t := range s.transactions {
			if t.AccountID != nil && *t.AccountID == accountID && t.ExternalID != nil && *t.ExternalID == pendingExternalID {
				return t, nil
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) UpdateTransactionFromFeed(_ context.Context, id int64, rec models.TransactionRecord) error {
	for _, t := range s.transactions {
		if t.ID == id {
			t.Amount = rec.Amount
			t.Description = rec.Description
			t.Date = rec.Date
			t.Datetime = rec.Datetime
			t.Currency = rec.Currency
			t.Pending = rec.Pending
			ext := rec.ExternalID
			t.ExternalID = &ext
			return nil
		}
	}
	return errors.New("not found")
}

func (s *fakeStore) DeleteTransactionByExternalID(_ context.Context, accountID int64, externalID string) (bool, error) {
	for i, t := range s.transactions {
		if t.AccountID != nil && *t.AccountID == accountID && t.ExternalID != nil && *t.ExternalID == externalID {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) UpsertSubAccount(_ context.Context, accountID int64, rec models.BalanceRecord) error {
	for _, sub := range s.subAccounts {
		if sub.AccountID != nil && *sub.AccountID == accountID && sub.ExternalID == rec.ExternalID {
			sub.Name = rec.Name
			sub.OfficialName = rec.OfficialName
			sub.Available = rec.Available
			sub.Current = rec.Current
			sub.Limit = rec.Limit
			return nil
		}
	}
	s.nextID++
	s.subAccounts = append(s.subAccounts, &models.SubAccount{
		ID:           s.nextID,
		AccountID:    &accountID,
		ExternalID:   rec.ExternalID,
		Name:         rec.Name,
		OfficialName: rec.OfficialName,
		Type:         models.AccountTypeFromStr(rec.Type),
		SubType:      models.SubAccountTypeFromStr(rec.SubType),
		Currency:     rec.Currency,
		Available:    rec.Available,
		Current:      rec.Current,
		Limit:        rec.Limit,
	})
	return nil
}

func (s *fakeStore) SubAccountsForAccount(_ context.Context, accountID int64) ([]models.SubAccount, error) {
	var out []models.SubAccount
	for _, sub := range s.subAccounts {
		if sub.AccountID != nil && *sub.AccountID == accountID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeStore) ReplaceRecurring(_ context.Context, accountID int64, rows []models.RecurringTransaction) error {
	s.recurring[accountID] = rows
	return nil
}

func (s *fakeStore) SetCursor(_ context.Context, accountID int64, cursor string) error {
	s.cursors[accountID] = cursor
	return nil
}

func (s *fakeStore) SetNeedsAttention(_ context.Context, accountID int64) error {
	s.needsAttention[accountID] = true
	return nil
}

func int64ptrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// fakeAggregator serves scripted delta pages in order.
type fakeAggregator struct {
	pages    []models.DeltaPage
	pageErrs []error
	balances []models.BalanceRecord
	inflows  []models.RecurringStream
	outflows []models.RecurringStream
	calls    int
	cursors  []string
}

func (a *fakeAggregator) SyncTransactions(_ context.Context, _, cursor string) (models.DeltaPage, error) {
	a.cursors = append(a.cursors, cursor)
	i := a.calls
	a.calls++
	if i < len(a.pageErrs) && a.pageErrs[i] != nil {
		return models.DeltaPage{}, a.pageErrs[i]
	}
	return a.pages[i], nil
}

func (a *fakeAggregator) Balances(_ context.Context, _ string) ([]models.BalanceRecord, error) {
	return a.balances, nil
}

func (a *fakeAggregator) Recurring(_ context.Context, _ string, _ []string) ([]models.RecurringStream, []models.RecurringStream, error) {
	return a.inflows, a.outflows, nil
}

func testAccount() models.LinkedAccount {
	return models.LinkedAccount{ID: 7, UserID: 42, InstitutionName: "Test Bank", AccessToken: "tok", Cursor: ""}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(id, desc string, amount float64, date string, hints ...string) models.TransactionRecord {
	return models.TransactionRecord{
		ExternalID:        id,
		AccountExternalID: "sub-1",
		Amount:            amount,
		Hints:             hints,
		Description:       desc,
		Date:              day(date),
		Currency:          "USD",
	}
}

func newTestEngine(agg Aggregator, store Store) *Engine {
	return NewEngine(agg, store, &Metrics{})
}

func TestSyncAccount_MultiPage(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{
		pages: []models.DeltaPage{
			{Added: []models.TransactionRecord{record("t1", "COFFEE PLACE", 4.50, "2024-03-01", "Food and Drink")}, NextCursor: "c1", HasMore: true},
			{Added: []models.TransactionRecord{record("t2", "AIR TICKET", 250, "2024-03-02", "Travel", "Airlines and Aviation Services")}, NextCursor: "c2", HasMore: false},
		},
	}
	eng := newTestEngine(agg, store)

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.NewData)
	assert.Equal(t, 2, res.Added)

	// Page loop resumed from each page's cursor.
	assert.Equal(t, []string{"", "c1"}, agg.cursors)
	// Final cursor persisted only once, after the full run.
	assert.Equal(t, "c2", store.cursors[7])

	require.Len(t, store.transactions, 2)
	// Feed amounts are outflow-positive; stored amounts are signed.
	assert.Equal(t, -4.50, store.transactions[0].Amount)
	assert.Equal(t, categories.Airlines, store.transactions[1].Category)
}

func TestSyncAccount_IdempotentReplay(t *testing.T) {
	store := newFakeStore()
	page := models.DeltaPage{
		Added: []models.TransactionRecord{
			record("t1", "Coffee", 4.50, "2024-03-01", "Food and Drink"),
		},
		NextCursor: "c1",
	}
	agg := &fakeAggregator{pages: []models.DeltaPage{page}}
	eng := newTestEngine(agg, store)

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)

	// A crash before cursor commit means the same page is re-fetched and
	// re-applied; the duplicate insert must be a silent no-op.
	agg.pages = append(agg.pages, page)
	res, err = eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, store.transactions, 1)
}

func TestSyncAccount_DuplicateAddedInOnePage(t *testing.T) {
	store := newFakeStore()
	// Two records with identical (date, description, amount, account):
	// the second insert is silently dropped.
	r1 := record("t1", "Coffee", 4.50, "2024-03-01", "Food and Drink")
	r2 := record("t2", "Coffee", 4.50, "2024-03-01", "Food and Drink")
	agg := &fakeAggregator{pages: []models.DeltaPage{{Added: []models.TransactionRecord{r1, r2}, NextCursor: "c1"}}}
	eng := newTestEngine(agg, store)

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, store.transactions, 1)
}

func TestSyncAccount_CategorySticky(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{pages: []models.DeltaPage{
		{Added: []models.TransactionRecord{record("t1", "MCDONALDS #4521", 8.99, "2024-03-01", "Restaurants")}, NextCursor: "c1"},
	}}
	eng := newTestEngine(agg, store)

	_, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	require.Len(t, store.transactions, 1)
	assert.Equal(t, categories.FastFood, store.transactions[0].Category)

	// Simulate a user correction, then a feed update to the same row.
	store.transactions[0].Category = categories.BusinessServices

	mod := record("t1", "MCDONALDS #4521 POSTED", 9.50, "2024-03-02", "Restaurants")
	agg.pages = append(agg.pages, models.DeltaPage{Modified: []models.TransactionRecord{mod}, NextCursor: "c2"})
	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modified)

	got := store.transactions[0]
	assert.Equal(t, -9.50, got.Amount)
	assert.Equal(t, "MCDONALDS #4521 POSTED", got.Description)
	// The user's category survives the feed update.
	assert.Equal(t, categories.BusinessServices, got.Category)
}

func TestSyncAccount_PendingToPosted(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{pages: []models.DeltaPage{
		{Added: []models.TransactionRecord{record("pend-1", "GAS STATION", 30, "2024-03-01", "Travel")}, NextCursor: "c1"},
	}}
	eng := newTestEngine(agg, store)
	_, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)

	// The posted record carries a new id; lookup falls back to the
	// pending id.
	mod := record("post-1", "GAS STATION", 30, "2024-03-01", "Travel")
	mod.PendingExternalID = "pend-1"
	agg.pages = append(agg.pages, models.DeltaPage{Modified: []models.TransactionRecord{mod}, NextCursor: "c2"})

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modified)
	assert.Equal(t, 0, res.Anomalies)
}

func TestSyncAccount_ModifiedAnomalyContinues(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{pages: []models.DeltaPage{{
		Modified: []models.TransactionRecord{
			record("ghost", "UNKNOWN", 1, "2024-03-01"),
			// Second record still processed after the anomaly.
		},
		Added:      []models.TransactionRecord{record("t1", "Coffee", 4.50, "2024-03-01", "Food and Drink")},
		NextCursor: "c1",
	}}}
	eng := newTestEngine(agg, store)

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Anomalies)
	assert.Equal(t, 1, res.Added)
	assert.EqualValues(t, 1, eng.Metrics.Anomalies.Load())
	// The anomaly does not block the cursor commit.
	assert.Equal(t, "c1", store.cursors[7])
}

func TestSyncAccount_Removed(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{pages: []models.DeltaPage{
		{Added: []models.TransactionRecord{record("t1", "Coffee", 4.50, "2024-03-01", "Food and Drink")}, NextCursor: "c1"},
		{Removed: []models.RemovedRecord{{ExternalID: "t1"}, {ExternalID: "ghost"}}, NextCursor: "c2"},
	}}
	eng := newTestEngine(agg, store)

	_, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Anomalies)
	assert.Empty(t, store.transactions)
}

func TestSyncAccount_ErrorDoesNotAdvanceCursor(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{
		pages: []models.DeltaPage{
			{Added: []models.TransactionRecord{record("t1", "Coffee", 4.50, "2024-03-01")}, NextCursor: "c1", HasMore: true},
			{},
		},
		pageErrs: []error{nil, &Error{Kind: KindTransient, Err: errors.New("institution not responding")}},
	}
	eng := newTestEngine(agg, store)

	res, err := eng.SyncAccount(context.Background(), testAccount())
	require.Error(t, err)
	assert.False(t, res.Success)
	// Nothing applied, nothing committed.
	assert.Empty(t, store.transactions)
	_, committed := store.cursors[7]
	assert.False(t, committed)
	assert.False(t, store.needsAttention[7])
	assert.EqualValues(t, 1, eng.Metrics.SyncFailures.Load())
}

func TestSyncAccount_ReauthMarksNeedsAttention(t *testing.T) {
	store := newFakeStore()
	agg := &fakeAggregator{
		pages:    []models.DeltaPage{{}},
		pageErrs: []error{&Error{Kind: KindReauthRequired, Err: errors.New("item login required")}},
	}
	eng := newTestEngine(agg, store)

	_, err := eng.SyncAccount(context.Background(), testAccount())
	require.Error(t, err)
	assert.True(t, store.needsAttention[7])
	_, committed := store.cursors[7]
	assert.False(t, committed)
}

func TestSyncAccount_UserRulePrecedence(t *testing.T) {
	store := newFakeStore()
	store.rules = []models.CategoryRule{
		{UserID: 42, Description: "MCDONALDS #4521", Category: categories.BusinessServices},
	}
	agg := &fakeAggregator{pages: []models.DeltaPage{
		{Added: []models.TransactionRecord{record("t1", "MCDONALDS #4521", 8.99, "2024-03-01", "Restaurants")}, NextCursor: "c1"},
	}}
	eng := newTestEngine(agg, store)

	_, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	require.Len(t, store.transactions, 1)
	assert.Equal(t, categories.BusinessServices, store.transactions[0].Category)
}

func TestSyncAccount_BalanceUpsert(t *testing.T) {
	store := newFakeStore()
	bal := 1200.0
	agg := &fakeAggregator{
		pages:    []models.DeltaPage{{NextCursor: "c1"}},
		balances: []models.BalanceRecord{{ExternalID: "sub-1", Name: "Everyday Checking", Type: "depository", SubType: "checking", Currency: "USD", Current: &bal}},
	}
	eng := newTestEngine(agg, store)

	_, err := eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	require.Len(t, store.subAccounts, 1)
	assert.Equal(t, "Everyday Checking", store.subAccounts[0].Name)

	// A rename from the aggregator updates the same row, matched on the
	// stable external id.
	agg.pages = append(agg.pages, models.DeltaPage{NextCursor: "c2"})
	agg.balances[0].Name = "Premier Checking"
	_, err = eng.SyncAccount(context.Background(), testAccount())
	require.NoError(t, err)
	require.Len(t, store.subAccounts, 1)
	assert.Equal(t, "Premier Checking", store.subAccounts[0].Name)
}

func TestSyncRecurring_FullReplacement(t *testing.T) {
	store := newFakeStore()
	accID := int64(7)
	store.subAccounts = []*models.SubAccount{{ID: 1, AccountID: &accID, ExternalID: "sub-1"}}
	store.recurring[7] = []models.RecurringTransaction{{SubAccountID: 1, Description: "STALE STREAM"}}

	agg := &fakeAggregator{
		inflows: []models.RecurringStream{{
			AccountExternalID: "sub-1",
			AverageAmount:     -4.22,
			LastAmount:        -4.22,
			FirstDate:         day("2023-12-21"),
			LastDate:          day("2024-02-19"),
			Description:       "INTRST PYMNT",
			IsActive:          true,
			Status:            "MATURE",
			Hints:             []string{"Transfer", "Payroll"},
		}},
		outflows: []models.RecurringStream{{
			AccountExternalID: "sub-1",
			AverageAmount:     500,
			LastAmount:        500,
			FirstDate:         day("2023-12-11"),
			LastDate:          day("2024-02-09"),
			Description:       "United Airlines",
			MerchantName:      "United Airlines",
			IsActive:          true,
			Status:            "MATURE",
			Hints:             []string{"Travel", "Airlines and Aviation Services"},
		}},
	}
	eng := newTestEngine(agg, store)

	require.NoError(t, eng.SyncRecurring(context.Background(), testAccount()))

	rows := store.recurring[7]
	require.Len(t, rows, 2)
	// Old snapshot fully replaced, not appended to.
	for _, r := range rows {
		assert.NotEqual(t, "STALE STREAM", r.Description)
	}
	assert.Equal(t, models.RecurringInflow, rows[0].Direction)
	// Transfer+Payroll reduces to Transfer (payroll dropped by dominance).
	assert.Equal(t, categories.Transfer, rows[0].Category)
	assert.Equal(t, models.RecurringOutflow, rows[1].Direction)
	assert.Equal(t, categories.Airlines, rows[1].Category)
}

func TestSyncRecurring_UnknownSubAccountSkipped(t *testing.T) {
	store := newFakeStore()
	accID := int64(7)
	store.subAccounts = []*models.SubAccount{{ID: 1, AccountID: &accID, ExternalID: "sub-1"}}
	agg := &fakeAggregator{
		inflows: []models.RecurringStream{{AccountExternalID: "nope", Description: "ghost"}},
	}
	eng := newTestEngine(agg, store)

	require.NoError(t, eng.SyncRecurring(context.Background(), testAccount()))
	assert.Empty(t, store.recurring[7])
	assert.EqualValues(t, 1, eng.Metrics.Anomalies.Load())
}
