package sync

import (
	"context"
	"errors"

	"finance-monitor-server/src/models"
)

// ErrDuplicateTransaction is returned by Store.InsertTransaction when the
// row collides with the (date, description, amount, owner) uniqueness
// invariant. The feed occasionally redelivers rows already present, so
// the engine swallows these.
var ErrDuplicateTransaction = errors.New("duplicate transaction")

// Store is the persistence the engine needs. The SQL implementation lives
// in src/db/sql; tests use an in-memory fake.
type Store interface {
	RulesForUser(ctx context.Context, userID int64) ([]models.CategoryRule, error)

	InsertTransaction(ctx context.Context, t *models.Transaction) error

	// FindTransactionByExternalID locates a transaction on the account by
	// external id, falling back to the pending external id (pending to
	// posted transitions change the id). Returns (nil, nil) when absent.
	FindTransactionByExternalID(ctx context.Context, accountID int64, externalID, pendingExternalID string) (*models.Transaction, error)

	// UpdateTransactionFromFeed overwrites the mutable feed fields
	// (amount, description, date, datetime, currency, pending) but never
	// the resolved category. rec.Amount is already internal-signed.
	UpdateTransactionFromFeed(ctx context.Context, id int64, rec models.TransactionRecord) error

	// DeleteTransactionByExternalID reports whether a row was deleted.
	DeleteTransactionByExternalID(ctx context.Context, accountID int64, externalID string) (bool, error)

	// UpsertSubAccount updates the sub-account keyed on (account,
	// external id), inserting when absent. This is what absorbs the
	// aggregator renaming an existing sub-account.
	UpsertSubAccount(ctx context.Context, accountID int64, rec models.BalanceRecord) error

	SubAccountsForAccount(ctx context.Context, accountID int64) ([]models.SubAccount, error)

	// ReplaceRecurring deletes all recurring rows for the account's
	// sub-accounts and inserts the fresh set, as one unit.
	ReplaceRecurring(ctx context.Context, accountID int64, rows []models.RecurringTransaction) error

	SetCursor(ctx context.Context, accountID int64, cursor string) error
	SetNeedsAttention(ctx context.Context, accountID int64) error
}

// Aggregator is the slice of the third-party API the engine consumes.
// The plaid-backed implementation lives in src/plaid.
type Aggregator interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string) (models.DeltaPage, error)
	Balances(ctx context.Context, accessToken string) ([]models.BalanceRecord, error)
	Recurring(ctx context.Context, accessToken string, accountExternalIDs []string) (inflows, outflows []models.RecurringStream, err error)
}
