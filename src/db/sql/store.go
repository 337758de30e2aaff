package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/models"
	syncengine "finance-monitor-server/src/sync"
)

// Store adapts the SQL layer to the reconciliation engine's persistence
// interface.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

var _ syncengine.Store = (*Store)(nil)

func (s *Store) RulesForUser(ctx context.Context, userID int64) ([]models.CategoryRule, error) {
	return GetCategoryRules(ctx, s.Pool, userID)
}

func (s *Store) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := InsertTransaction(ctx, s.Pool, t)
	if IsUniqueViolation(err) {
		return syncengine.ErrDuplicateTransaction
	}
	return err
}

func (s *Store) FindTransactionByExternalID(ctx context.Context, accountID int64, externalID, pendingExternalID string) (*models.Transaction, error) {
	return FindTransactionByExternalID(ctx, s.Pool, accountID, externalID, pendingExternalID)
}

func (s *Store) UpdateTransactionFromFeed(ctx context.Context, id int64, rec models.TransactionRecord) error {
	return UpdateTransactionFromFeed(ctx, s.Pool, id, rec)
}

func (s *Store) DeleteTransactionByExternalID(ctx context.Context, accountID int64, externalID string) (bool, error) {
	return DeleteTransactionByExternalID(ctx, s.Pool, accountID, externalID)
}

func (s *Store) UpsertSubAccount(ctx context.Context, accountID int64, rec models.BalanceRecord) error {
	return UpsertSubAccount(ctx, s.Pool, accountID, rec)
}

func (s *Store) SubAccountsForAccount(ctx context.Context, accountID int64) ([]models.SubAccount, error) {
	return GetSubAccountsForAccount(ctx, s.Pool, accountID)
}

func (s *Store) ReplaceRecurring(ctx context.Context, accountID int64, rows []models.RecurringTransaction) error {
	return ReplaceRecurring(ctx, s.Pool, accountID, rows)
}

func (s *Store) SetCursor(ctx context.Context, accountID int64, cursor string) error {
	return UpdateSyncCursor(ctx, s.Pool, accountID, cursor)
}

func (s *Store) SetNeedsAttention(ctx context.Context, accountID int64) error {
	return SetNeedsAttention(ctx, s.Pool, accountID, true)
}

// Scheduler bookkeeping.

func (s *Store) ListAccounts(ctx context.Context) ([]models.LinkedAccount, error) {
	return GetAllLinkedAccounts(ctx, s.Pool)
}

func (s *Store) MarkTranRefreshAttempt(ctx context.Context, accountID int64) error {
	return MarkTranRefreshAttempt(ctx, s.Pool, accountID)
}

func (s *Store) MarkTranRefreshSuccess(ctx context.Context, accountID int64) error {
	return MarkTranRefreshSuccess(ctx, s.Pool, accountID)
}

func (s *Store) MarkRecurringRefresh(ctx context.Context, accountID int64) error {
	return MarkRecurringRefresh(ctx, s.Pool, accountID)
}
