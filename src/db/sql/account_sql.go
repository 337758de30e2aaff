package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/models"
)

const linkedAccountColumns = `id, user_id, name, institution_name, access_token, item_id, sync_cursor,
	needs_attention, last_tran_refresh_attempt, last_tran_refresh_success, last_recurring_refresh, created_at`

func scanLinkedAccount(row pgx.Row) (*models.LinkedAccount, error) {
	var a models.LinkedAccount
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.InstitutionName,
		&a.AccessToken,
		&a.ItemID,
		&a.Cursor,
		&a.NeedsAttention,
		&a.LastTranRefreshAttempt,
		&a.LastTranRefreshSuccess,
		&a.LastRecurringRefresh,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func CreateLinkedAccount(ctx context.Context, pool *pgxpool.Pool, acc *models.LinkedAccount) (*models.LinkedAccount, error) {
	// Re-linking an existing item refreshes the credential instead of
	// creating a second connection.
	query := `
		INSERT INTO linked_accounts (user_id, name, institution_name, access_token, item_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			needs_attention = FALSE
		RETURNING ` + linkedAccountColumns
	return scanLinkedAccount(pool.QueryRow(ctx, query,
		acc.UserID, acc.Name, acc.InstitutionName, acc.AccessToken, acc.ItemID))
}

func GetLinkedAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID int64) (*models.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE id = $1 AND user_id = $2`
	acc, err := scanLinkedAccount(pool.QueryRow(ctx, query, accountID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("linked account not found")
	}
	return acc, err
}

// GetLinkedAccountByItemID resolves a webhook's item id to the local
// account, across all users.
func GetLinkedAccountByItemID(ctx context.Context, pool *pgxpool.Pool, itemID string) (*models.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE item_id = $1`
	acc, err := scanLinkedAccount(pool.QueryRow(ctx, query, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("linked account not found")
	}
	return acc, err
}

func GetLinkedAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE user_id = $1 ORDER BY id`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.LinkedAccount
	for rows.Next() {
		acc, err := scanLinkedAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// GetAllLinkedAccounts is the scheduler's view across every user.
func GetAllLinkedAccounts(ctx context.Context, pool *pgxpool.Pool) ([]models.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts ORDER BY id`
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.LinkedAccount
	for rows.Next() {
		acc, err := scanLinkedAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// DeleteLinkedAccount removes the connection. Its transactions are
// reassigned to direct user ownership rather than deleted; sub-accounts
// and recurring rows go with the account.
func DeleteLinkedAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID int64) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE transactions SET user_id = $1, account_id = NULL
		WHERE account_id = $2
	`, userID, accountID)
	if err != nil {
		return fmt.Errorf("reassigning transactions: %w", err)
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM linked_accounts WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("linked account not found")
	}
	return tx.Commit(ctx)
}

func UpdateSyncCursor(ctx context.Context, pool *pgxpool.Pool, accountID int64, cursor string) error {
	_, err := pool.Exec(ctx, `UPDATE linked_accounts SET sync_cursor = $1 WHERE id = $2`, cursor, accountID)
	return err
}

func SetNeedsAttention(ctx context.Context, pool *pgxpool.Pool, accountID int64, needsAttention bool) error {
	_, err := pool.Exec(ctx, `UPDATE linked_accounts SET needs_attention = $1 WHERE id = $2`, needsAttention, accountID)
	return err
}

func MarkTranRefreshAttempt(ctx context.Context, pool *pgxpool.Pool, accountID int64) error {
	_, err := pool.Exec(ctx, `UPDATE linked_accounts SET last_tran_refresh_attempt = NOW() WHERE id = $1`, accountID)
	return err
}

func MarkTranRefreshSuccess(ctx context.Context, pool *pgxpool.Pool, accountID int64) error {
	_, err := pool.Exec(ctx, `UPDATE linked_accounts SET last_tran_refresh_success = NOW() WHERE id = $1`, accountID)
	return err
}

func MarkRecurringRefresh(ctx context.Context, pool *pgxpool.Pool, accountID int64) error {
	_, err := pool.Exec(ctx, `UPDATE linked_accounts SET last_recurring_refresh = NOW() WHERE id = $1`, accountID)
	return err
}

const subAccountColumns = `id, account_id, user_id, external_id, name, official_name, type, sub_type,
	currency, available, current, credit_limit, ignored, created_at`

func scanSubAccount(row pgx.Row) (*models.SubAccount, error) {
	var s models.SubAccount
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.UserID,
		&s.ExternalID,
		&s.Name,
		&s.OfficialName,
		&s.Type,
		&s.SubType,
		&s.Currency,
		&s.Available,
		&s.Current,
		&s.Limit,
		&s.Ignored,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSubAccount writes one balance snapshot, keyed on the external id
// so an upstream rename updates the row in place.
func UpsertSubAccount(ctx context.Context, pool *pgxpool.Pool, accountID int64, rec models.BalanceRecord) error {
	query := `
		INSERT INTO sub_accounts (account_id, external_id, name, official_name, type, sub_type, currency, available, current, credit_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, external_id) WHERE account_id IS NOT NULL AND external_id <> ''
		DO UPDATE SET
			name = EXCLUDED.name,
			official_name = EXCLUDED.official_name,
			type = EXCLUDED.type,
			sub_type = EXCLUDED.sub_type,
			currency = EXCLUDED.currency,
			available = EXCLUDED.available,
			current = EXCLUDED.current,
			credit_limit = EXCLUDED.credit_limit
	`
	currency := rec.Currency
	if currency == "" {
		currency = "USD"
	}
	_, err := pool.Exec(ctx, query,
		accountID,
		rec.ExternalID,
		rec.Name,
		rec.OfficialName,
		models.AccountTypeFromStr(rec.Type),
		models.SubAccountTypeFromStr(rec.SubType),
		currency,
		rec.Available,
		rec.Current,
		rec.Limit,
	)
	return err
}

func GetSubAccountsForAccount(ctx context.Context, pool *pgxpool.Pool, accountID int64) ([]models.SubAccount, error) {
	query := `SELECT ` + subAccountColumns + ` FROM sub_accounts WHERE account_id = $1 ORDER BY id`
	rows, err := pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.SubAccount
	for rows.Next() {
		s, err := scanSubAccount(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// GetSubAccountsForUser returns linked and manual sub-accounts together.
func GetSubAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.SubAccount, error) {
	query := `
		SELECT ` + subAccountColumns + ` FROM sub_accounts s
		WHERE s.user_id = $1
		   OR s.account_id IN (SELECT id FROM linked_accounts WHERE user_id = $1)
		ORDER BY s.id
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.SubAccount
	for rows.Next() {
		s, err := scanSubAccount(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// CreateManualSubAccount creates a user-owned balance row with no feed
// behind it, e.g. a house or a cash stash.
func CreateManualSubAccount(ctx context.Context, pool *pgxpool.Pool, sub *models.SubAccount) (*models.SubAccount, error) {
	query := `
		INSERT INTO sub_accounts (user_id, name, official_name, type, sub_type, currency, current)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + subAccountColumns
	currency := sub.Currency
	if currency == "" {
		currency = "USD"
	}
	return scanSubAccount(pool.QueryRow(ctx, query,
		sub.UserID, sub.Name, sub.OfficialName, sub.Type, sub.SubType, currency, sub.Current))
}

func UpdateManualSubAccountBalance(ctx context.Context, pool *pgxpool.Pool, userID, subID int64, current float64) error {
	cmd, err := pool.Exec(ctx, `
		UPDATE sub_accounts SET current = $1
		WHERE id = $2 AND user_id = $3
	`, current, subID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("sub-account not found or not manual")
	}
	return nil
}

func SetSubAccountIgnored(ctx context.Context, pool *pgxpool.Pool, userID, subID int64, ignored bool) error {
	cmd, err := pool.Exec(ctx, `
		UPDATE sub_accounts SET ignored = $1
		WHERE id = $2 AND (user_id = $3
			OR account_id IN (SELECT id FROM linked_accounts WHERE user_id = $3))
	`, ignored, subID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("sub-account not found")
	}
	return nil
}

func DeleteSubAccount(ctx context.Context, pool *pgxpool.Pool, userID, subID int64) error {
	cmd, err := pool.Exec(ctx, `DELETE FROM sub_accounts WHERE id = $1 AND user_id = $2`, subID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("sub-account not found or not manual")
	}
	return nil
}
