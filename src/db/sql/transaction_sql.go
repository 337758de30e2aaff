package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

const transactionColumns = `id, account_id, user_id, institution_name, amount, description, merchant,
	category, date, datetime, external_id, currency, pending, notes, highlighted, ignored, logo_url, created_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.UserID,
		&t.InstitutionName,
		&t.Amount,
		&t.Description,
		&t.Merchant,
		&t.Category,
		&t.Date,
		&t.Datetime,
		&t.ExternalID,
		&t.Currency,
		&t.Pending,
		&t.Notes,
		&t.Highlighted,
		&t.Ignored,
		&t.LogoURL,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure,
// which is how the schema surfaces a duplicate transaction.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func InsertTransaction(ctx context.Context, pool *pgxpool.Pool, t *models.Transaction) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions (account_id, user_id, institution_name, amount, description, merchant,
			category, date, datetime, external_id, currency, pending, notes, highlighted, ignored, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + transactionColumns
	currency := t.Currency
	if currency == "" {
		currency = "USD"
	}
	return scanTransaction(pool.QueryRow(ctx, query,
		t.AccountID,
		t.UserID,
		t.InstitutionName,
		t.Amount,
		t.Description,
		t.Merchant,
		t.Category,
		t.Date,
		t.Datetime,
		t.ExternalID,
		currency,
		t.Pending,
		t.Notes,
		t.Highlighted,
		t.Ignored,
		t.LogoURL,
	))
}

// FindTransactionByExternalID looks the row up by external id, falling
// back to the pending id because a pending transaction gets a new id when
// it posts. Returns (nil, nil) when neither matches.
func FindTransactionByExternalID(ctx context.Context, pool *pgxpool.Pool, accountID int64, externalID, pendingExternalID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 AND external_id = $2`
	t, err := scanTransaction(pool.QueryRow(ctx, query, accountID, externalID))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if pendingExternalID == "" {
		return nil, nil
	}
	t, err = scanTransaction(pool.QueryRow(ctx, query, accountID, pendingExternalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// UpdateTransactionFromFeed overwrites the feed-owned fields. Category,
// notes, and flags are user-owned and untouched. The external id is
// rewritten so a pending row adopts its posted id.
func UpdateTransactionFromFeed(ctx context.Context, pool *pgxpool.Pool, id int64, rec models.TransactionRecord) error {
	query := `
		UPDATE transactions
		SET amount = $1, description = $2, date = $3, datetime = $4, currency = $5, pending = $6, external_id = $7
		WHERE id = $8
	`
	currency := rec.Currency
	if currency == "" {
		currency = "USD"
	}
	_, err := pool.Exec(ctx, query,
		rec.Amount, rec.Description, rec.Date, rec.Datetime, currency, rec.Pending, rec.ExternalID, id)
	return err
}

func DeleteTransactionByExternalID(ctx context.Context, pool *pgxpool.Pool, accountID int64, externalID string) (bool, error) {
	cmd, err := pool.Exec(ctx,
		`DELETE FROM transactions WHERE account_id = $1 AND external_id = $2`, accountID, externalID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// TransactionFilter narrows GetTransactions. Zero values mean "no
// constraint"; Limit 0 means the default page size.
type TransactionFilter struct {
	AccountID *int64
	From      *time.Time
	To        *time.Time
	Category  *categories.Category
	Search    string
	Limit     int
	Offset    int
}

func GetTransactions(ctx context.Context, pool *pgxpool.Pool, userID int64, filter TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM transactions t
		WHERE (t.user_id = $1
			OR t.account_id IN (SELECT id FROM linked_accounts WHERE user_id = $1))
	`
	args := []interface{}{userID}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += fmt.Sprintf(" AND t.account_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND t.date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND t.date <= $%d", len(args))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(" AND t.category = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (t.description ILIKE $%d OR t.merchant ILIKE $%d OR t.notes ILIKE $%d)", len(args), len(args), len(args))
	}
	query += " ORDER BY t.date DESC, t.id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func GetTransactionByID(ctx context.Context, pool *pgxpool.Pool, userID, id int64) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM transactions t
		WHERE t.id = $1 AND (t.user_id = $2
			OR t.account_id IN (SELECT id FROM linked_accounts WHERE user_id = $2))
	`
	t, err := scanTransaction(pool.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("transaction not found")
	}
	return t, err
}

// UpdateTransaction applies a user edit. Unlike feed updates this may
// change the category, and that choice sticks.
func UpdateTransaction(ctx context.Context, pool *pgxpool.Pool, userID int64, t *models.Transaction) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET amount = $1, description = $2, merchant = $3, category = $4, date = $5,
			notes = $6, highlighted = $7, ignored = $8
		WHERE id = $9 AND (user_id = $10
			OR account_id IN (SELECT id FROM linked_accounts WHERE user_id = $10))
		RETURNING ` + transactionColumns
	updated, err := scanTransaction(pool.QueryRow(ctx, query,
		t.Amount, t.Description, t.Merchant, t.Category, t.Date,
		t.Notes, t.Highlighted, t.Ignored, t.ID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("transaction not found")
	}
	return updated, err
}

func SetTransactionCategory(ctx context.Context, pool *pgxpool.Pool, id int64, category categories.Category) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET category = $1 WHERE id = $2`, category, id)
	return err
}

func DeleteTransaction(ctx context.Context, pool *pgxpool.Pool, userID, id int64) error {
	cmd, err := pool.Exec(ctx, `
		DELETE FROM transactions
		WHERE id = $1 AND (user_id = $2
			OR account_id IN (SELECT id FROM linked_accounts WHERE user_id = $2))
	`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("transaction not found")
	}
	return nil
}
