package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/models"
)

const recurringColumns = `r.id, r.sub_account_id, r.direction, r.average_amount, r.last_amount,
	r.first_date, r.last_date, r.description, r.merchant_name, r.is_active, r.status, r.category`

func scanRecurring(row pgx.Row) (*models.RecurringTransaction, error) {
	var r models.RecurringTransaction
	err := row.Scan(
		&r.ID,
		&r.SubAccountID,
		&r.Direction,
		&r.AverageAmount,
		&r.LastAmount,
		&r.FirstDate,
		&r.LastDate,
		&r.Description,
		&r.MerchantName,
		&r.IsActive,
		&r.Status,
		&r.Category,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReplaceRecurring swaps the account's recurring snapshot for the fresh
// one in a single transaction, so readers never see a half-replaced set.
func ReplaceRecurring(ctx context.Context, pool *pgxpool.Pool, accountID int64, rows []models.RecurringTransaction) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM recurring_transactions
		WHERE sub_account_id IN (SELECT id FROM sub_accounts WHERE account_id = $1)
	`, accountID)
	if err != nil {
		return err
	}

	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO recurring_transactions (sub_account_id, direction, average_amount, last_amount,
				first_date, last_date, description, merchant_name, is_active, status, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			r.SubAccountID,
			r.Direction,
			r.AverageAmount,
			r.LastAmount,
			r.FirstDate,
			r.LastDate,
			r.Description,
			r.MerchantName,
			r.IsActive,
			r.Status,
			r.Category,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func GetRecurringForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.RecurringTransaction, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_transactions r
		JOIN sub_accounts s ON r.sub_account_id = s.id
		JOIN linked_accounts a ON s.account_id = a.id
		WHERE a.user_id = $1
		ORDER BY r.last_date DESC, r.id
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recurring []models.RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		recurring = append(recurring, *r)
	}
	return recurring, rows.Err()
}
