package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

const categoryRuleColumns = `id, user_id, description, category, created_at, updated_at`

func scanCategoryRule(row pgx.Row) (*models.CategoryRule, error) {
	var r models.CategoryRule
	err := row.Scan(&r.ID, &r.UserID, &r.Description, &r.Category, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertCategoryRule creates or replaces the rule for the normalized
// description. Two raw descriptions that normalize the same way are the
// same rule, so the later write wins.
func UpsertCategoryRule(ctx context.Context, pool *pgxpool.Pool, rule *models.CategoryRule) (*models.CategoryRule, error) {
	query := `
		INSERT INTO category_rules (user_id, description, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, description) DO UPDATE SET
			category = EXCLUDED.category,
			updated_at = NOW()
		RETURNING ` + categoryRuleColumns
	normalized := categories.NormalizeDescription(rule.Description)
	return scanCategoryRule(pool.QueryRow(ctx, query, rule.UserID, normalized, rule.Category))
}

func GetCategoryRules(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.CategoryRule, error) {
	query := `SELECT ` + categoryRuleColumns + ` FROM category_rules WHERE user_id = $1 ORDER BY id`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.CategoryRule
	for rows.Next() {
		r, err := scanCategoryRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func DeleteCategoryRule(ctx context.Context, pool *pgxpool.Pool, userID, ruleID int64) error {
	cmd, err := pool.Exec(ctx, `DELETE FROM category_rules WHERE id = $1 AND user_id = $2`, ruleID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("category rule not found")
	}
	return nil
}

// ApplyCategoryRulesToUser re-categorizes every transaction the user owns
// whose normalized description matches a rule. Called after a rule is
// created or changed so rules act retroactively, not just on future
// syncs. Returns the number of transactions adjusted.
func ApplyCategoryRulesToUser(ctx context.Context, pool *pgxpool.Pool, userID int64) (int, error) {
	rules, err := GetCategoryRules(ctx, pool, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch category rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}
	ruleSet := categories.NewRuleSet()
	for _, r := range rules {
		ruleSet.Add(r.Description, r.Category)
	}

	query := `
		SELECT t.id, t.description, t.category FROM transactions t
		WHERE t.user_id = $1
			OR t.account_id IN (SELECT id FROM linked_accounts WHERE user_id = $1)
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer rows.Close()

	type txnRow struct {
		ID          int64
		Description string
		Category    categories.Category
	}
	var txns []txnRow
	for rows.Next() {
		var row txnRow
		if err := rows.Scan(&row.ID, &row.Description, &row.Category); err != nil {
			return 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, row)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	adjusted := 0
	for _, txn := range txns {
		cat, ok := ruleSet.Lookup(txn.Description)
		if !ok || cat == txn.Category {
			continue
		}
		if err := SetTransactionCategory(ctx, pool, txn.ID, cat); err != nil {
			return adjusted, fmt.Errorf("failed to update transaction category: %w", err)
		}
		adjusted++
	}
	if adjusted > 0 {
		log.Printf("INFO: category rules adjusted %d transactions for user %d", adjusted, userID)
	}
	return adjusted, nil
}

const customCategoryColumns = `id, user_id, category, name, created_at`

func scanCustomCategory(row pgx.Row) (*models.CustomCategory, error) {
	var c models.CustomCategory
	err := row.Scan(&c.ID, &c.UserID, &c.Category, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomCategory allocates the next id in the user's custom range.
func CreateCustomCategory(ctx context.Context, pool *pgxpool.Pool, userID int64, name string) (*models.CustomCategory, error) {
	query := `
		INSERT INTO custom_categories (user_id, category, name)
		VALUES ($1,
			(SELECT COALESCE(MAX(category), $2 - 1) + 1 FROM custom_categories WHERE user_id = $1),
			$3)
		RETURNING ` + customCategoryColumns
	c, err := scanCustomCategory(pool.QueryRow(ctx, query, userID, categories.CustomStart, name))
	if IsUniqueViolation(err) {
		return nil, errors.New("custom category name already in use")
	}
	return c, err
}

func GetCustomCategories(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.CustomCategory, error) {
	query := `SELECT ` + customCategoryColumns + ` FROM custom_categories WHERE user_id = $1 ORDER BY category`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []models.CustomCategory
	for rows.Next() {
		c, err := scanCustomCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *c)
	}
	return cats, rows.Err()
}

// DeleteCustomCategory removes the category and resets transactions that
// used it to uncategorized, so no row points at a dangling id.
func DeleteCustomCategory(ctx context.Context, pool *pgxpool.Pool, userID, id int64) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var category categories.Category
	err = tx.QueryRow(ctx,
		`DELETE FROM custom_categories WHERE id = $1 AND user_id = $2 RETURNING category`,
		id, userID).Scan(&category)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.New("custom category not found")
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE transactions SET category = $1
		WHERE category = $2 AND (user_id = $3
			OR account_id IN (SELECT id FROM linked_accounts WHERE user_id = $3))
	`, categories.Uncategorized, category, userID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM category_rules WHERE user_id = $1 AND category = $2`, userID, category)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
