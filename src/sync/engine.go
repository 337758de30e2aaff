package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/models"
)

// Engine merges the aggregator's cursor-based delta feed into local
// state, one linked account at a time. Runs for different accounts may
// proceed concurrently; within one run the page loop is strictly
// sequential because each page's cursor depends on the prior response.
type Engine struct {
	Agg     Aggregator
	Store   Store
	Metrics *Metrics
}

func NewEngine(agg Aggregator, store Store, metrics *Metrics) *Engine {
	return &Engine{Agg: agg, Store: store, Metrics: metrics}
}

// SyncAccount fetches and applies all pending transaction deltas for one
// linked account. The stored cursor is only advanced after every page has
// been fetched and applied; a failure anywhere leaves it untouched, and
// re-applying already-seen added records on the next run is safe because
// duplicate inserts are idempotent.
func (e *Engine) SyncAccount(ctx context.Context, acc models.LinkedAccount) (models.SyncResult, error) {
	var res models.SyncResult

	cursor := acc.Cursor
	var added, modified []models.TransactionRecord
	var removed []models.RemovedRecord

	for {
		page, err := e.Agg.SyncTransactions(ctx, acc.AccessToken, cursor)
		if err != nil {
			e.handleAggregatorError(ctx, acc, err)
			return res, err
		}
		added = append(added, page.Added...)
		modified = append(modified, page.Modified...)
		removed = append(removed, page.Removed...)
		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}

	if err := e.syncBalances(ctx, acc); err != nil {
		e.handleAggregatorError(ctx, acc, err)
		return res, err
	}

	// One rule snapshot for the whole run, so every record in this run is
	// classified consistently even if the user edits rules concurrently.
	ruleSet, err := e.ruleSnapshot(ctx, acc.UserID)
	if err != nil {
		return res, err
	}

	for _, rec := range added {
		cat := e.resolveCategory(rec.Hints, rec.Description, ruleSet)
		t := transactionFromRecord(acc, rec, cat)
		err := e.Store.InsertTransaction(ctx, t)
		if errors.Is(err, ErrDuplicateTransaction) {
			// Expected redelivery; drop silently.
			res.Duplicates++
			e.Metrics.DuplicateInserts.Add(1)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("inserting transaction: %w", err)
		}
		res.Added++
	}

	for _, rec := range modified {
		existing, err := e.Store.FindTransactionByExternalID(ctx, acc.ID, rec.ExternalID, rec.PendingExternalID)
		if err != nil {
			return res, fmt.Errorf("locating modified transaction: %w", err)
		}
		if existing == nil {
			// Local and remote state have drifted; report and keep going.
			log.Printf("WARN: reconciliation anomaly: modified record %s not found on account %d", rec.ExternalID, acc.ID)
			res.Anomalies++
			e.Metrics.Anomalies.Add(1)
			continue
		}
		rec.Amount = -rec.Amount
		if err := e.Store.UpdateTransactionFromFeed(ctx, existing.ID, rec); err != nil {
			return res, fmt.Errorf("updating transaction %d: %w", existing.ID, err)
		}
		res.Modified++
	}

	for _, rec := range removed {
		deleted, err := e.Store.DeleteTransactionByExternalID(ctx, acc.ID, rec.ExternalID)
		if err != nil {
			return res, fmt.Errorf("deleting transaction %s: %w", rec.ExternalID, err)
		}
		if !deleted {
			log.Printf("WARN: reconciliation anomaly: removed record %s not found on account %d", rec.ExternalID, acc.ID)
			res.Anomalies++
			e.Metrics.Anomalies.Add(1)
			continue
		}
		res.Removed++
	}

	// Everything applied; only now is it safe to commit the cursor.
	if err := e.Store.SetCursor(ctx, acc.ID, cursor); err != nil {
		return res, fmt.Errorf("persisting cursor: %w", err)
	}

	res.Success = true
	res.NewData = res.Added > 0 || res.Modified > 0 || res.Removed > 0
	return res, nil
}

func (e *Engine) syncBalances(ctx context.Context, acc models.LinkedAccount) error {
	balances, err := e.Agg.Balances(ctx, acc.AccessToken)
	if err != nil {
		return err
	}
	for _, b := range balances {
		if err := e.Store.UpsertSubAccount(ctx, acc.ID, b); err != nil {
			return fmt.Errorf("upserting sub-account %s: %w", b.ExternalID, err)
		}
	}
	return nil
}

// SyncRecurring refreshes the recurring-stream snapshot for one account.
// Streams are a summary, not a log, so the stored rows are fully replaced
// rather than diffed.
func (e *Engine) SyncRecurring(ctx context.Context, acc models.LinkedAccount) error {
	subs, err := e.Store.SubAccountsForAccount(ctx, acc.ID)
	if err != nil {
		return err
	}
	byExternalID := make(map[string]int64, len(subs))
	var ids []string
	for _, s := range subs {
		if s.ExternalID != "" {
			byExternalID[s.ExternalID] = s.ID
			ids = append(ids, s.ExternalID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	inflows, outflows, err := e.Agg.Recurring(ctx, acc.AccessToken, ids)
	if err != nil {
		e.handleAggregatorError(ctx, acc, err)
		return err
	}

	ruleSet, err := e.ruleSnapshot(ctx, acc.UserID)
	if err != nil {
		return err
	}

	var rows []models.RecurringTransaction
	appendStreams := func(streams []models.RecurringStream, dir models.RecurringDirection) {
		for _, s := range streams {
			subID, ok := byExternalID[s.AccountExternalID]
			if !ok {
				log.Printf("WARN: recurring stream references unknown sub-account %s on account %d", s.AccountExternalID, acc.ID)
				e.Metrics.Anomalies.Add(1)
				continue
			}
			rows = append(rows, models.RecurringTransaction{
				SubAccountID:  subID,
				Direction:     dir,
				AverageAmount: s.AverageAmount,
				LastAmount:    s.LastAmount,
				FirstDate:     s.FirstDate,
				LastDate:      s.LastDate,
				Description:   s.Description,
				MerchantName:  s.MerchantName,
				IsActive:      s.IsActive,
				Status:        s.Status,
				Category:      e.resolveCategory(s.Hints, s.Description, ruleSet),
			})
		}
	}
	appendStreams(inflows, models.RecurringInflow)
	appendStreams(outflows, models.RecurringOutflow)

	return e.Store.ReplaceRecurring(ctx, acc.ID, rows)
}

func (e *Engine) ruleSnapshot(ctx context.Context, userID int64) (categories.RuleSet, error) {
	rules, err := e.Store.RulesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}
	rs := categories.NewRuleSet()
	for _, r := range rules {
		rs.Add(r.Description, r.Category)
	}
	return rs, nil
}

func (e *Engine) resolveCategory(hints []string, description string, rules categories.RuleSet) categories.Category {
	cat, gaps := categories.Resolve(hints, description, rules)
	for _, g := range gaps {
		log.Printf("WARN: unrecognized category hint %q for %q", g, description)
		e.Metrics.ClassificationGaps.Add(1)
	}
	return cat
}

func (e *Engine) handleAggregatorError(ctx context.Context, acc models.LinkedAccount, err error) {
	e.Metrics.SyncFailures.Add(1)

	var aggErr *Error
	if !errors.As(err, &aggErr) {
		log.Printf("ALERT: unclassified sync error on account %d: %v", acc.ID, err)
		return
	}
	switch aggErr.Kind {
	case KindReauthRequired:
		log.Printf("WARN: account %d requires re-authentication: %v", acc.ID, err)
		if serr := e.Store.SetNeedsAttention(ctx, acc.ID); serr != nil {
			log.Printf("ERROR: failed to flag account %d for attention: %v", acc.ID, serr)
		}
	case KindTransient:
		// Waiting fixes this; the stale success timestamp is the signal.
		log.Printf("WARN: institution unavailable for account %d: %v", acc.ID, err)
	default:
		log.Printf("ALERT: unrecognized aggregator error on account %d: %v", acc.ID, err)
	}
}

func transactionFromRecord(acc models.LinkedAccount, rec models.TransactionRecord, cat categories.Category) *models.Transaction {
	accountID := acc.ID
	externalID := rec.ExternalID
	t := &models.Transaction{
		AccountID:       &accountID,
		InstitutionName: acc.InstitutionName,
		// The feed reports outflows as positive; internally negative is
		// money out.
		Amount:      -rec.Amount,
		Description: rec.Description,
		Category:    cat,
		Date:        rec.Date,
		Datetime:    rec.Datetime,
		ExternalID:  &externalID,
		Currency:    rec.Currency,
		Pending:     rec.Pending,
	}
	if rec.MerchantName != "" {
		m := rec.MerchantName
		t.Merchant = &m
	}
	if rec.LogoURL != "" {
		u := rec.LogoURL
		t.LogoURL = &u
	}
	return t
}
