package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"finance-monitor-server/src/models"
)

// Syncer is the slice of the reconciliation engine the scheduler drives.
type Syncer interface {
	SyncAccount(ctx context.Context, acc models.LinkedAccount) (models.SyncResult, error)
	SyncRecurring(ctx context.Context, acc models.LinkedAccount) error
}

// Accounts is the account bookkeeping the scheduler needs.
type Accounts interface {
	ListAccounts(ctx context.Context) ([]models.LinkedAccount, error)
	MarkTranRefreshAttempt(ctx context.Context, accountID int64) error
	MarkTranRefreshSuccess(ctx context.Context, accountID int64) error
	MarkRecurringRefresh(ctx context.Context, accountID int64) error
}

// Scheduler periodically refreshes every linked account whose data has
// gone stale. Dueness is judged on the last attempt, not the last
// success, so a failing account is retried on the normal cadence instead
// of every tick.
type Scheduler struct {
	Accounts Accounts
	Syncer   Syncer

	CheckInterval     time.Duration
	TranInterval      time.Duration
	RecurringInterval time.Duration

	// OnNewData, when set, runs after any sweep that changed data, e.g.
	// to drop read caches.
	OnNewData func()

	now func() time.Time
}

func New(accounts Accounts, syncer Syncer, check, tran, recurring time.Duration) *Scheduler {
	return &Scheduler{
		Accounts:          accounts,
		Syncer:            syncer,
		CheckInterval:     check,
		TranInterval:      tran,
		RecurringInterval: recurring,
		now:               time.Now,
	}
}

// Run blocks, sweeping once immediately and then on every tick, until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.RefreshDue(ctx)

	ticker := time.NewTicker(s.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshDue(ctx)
		}
	}
}

// RefreshDue runs one sweep. Accounts sync concurrently with each other;
// within one account the transaction sync and recurring refresh run in
// order on the same goroutine.
func (s *Scheduler) RefreshDue(ctx context.Context) {
	accounts, err := s.Accounts.ListAccounts(ctx)
	if err != nil {
		log.Printf("ERROR: scheduler failed to list accounts: %v", err)
		return
	}

	var wg sync.WaitGroup
	var changed atomic.Bool
	for _, acc := range accounts {
		if acc.NeedsAttention {
			// Syncing cannot succeed until the user re-authenticates.
			continue
		}
		tranDue := s.now().Sub(acc.LastTranRefreshAttempt) >= s.TranInterval
		recurringDue := s.now().Sub(acc.LastRecurringRefresh) >= s.RecurringInterval
		if !tranDue && !recurringDue {
			continue
		}

		wg.Add(1)
		go func(acc models.LinkedAccount) {
			defer wg.Done()
			if tranDue && s.refreshTransactions(ctx, acc) {
				changed.Store(true)
			}
			if recurringDue && s.refreshRecurring(ctx, acc) {
				changed.Store(true)
			}
		}(acc)
	}
	wg.Wait()

	if changed.Load() && s.OnNewData != nil {
		s.OnNewData()
	}
}

func (s *Scheduler) refreshTransactions(ctx context.Context, acc models.LinkedAccount) bool {
	// The attempt is marked before syncing so a crash mid-sync still
	// counts and the account is not hammered on restart.
	if err := s.Accounts.MarkTranRefreshAttempt(ctx, acc.ID); err != nil {
		log.Printf("ERROR: marking refresh attempt for account %d: %v", acc.ID, err)
		return false
	}
	res, err := s.Syncer.SyncAccount(ctx, acc)
	if err != nil {
		log.Printf("WARN: scheduled sync failed for account %d: %v", acc.ID, err)
		return false
	}
	if res.NewData {
		log.Printf("INFO: account %d synced: %d added, %d modified, %d removed", acc.ID, res.Added, res.Modified, res.Removed)
	}
	if err := s.Accounts.MarkTranRefreshSuccess(ctx, acc.ID); err != nil {
		log.Printf("ERROR: marking refresh success for account %d: %v", acc.ID, err)
	}
	return res.NewData
}

func (s *Scheduler) refreshRecurring(ctx context.Context, acc models.LinkedAccount) bool {
	if err := s.Syncer.SyncRecurring(ctx, acc); err != nil {
		log.Printf("WARN: scheduled recurring refresh failed for account %d: %v", acc.ID, err)
		return false
	}
	if err := s.Accounts.MarkRecurringRefresh(ctx, acc.ID); err != nil {
		log.Printf("ERROR: marking recurring refresh for account %d: %v", acc.ID, err)
	}
	return true
}
