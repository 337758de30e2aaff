package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-monitor-server/src/models"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts []models.LinkedAccount
	attempts []int64
	success  []int64
	recur    []int64
}

func (f *fakeAccounts) ListAccounts(ctx context.Context) ([]models.LinkedAccount, error) {
	return f.accounts, nil
}

func (f *fakeAccounts) MarkTranRefreshAttempt(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, id)
	return nil
}

func (f *fakeAccounts) MarkTranRefreshSuccess(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success = append(f.success, id)
	return nil
}

func (f *fakeAccounts) MarkRecurringRefresh(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recur = append(f.recur, id)
	return nil
}

type fakeSyncer struct {
	mu        sync.Mutex
	synced    []int64
	recurring []int64
	err       error
}

func (f *fakeSyncer) SyncAccount(ctx context.Context, acc models.LinkedAccount) (models.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, acc.ID)
	if f.err != nil {
		return models.SyncResult{}, f.err
	}
	return models.SyncResult{Success: true}, nil
}

func (f *fakeSyncer) SyncRecurring(ctx context.Context, acc models.LinkedAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recurring = append(f.recurring, acc.ID)
	return f.err
}

func newTestScheduler(accounts *fakeAccounts, syncer *fakeSyncer) *Scheduler {
	s := New(accounts, syncer, time.Hour, 4*24*time.Hour, 10*24*time.Hour)
	s.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestRefreshDue_OnlySyncsStaleAccounts(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	accounts := &fakeAccounts{accounts: []models.LinkedAccount{
		{ID: 1, LastTranRefreshAttempt: now.Add(-5 * 24 * time.Hour), LastRecurringRefresh: now},
		{ID: 2, LastTranRefreshAttempt: now.Add(-time.Hour), LastRecurringRefresh: now},
	}}
	syncer := &fakeSyncer{}

	newTestScheduler(accounts, syncer).RefreshDue(context.Background())

	assert.Equal(t, []int64{1}, syncer.synced)
	assert.Equal(t, []int64{1}, accounts.attempts)
	assert.Equal(t, []int64{1}, accounts.success)
	assert.Empty(t, syncer.recurring)
}

func TestRefreshDue_RecurringOnItsOwnCadence(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	accounts := &fakeAccounts{accounts: []models.LinkedAccount{
		{ID: 1, LastTranRefreshAttempt: now, LastRecurringRefresh: now.Add(-11 * 24 * time.Hour)},
	}}
	syncer := &fakeSyncer{}

	newTestScheduler(accounts, syncer).RefreshDue(context.Background())

	assert.Empty(t, syncer.synced)
	assert.Equal(t, []int64{1}, syncer.recurring)
	assert.Equal(t, []int64{1}, accounts.recur)
}

func TestRefreshDue_SkipsAccountsNeedingAttention(t *testing.T) {
	accounts := &fakeAccounts{accounts: []models.LinkedAccount{
		{ID: 1, NeedsAttention: true},
	}}
	syncer := &fakeSyncer{}

	newTestScheduler(accounts, syncer).RefreshDue(context.Background())

	assert.Empty(t, syncer.synced)
	assert.Empty(t, accounts.attempts)
}

func TestRefreshDue_FailureMarksAttemptButNotSuccess(t *testing.T) {
	accounts := &fakeAccounts{accounts: []models.LinkedAccount{
		{ID: 1},
	}}
	syncer := &fakeSyncer{err: errors.New("institution down")}

	newTestScheduler(accounts, syncer).RefreshDue(context.Background())

	assert.Equal(t, []int64{1}, accounts.attempts)
	assert.Empty(t, accounts.success)
	assert.Empty(t, accounts.recur)
}

func TestRefreshDue_FiresOnNewDataHook(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	accounts := &fakeAccounts{accounts: []models.LinkedAccount{
		{ID: 1, LastTranRefreshAttempt: now, LastRecurringRefresh: now.Add(-11 * 24 * time.Hour)},
	}}
	syncer := &fakeSyncer{}
	s := newTestScheduler(accounts, syncer)

	fired := false
	s.OnNewData = func() { fired = true }
	s.RefreshDue(context.Background())

	assert.True(t, fired)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	accounts := &fakeAccounts{}
	syncer := &fakeSyncer{}
	s := New(accounts, syncer, 10*time.Millisecond, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "scheduler did not stop on cancel")
	}
}
