package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	price float64
	err   error
	calls int
}

func (f *fakeFetcher) Spot(ctx context.Context, symbol string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func newTestService(f Fetcher, ttl time.Duration) (*Service, *time.Time) {
	s := NewService(f, ttl)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSpot_CachesWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{price: 50000}
	s, _ := newTestService(fetcher, 10*time.Minute)

	for i := 0; i < 3; i++ {
		price, err := s.Spot(context.Background(), "BTC")
		require.NoError(t, err)
		assert.Equal(t, 50000.0, price)
	}
	assert.Equal(t, 1, fetcher.calls)
}

func TestSpot_RefetchesAfterTTL(t *testing.T) {
	fetcher := &fakeFetcher{price: 50000}
	s, now := newTestService(fetcher, 10*time.Minute)

	_, err := s.Spot(context.Background(), "BTC")
	require.NoError(t, err)

	*now = now.Add(11 * time.Minute)
	fetcher.price = 51000

	price, err := s.Spot(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 51000.0, price)
	assert.Equal(t, 2, fetcher.calls)
}

func TestSpot_ServesStaleOnFetchError(t *testing.T) {
	fetcher := &fakeFetcher{price: 50000}
	s, now := newTestService(fetcher, 10*time.Minute)

	_, err := s.Spot(context.Background(), "BTC")
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	fetcher.err = errors.New("api down")

	price, err := s.Spot(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
}

func TestSpot_ErrorWithNoCache(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("api down")}
	s, _ := newTestService(fetcher, 10*time.Minute)

	_, err := s.Spot(context.Background(), "ETH")
	require.Error(t, err)
}

func TestSpot_SymbolsCachedIndependently(t *testing.T) {
	fetcher := &fakeFetcher{price: 100}
	s, _ := newTestService(fetcher, 10*time.Minute)

	_, err := s.Spot(context.Background(), "BTC")
	require.NoError(t, err)
	_, err = s.Spot(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}
