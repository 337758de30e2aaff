package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Fetcher returns the current USD spot price for one asset symbol.
type Fetcher interface {
	Spot(ctx context.Context, symbol string) (float64, error)
}

// CoinbaseFetcher reads spot prices from Coinbase's public price API. No
// credentials are needed for spot quotes.
type CoinbaseFetcher struct {
	HTTP    *http.Client
	BaseURL string
}

func NewCoinbaseFetcher() *CoinbaseFetcher {
	return &CoinbaseFetcher{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		BaseURL: "https://api.coinbase.com",
	}
}

func (f *CoinbaseFetcher) Spot(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/v2/prices/%s-USD/spot", f.BaseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s spot price: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching %s spot price: status %d", symbol, resp.StatusCode)
	}

	var body struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding %s spot price: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(body.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s spot price %q: %w", symbol, body.Data.Amount, err)
	}
	return price, nil
}

type entry struct {
	value   float64
	fetched time.Time
}

// Service caches spot prices for a fixed TTL so balance reads do not hit
// the price API on every request. When a refresh fails a stale price is
// served rather than an error; an old quote beats no quote for net-worth
// math.
type Service struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]entry
}

func NewService(fetcher Fetcher, ttl time.Duration) *Service {
	return &Service{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]entry),
	}
}

func (s *Service) Spot(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	cached, ok := s.cache[symbol]
	s.mu.Unlock()

	if ok && s.now().Sub(cached.fetched) < s.ttl {
		return cached.value, nil
	}

	price, err := s.fetcher.Spot(ctx, symbol)
	if err != nil {
		if ok {
			return cached.value, nil
		}
		return 0, err
	}

	s.mu.Lock()
	s.cache[symbol] = entry{value: price, fetched: s.now()}
	s.mu.Unlock()
	return price, nil
}
