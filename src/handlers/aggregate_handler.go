package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/aggregate"
	db "finance-monitor-server/src/db/sql"
	"finance-monitor-server/src/models"
	"finance-monitor-server/src/prices"
	"finance-monitor-server/src/util"
)

// parseWindow reads from/to query params, defaulting to the current
// calendar month so far.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := now

	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return from, to, err
		}
		to = t
	}
	return from, to, nil
}

// GetNetWorth values all sub-accounts. Crypto sub-accounts hold units in
// their balance and their symbol in the official name, so they are priced
// at the current spot quote before summing.
func GetNetWorth(pool *pgxpool.Pool, priceSvc *prices.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		subs, err := db.GetSubAccountsForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch sub-accounts", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch sub-accounts for user %d: %v", userID, err)
			return
		}

		for i, s := range subs {
			if s.Type != models.TypeCrypto || s.Current == nil {
				continue
			}
			symbol := strings.ToUpper(s.OfficialName)
			if !util.ValidateSymbol(symbol) {
				continue
			}
			price, err := priceSvc.Spot(r.Context(), symbol)
			if err != nil {
				log.Printf("WARN: no spot price for %s, holding valued at zero: %v", symbol, err)
				zero := 0.0
				subs[i].Current = &zero
				continue
			}
			value := *s.Current * price
			subs[i].Current = &value
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]float64{"net_worth": aggregate.NetWorth(subs)})
	}
}

func GetSpendingTotal(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		from, to, err := parseWindow(r)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		txns, err := db.GetTransactions(r.Context(), pool, userID, db.TransactionFilter{From: &from, To: &to, Limit: 1 << 20})
		if err != nil {
			http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch transactions for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"from":  from.Format("2006-01-02"),
			"to":    to.Format("2006-01-02"),
			"total": aggregate.SpendingTotal(txns, from, to),
		})
	}
}

func GetCategoryBreakdown(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		from, to, err := parseWindow(r)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		txns, err := db.GetTransactions(r.Context(), pool, userID, db.TransactionFilter{From: &from, To: &to, Limit: 1 << 20})
		if err != nil {
			http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch transactions for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(aggregate.CategoryBreakdown(txns, from, to))
	}
}

// GetWindowComparison needs the preceding window's transactions too, so
// it widens the fetch before delegating to the pure comparison.
func GetWindowComparison(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		from, to, err := parseWindow(r)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		fetchFrom := from.Add(-to.Sub(from) - 24*time.Hour)
		txns, err := db.GetTransactions(r.Context(), pool, userID, db.TransactionFilter{From: &fetchFrom, To: &to, Limit: 1 << 20})
		if err != nil {
			http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch transactions for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(aggregate.WindowComparison(txns, from, to))
	}
}
