package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/categories"
	appdb "finance-monitor-server/src/db"
	db "finance-monitor-server/src/db/sql"
	"finance-monitor-server/src/mintcsv"
	"finance-monitor-server/src/models"
)

func parseTransactionFilter(r *http.Request) (db.TransactionFilter, error) {
	var filter db.TransactionFilter
	q := r.URL.Query()

	if s := q.Get("account_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return filter, errors.New("invalid account_id")
		}
		filter.AccountID = &id
	}
	if s := q.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, errors.New("invalid from date")
		}
		filter.From = &t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, errors.New("invalid to date")
		}
		filter.To = &t
	}
	if s := q.Get("category"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || !categories.Category(v).Valid() {
			return filter, errors.New("invalid category")
		}
		c := categories.Category(v)
		filter.Category = &c
	}
	filter.Search = q.Get("search")
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

func GetTransactions(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		filter, err := parseTransactionFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		cacheKey := "transactions:" + strconv.FormatInt(userID, 10) + ":" + r.URL.RawQuery
		if cached, ok := cache.Get(cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		txns, err := db.GetTransactions(r.Context(), pool, userID, filter)
		if err != nil {
			http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch transactions for user %d: %v", userID, err)
			return
		}
		cache.Set(appdb.CacheTransactions, cacheKey, txns)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(txns)
	}
}

type transactionRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Merchant    *string `json:"merchant"`
	Category    *int    `json:"category"`
	Date        string  `json:"date"`
	Notes       string  `json:"notes"`
	Highlighted bool    `json:"highlighted"`
	Ignored     bool    `json:"ignored"`
}

// CreateTransaction records a manual, user-owned transaction. When no
// category is given it is resolved the same way feed records are.
func CreateTransaction(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Description == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}

		var cat categories.Category
		if req.Category != nil && categories.Category(*req.Category).Valid() {
			cat = categories.Category(*req.Category)
		} else {
			rules, err := loadRuleSet(r, pool, userID)
			if err != nil {
				http.Error(w, "Failed to load category rules", http.StatusInternalServerError)
				return
			}
			cat, _ = categories.Resolve(nil, req.Description, rules)
		}

		t, err := db.InsertTransaction(r.Context(), pool, &models.Transaction{
			UserID:      &userID,
			Amount:      req.Amount,
			Description: req.Description,
			Merchant:    req.Merchant,
			Category:    cat,
			Date:        date,
			Notes:       req.Notes,
			Highlighted: req.Highlighted,
			Ignored:     req.Ignored,
		})
		if db.IsUniqueViolation(err) {
			http.Error(w, "duplicate transaction", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, "Failed to create transaction", http.StatusInternalServerError)
			log.Printf("ERROR: failed to create transaction for user %d: %v", userID, err)
			return
		}
		cache.ClearGroup(appdb.CacheTransactions)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(t)
	}
}

func UpdateTransaction(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		id, err := strconv.ParseInt(chi.URLParam(r, "transaction_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		existing, err := db.GetTransactionByID(r.Context(), pool, userID, id)
		if err != nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}

		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Description == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}

		cat := existing.Category
		if req.Category != nil {
			if !categories.Category(*req.Category).Valid() {
				http.Error(w, "invalid category", http.StatusBadRequest)
				return
			}
			cat = categories.Category(*req.Category)
		}

		existing.Amount = req.Amount
		existing.Description = req.Description
		existing.Merchant = req.Merchant
		existing.Category = cat
		existing.Date = date
		existing.Notes = req.Notes
		existing.Highlighted = req.Highlighted
		existing.Ignored = req.Ignored

		updated, err := db.UpdateTransaction(r.Context(), pool, userID, existing)
		if err != nil {
			http.Error(w, "Failed to update transaction", http.StatusInternalServerError)
			log.Printf("ERROR: failed to update transaction %d for user %d: %v", id, userID, err)
			return
		}
		cache.ClearGroup(appdb.CacheTransactions)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteTransaction(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		id, err := strconv.ParseInt(chi.URLParam(r, "transaction_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteTransaction(r.Context(), pool, userID, id); err != nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}
		cache.ClearGroup(appdb.CacheTransactions)

		w.WriteHeader(http.StatusNoContent)
	}
}

// ImportTransactions ingests a Mint-format CSV. Duplicate rows (same
// date, description, amount) are skipped and counted, so re-importing the
// same file is harmless.
func ImportTransactions(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		rules, err := loadRuleSet(r, pool, userID)
		if err != nil {
			http.Error(w, "Failed to load category rules", http.StatusInternalServerError)
			return
		}

		result, err := mintcsv.Import(r.Body, userID, rules)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		imported, duplicates := 0, 0
		for i := range result.Transactions {
			_, err := db.InsertTransaction(r.Context(), pool, &result.Transactions[i])
			if db.IsUniqueViolation(err) {
				duplicates++
				continue
			}
			if err != nil {
				http.Error(w, "Failed to import transactions", http.StatusInternalServerError)
				log.Printf("ERROR: csv import failed for user %d: %v", userID, err)
				return
			}
			imported++
		}
		cache.ClearGroup(appdb.CacheTransactions)
		for _, label := range result.Unrecognized {
			log.Printf("WARN: unrecognized category label %q in csv import for user %d", label, userID)
		}
		log.Printf("INFO: csv import for user %d: %d imported, %d duplicates, %d rejected", userID, imported, duplicates, len(result.Rejected))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"imported":     imported,
			"duplicates":   duplicates,
			"rejected":     result.Rejected,
			"unrecognized": result.Unrecognized,
		})
	}
}

func ExportTransactions(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		filter, err := parseTransactionFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Export everything matching, not one page.
		filter.Limit = 1 << 20

		txns, err := db.GetTransactions(r.Context(), pool, userID, filter)
		if err != nil {
			http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
			log.Printf("ERROR: failed to export transactions for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
		if err := mintcsv.Export(w, txns); err != nil {
			log.Printf("ERROR: csv export failed for user %d: %v", userID, err)
		}
	}
}

func GetRecurringTransactions(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		cacheKey := "recurring:" + strconv.FormatInt(userID, 10)
		if cached, ok := cache.Get(cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		recurring, err := db.GetRecurringForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch recurring transactions", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch recurring transactions for user %d: %v", userID, err)
			return
		}
		cache.Set(appdb.CacheRecurring, cacheKey, recurring)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recurring)
	}
}

func loadRuleSet(r *http.Request, pool *pgxpool.Pool, userID int64) (categories.RuleSet, error) {
	rules, err := db.GetCategoryRules(r.Context(), pool, userID)
	if err != nil {
		return nil, err
	}
	rs := categories.NewRuleSet()
	for _, rule := range rules {
		rs.Add(rule.Description, rule.Category)
	}
	return rs, nil
}
