package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance-monitor-server/src/categories"
	appdb "finance-monitor-server/src/db"
	db "finance-monitor-server/src/db/sql"
	"finance-monitor-server/src/models"
	"finance-monitor-server/src/util"
)

type categoryInfo struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	Discretionary bool   `json:"discretionary"`
	Spending      bool   `json:"spending"`
	Custom        bool   `json:"custom"`
}

// GetCategories lists the built-in taxonomy plus the user's custom
// categories.
func GetCategories(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var out []categoryInfo
		for _, c := range categories.All() {
			out = append(out, categoryInfo{
				ID:            int(c),
				Name:          c.DisplayName(),
				Icon:          c.Icon(),
				Discretionary: c.DiscretionaryClass() == categories.ClassDiscretionary,
				Spending:      c.IsSpending(),
				Custom:        false,
			})
		}

		custom, err := db.GetCustomCategories(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch custom categories", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch custom categories for user %d: %v", userID, err)
			return
		}
		for _, c := range custom {
			out = append(out, categoryInfo{
				ID:            int(c.Category),
				Name:          c.Name,
				Discretionary: true,
				Spending:      true,
				Custom:        true,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// CreateCategoryRule creates or replaces a rule and immediately applies
// it to the user's existing transactions.
func CreateCategoryRule(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			Description string `json:"description"`
			Category    int    `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if !util.ValidateRuleDescription(req.Description) {
			http.Error(w, "invalid description", http.StatusBadRequest)
			return
		}
		if !categories.Category(req.Category).Valid() {
			http.Error(w, "invalid category", http.StatusBadRequest)
			return
		}

		rule, err := db.UpsertCategoryRule(r.Context(), pool, &models.CategoryRule{
			UserID:      userID,
			Description: req.Description,
			Category:    categories.Category(req.Category),
		})
		if err != nil {
			http.Error(w, "Failed to save category rule", http.StatusInternalServerError)
			log.Printf("ERROR: failed to save category rule for user %d: %v", userID, err)
			return
		}

		adjusted, err := db.ApplyCategoryRulesToUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to apply category rules", http.StatusInternalServerError)
			log.Printf("ERROR: failed to apply category rules for user %d: %v", userID, err)
			return
		}
		if adjusted > 0 {
			cache.ClearGroup(appdb.CacheTransactions)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"rule":     rule,
			"adjusted": adjusted,
		})
	}
}

func GetCategoryRules(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		rules, err := db.GetCategoryRules(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch category rules", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch category rules for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rules)
	}
}

func DeleteCategoryRule(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		ruleID, err := strconv.ParseInt(chi.URLParam(r, "rule_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}

		// Deleting a rule does not revert transactions it already
		// categorized; resolved categories stick.
		if err := db.DeleteCategoryRule(r.Context(), pool, userID, ruleID); err != nil {
			http.Error(w, "category rule not found", http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// TriggerCategoryRules re-applies all rules on demand.
func TriggerCategoryRules(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		adjusted, err := db.ApplyCategoryRulesToUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to apply category rules", http.StatusInternalServerError)
			log.Printf("ERROR: failed to apply category rules for user %d: %v", userID, err)
			return
		}
		if adjusted > 0 {
			cache.ClearGroup(appdb.CacheTransactions)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"adjusted": adjusted})
	}
}

func CreateCustomCategory(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if !util.ValidateCategoryName(req.Name) {
			http.Error(w, "invalid category name", http.StatusBadRequest)
			return
		}

		cat, err := db.CreateCustomCategory(r.Context(), pool, userID, req.Name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(cat)
	}
}

func GetCustomCategories(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		custom, err := db.GetCustomCategories(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch custom categories", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch custom categories for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(custom)
	}
}

func DeleteCustomCategory(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		id, err := strconv.ParseInt(chi.URLParam(r, "category_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteCustomCategory(r.Context(), pool, userID, id); err != nil {
			http.Error(w, "custom category not found", http.StatusNotFound)
			return
		}
		cache.ClearGroup(appdb.CacheTransactions)

		w.WriteHeader(http.StatusNoContent)
	}
}
