package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	appdb "finance-monitor-server/src/db"
	db "finance-monitor-server/src/db/sql"
	"finance-monitor-server/src/models"
	syncengine "finance-monitor-server/src/sync"
)

func CreateLinkToken(plaidClient *plaid.APIClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		user := plaid.LinkTokenCreateRequestUser{
			ClientUserId: strconv.FormatInt(userID, 10),
		}
		request := plaid.NewLinkTokenCreateRequest(
			"Finance Monitor",
			"en",
			[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		)
		request.SetUser(user)
		request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
		resp, _, err := plaidClient.PlaidApi.LinkTokenCreate(r.Context()).LinkTokenCreateRequest(*request).Execute()
		if err != nil {
			http.Error(w, "Failed to create link token", http.StatusInternalServerError)
			log.Printf("ERROR: link token creation failed for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"link_token": resp.GetLinkToken()})
	}
}

func ExchangePublicToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool, cache *appdb.Cache, engine *syncengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			PublicToken     string `json:"public_token"`
			Name            string `json:"name"`
			InstitutionName string `json:"institution_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		exchangeReq := plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)
		exchangeResp, _, err := plaidClient.PlaidApi.ItemPublicTokenExchange(r.Context()).ItemPublicTokenExchangeRequest(
			*exchangeReq,
		).Execute()
		if err != nil {
			http.Error(w, "Failed to exchange public token", http.StatusInternalServerError)
			log.Printf("ERROR: public token exchange failed for user %d: %v", userID, err)
			return
		}

		acc, err := db.CreateLinkedAccount(r.Context(), pool, &models.LinkedAccount{
			UserID:          userID,
			Name:            req.Name,
			InstitutionName: req.InstitutionName,
			AccessToken:     exchangeResp.GetAccessToken(),
			ItemID:          exchangeResp.GetItemId(),
		})
		if err != nil {
			http.Error(w, "Failed to save linked account", http.StatusInternalServerError)
			log.Printf("ERROR: failed to save linked account for user %d: %v", userID, err)
			return
		}
		log.Printf("INFO: linked account %d created for user %d", acc.ID, userID)

		// First sync pulls the whole history; do it off the request.
		go func(acc models.LinkedAccount) {
			if _, err := engine.SyncAccount(context.Background(), acc); err != nil {
				log.Printf("WARN: initial sync failed for account %d: %v", acc.ID, err)
				return
			}
			if err := engine.SyncRecurring(context.Background(), acc); err != nil {
				log.Printf("WARN: initial recurring sync failed for account %d: %v", acc.ID, err)
			}
			cache.ClearGroup(appdb.CacheTransactions)
			cache.ClearGroup(appdb.CacheAccounts)
			cache.ClearGroup(appdb.CacheRecurring)
		}(*acc)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(acc)
	}
}

func GetLinkedAccounts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		accounts, err := db.GetLinkedAccountsForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch linked accounts", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch linked accounts for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accounts)
	}
}

func DeleteLinkedAccount(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accountID, err := strconv.ParseInt(chi.URLParam(r, "account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteLinkedAccount(r.Context(), pool, userID, accountID); err != nil {
			http.Error(w, "Failed to delete linked account", http.StatusInternalServerError)
			log.Printf("ERROR: failed to delete linked account %d for user %d: %v", accountID, userID, err)
			return
		}
		cache.ClearGroup(appdb.CacheTransactions)
		cache.ClearGroup(appdb.CacheAccounts)
		cache.ClearGroup(appdb.CacheRecurring)

		w.WriteHeader(http.StatusNoContent)
	}
}

// SyncAccount runs an on-demand sync for one linked account.
func SyncAccount(pool *pgxpool.Pool, cache *appdb.Cache, engine *syncengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accountID, err := strconv.ParseInt(chi.URLParam(r, "account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		acc, err := db.GetLinkedAccount(r.Context(), pool, userID, accountID)
		if err != nil {
			http.Error(w, "linked account not found", http.StatusNotFound)
			return
		}

		if err := db.MarkTranRefreshAttempt(r.Context(), pool, acc.ID); err != nil {
			log.Printf("ERROR: marking refresh attempt for account %d: %v", acc.ID, err)
		}
		result, err := engine.SyncAccount(r.Context(), *acc)
		if err != nil {
			http.Error(w, "sync failed", http.StatusBadGateway)
			log.Printf("ERROR: on-demand sync failed for account %d: %v", acc.ID, err)
			return
		}
		if err := db.MarkTranRefreshSuccess(r.Context(), pool, acc.ID); err != nil {
			log.Printf("ERROR: marking refresh success for account %d: %v", acc.ID, err)
		}
		if result.NewData {
			cache.ClearGroup(appdb.CacheTransactions)
		}
		cache.ClearGroup(appdb.CacheAccounts)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// SyncRecurring refreshes the recurring-stream snapshot for one account.
func SyncRecurring(pool *pgxpool.Pool, cache *appdb.Cache, engine *syncengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accountID, err := strconv.ParseInt(chi.URLParam(r, "account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		acc, err := db.GetLinkedAccount(r.Context(), pool, userID, accountID)
		if err != nil {
			http.Error(w, "linked account not found", http.StatusNotFound)
			return
		}

		if err := engine.SyncRecurring(r.Context(), *acc); err != nil {
			http.Error(w, "recurring sync failed", http.StatusBadGateway)
			log.Printf("ERROR: on-demand recurring sync failed for account %d: %v", acc.ID, err)
			return
		}
		if err := db.MarkRecurringRefresh(r.Context(), pool, acc.ID); err != nil {
			log.Printf("ERROR: marking recurring refresh for account %d: %v", acc.ID, err)
		}
		cache.ClearGroup(appdb.CacheRecurring)

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetSubAccounts(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		cacheKey := "sub_accounts:" + strconv.FormatInt(userID, 10)
		if cached, ok := cache.Get(cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		subs, err := db.GetSubAccountsForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to fetch sub-accounts", http.StatusInternalServerError)
			log.Printf("ERROR: failed to fetch sub-accounts for user %d: %v", userID, err)
			return
		}
		cache.Set(appdb.CacheAccounts, cacheKey, subs)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(subs)
	}
}

func CreateManualSubAccount(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			Name         string  `json:"name"`
			OfficialName string  `json:"official_name"`
			Type         string  `json:"type"`
			SubType      string  `json:"sub_type"`
			Currency     string  `json:"currency"`
			Current      float64 `json:"current"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		current := req.Current
		sub, err := db.CreateManualSubAccount(r.Context(), pool, &models.SubAccount{
			UserID:       &userID,
			Name:         req.Name,
			OfficialName: req.OfficialName,
			Type:         models.AccountTypeFromStr(req.Type),
			SubType:      models.SubAccountTypeFromStr(req.SubType),
			Currency:     req.Currency,
			Current:      &current,
		})
		if err != nil {
			http.Error(w, "Failed to create sub-account", http.StatusInternalServerError)
			log.Printf("ERROR: failed to create manual sub-account for user %d: %v", userID, err)
			return
		}
		cache.ClearGroup(appdb.CacheAccounts)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sub)
	}
}

func UpdateManualSubAccountBalance(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		subID, err := strconv.ParseInt(chi.URLParam(r, "sub_account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid sub-account id", http.StatusBadRequest)
			return
		}

		var req struct {
			Current float64 `json:"current"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := db.UpdateManualSubAccountBalance(r.Context(), pool, userID, subID, req.Current); err != nil {
			http.Error(w, "Failed to update balance", http.StatusNotFound)
			return
		}
		cache.ClearGroup(appdb.CacheAccounts)

		w.WriteHeader(http.StatusNoContent)
	}
}

func SetSubAccountIgnored(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		subID, err := strconv.ParseInt(chi.URLParam(r, "sub_account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid sub-account id", http.StatusBadRequest)
			return
		}

		var req struct {
			Ignored bool `json:"ignored"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := db.SetSubAccountIgnored(r.Context(), pool, userID, subID, req.Ignored); err != nil {
			http.Error(w, "Failed to update sub-account", http.StatusNotFound)
			return
		}
		cache.ClearGroup(appdb.CacheAccounts)

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteSubAccount(pool *pgxpool.Pool, cache *appdb.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		subID, err := strconv.ParseInt(chi.URLParam(r, "sub_account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid sub-account id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteSubAccount(r.Context(), pool, userID, subID); err != nil {
			http.Error(w, "Failed to delete sub-account", http.StatusNotFound)
			return
		}
		cache.ClearGroup(appdb.CacheAccounts)

		w.WriteHeader(http.StatusNoContent)
	}
}
