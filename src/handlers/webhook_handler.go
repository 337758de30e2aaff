package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	appdb "finance-monitor-server/src/db"
	db "finance-monitor-server/src/db/sql"
	syncengine "finance-monitor-server/src/sync"
	"finance-monitor-server/src/util"
)

// PlaidWebhook reacts to aggregator pushes. Transaction webhooks trigger
// an immediate sync of the named item instead of waiting for the
// scheduler's next sweep. Always answers 200 once the signature checks
// out; the aggregator retries non-2xx responses and a sync failure is
// ours to handle, not theirs.
func PlaidWebhook(verifier *util.WebhookVerifier, pool *pgxpool.Pool, cache *appdb.Cache, engine *syncengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		if err := verifier.Verify(r.Context(), body, r.Header.Get("Plaid-Verification")); err != nil {
			http.Error(w, "verification failed", http.StatusUnauthorized)
			log.Printf("WARN: webhook verification failed: %v", err)
			return
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		log.Printf("INFO: webhook %s/%s for item %s", payload.WebhookType, payload.WebhookCode, payload.ItemID)

		switch payload.WebhookType {
		case "TRANSACTIONS":
			acc, err := db.GetLinkedAccountByItemID(r.Context(), pool, payload.ItemID)
			if err != nil {
				log.Printf("WARN: webhook for unknown item %s", payload.ItemID)
				break
			}
			if err := db.MarkTranRefreshAttempt(r.Context(), pool, acc.ID); err != nil {
				log.Printf("ERROR: marking refresh attempt for account %d: %v", acc.ID, err)
			}
			result, err := engine.SyncAccount(r.Context(), *acc)
			if err != nil {
				log.Printf("WARN: webhook-triggered sync failed for account %d: %v", acc.ID, err)
				break
			}
			if err := db.MarkTranRefreshSuccess(r.Context(), pool, acc.ID); err != nil {
				log.Printf("ERROR: marking refresh success for account %d: %v", acc.ID, err)
			}
			if result.NewData {
				cache.ClearGroup(appdb.CacheTransactions)
				cache.ClearGroup(appdb.CacheAccounts)
			}
		case "ITEM":
			if payload.WebhookCode == "PENDING_EXPIRATION" || payload.WebhookCode == "USER_PERMISSION_REVOKED" {
				acc, err := db.GetLinkedAccountByItemID(r.Context(), pool, payload.ItemID)
				if err != nil {
					log.Printf("WARN: webhook for unknown item %s", payload.ItemID)
					break
				}
				if err := db.SetNeedsAttention(r.Context(), pool, acc.ID, true); err != nil {
					log.Printf("ERROR: failed to flag account %d for attention: %v", acc.ID, err)
				}
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
