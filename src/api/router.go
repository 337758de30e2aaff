package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	"finance-monitor-server/src/config"
	appdb "finance-monitor-server/src/db"
	"finance-monitor-server/src/handlers"
	"finance-monitor-server/src/middleware"
	"finance-monitor-server/src/prices"
	syncengine "finance-monitor-server/src/sync"
	"finance-monitor-server/src/util"
)

// Deps is everything the routes need, wired once in main.
type Deps struct {
	Cfg         config.Config
	Pool        *pgxpool.Pool
	Cache       *appdb.Cache
	PlaidClient *plaid.APIClient
	Engine      *syncengine.Engine
	Metrics     *syncengine.Metrics
	Prices      *prices.Service
	Verifier    *util.WebhookVerifier
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(d.Cfg.AllowedOrigins))
	r.Use(middleware.ReadOnlyMiddleware(d.Cfg.ReadOnly))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/plaid/webhook", handlers.PlaidWebhook(d.Verifier, d.Pool, d.Cache, d.Engine))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware(d.Cfg.JWTSecret)).Group(func(r chi.Router) {
			// Linked accounts
			r.Post("/plaid/create-link-token", handlers.CreateLinkToken(d.PlaidClient))
			r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(d.PlaidClient, d.Pool, d.Cache, d.Engine))
			r.Get("/accounts", handlers.GetLinkedAccounts(d.Pool))
			r.Delete("/accounts/{account_id}", handlers.DeleteLinkedAccount(d.Pool, d.Cache))
			r.Post("/accounts/{account_id}/sync", handlers.SyncAccount(d.Pool, d.Cache, d.Engine))
			r.Post("/accounts/{account_id}/recurring/sync", handlers.SyncRecurring(d.Pool, d.Cache, d.Engine))

			// Sub-accounts
			r.Get("/sub-accounts", handlers.GetSubAccounts(d.Pool, d.Cache))
			r.Post("/sub-accounts", handlers.CreateManualSubAccount(d.Pool, d.Cache))
			r.Put("/sub-accounts/{sub_account_id}/balance", handlers.UpdateManualSubAccountBalance(d.Pool, d.Cache))
			r.Put("/sub-accounts/{sub_account_id}/ignored", handlers.SetSubAccountIgnored(d.Pool, d.Cache))
			r.Delete("/sub-accounts/{sub_account_id}", handlers.DeleteSubAccount(d.Pool, d.Cache))

			// Transactions
			r.Get("/transactions", handlers.GetTransactions(d.Pool, d.Cache))
			r.Post("/transactions", handlers.CreateTransaction(d.Pool, d.Cache))
			r.Put("/transactions/{transaction_id}", handlers.UpdateTransaction(d.Pool, d.Cache))
			r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(d.Pool, d.Cache))
			r.Post("/transactions/import", handlers.ImportTransactions(d.Pool, d.Cache))
			r.Get("/transactions/export", handlers.ExportTransactions(d.Pool))
			r.Get("/recurring", handlers.GetRecurringTransactions(d.Pool, d.Cache))

			// Categories and rules
			r.Get("/categories", handlers.GetCategories(d.Pool))
			r.Post("/category-rules", handlers.CreateCategoryRule(d.Pool, d.Cache))
			r.Get("/category-rules", handlers.GetCategoryRules(d.Pool))
			r.Delete("/category-rules/{rule_id}", handlers.DeleteCategoryRule(d.Pool))
			r.Post("/category-rules/trigger", handlers.TriggerCategoryRules(d.Pool, d.Cache))
			r.Post("/custom-categories", handlers.CreateCustomCategory(d.Pool))
			r.Get("/custom-categories", handlers.GetCustomCategories(d.Pool))
			r.Delete("/custom-categories/{category_id}", handlers.DeleteCustomCategory(d.Pool, d.Cache))

			// Rollups
			r.Get("/aggregate/net-worth", handlers.GetNetWorth(d.Pool, d.Prices))
			r.Get("/aggregate/spending", handlers.GetSpendingTotal(d.Pool))
			r.Get("/aggregate/breakdown", handlers.GetCategoryBreakdown(d.Pool))
			r.Get("/aggregate/comparison", handlers.GetWindowComparison(d.Pool))

			// System
			r.Get("/prices/{symbol}", handlers.GetSpotPrice(d.Prices))
			r.Get("/metrics", handlers.GetMetrics(d.Metrics))
		})
	})

	return r
}
