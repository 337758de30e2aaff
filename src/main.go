package main

import (
	"context"
	"log"
	"net/http"

	"finance-monitor-server/src/api"
	"finance-monitor-server/src/categories"
	"finance-monitor-server/src/config"
	appdb "finance-monitor-server/src/db"
	db "finance-monitor-server/src/db/sql"
	plaidclient "finance-monitor-server/src/plaid"
	"finance-monitor-server/src/prices"
	"finance-monitor-server/src/scheduler"
	syncengine "finance-monitor-server/src/sync"
	"finance-monitor-server/src/util"
)

func main() {
	cfg := config.Load()

	// A hole in the taxonomy tables is a programming error; refuse to start.
	if err := categories.Validate(); err != nil {
		log.Fatalf("category taxonomy: %v", err)
	}

	if err := appdb.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	pool, err := appdb.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer pool.Close()

	cache, err := appdb.NewCache()
	if err != nil {
		log.Fatalf("cache init failed: %v", err)
	}

	apiClient := plaidclient.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	store := db.NewStore(pool)
	metrics := &syncengine.Metrics{}
	engine := syncengine.NewEngine(plaidclient.NewClient(apiClient), store, metrics)
	priceSvc := prices.NewService(prices.NewCoinbaseFetcher(), cfg.PriceTTL)

	// Background refresh loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched := scheduler.New(store, engine, cfg.CheckInterval, cfg.TranRefreshInterval, cfg.RecurringRefreshInterval)
	sched.OnNewData = func() {
		cache.ClearGroup(appdb.CacheTransactions)
		cache.ClearGroup(appdb.CacheAccounts)
		cache.ClearGroup(appdb.CacheRecurring)
	}
	go sched.Run(ctx)

	router := api.NewRouter(api.Deps{
		Cfg:         cfg,
		Pool:        pool,
		Cache:       cache,
		PlaidClient: apiClient,
		Engine:      engine,
		Metrics:     metrics,
		Prices:      priceSvc,
		Verifier:    util.NewWebhookVerifier(apiClient),
	})

	log.Println("API server running on port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
