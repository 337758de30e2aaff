package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"finance-monitor-server/src/prices"
	syncengine "finance-monitor-server/src/sync"
	"finance-monitor-server/src/util"
)

// GetMetrics exposes the engine's counters.
func GetMetrics(metrics *syncengine.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(metrics.Snapshot())
	}
}

// GetSpotPrice returns the cached USD spot price for an asset symbol.
func GetSpotPrice(priceSvc *prices.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
		if !util.ValidateSymbol(symbol) {
			http.Error(w, "invalid symbol", http.StatusBadRequest)
			return
		}

		price, err := priceSvc.Spot(r.Context(), symbol)
		if err != nil {
			http.Error(w, "price unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol": symbol,
			"price":  price,
		})
	}
}
