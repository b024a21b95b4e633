// Package api exposes recommendation runs and backtests over HTTP.
package api

import (
	"github.com/gorilla/mux"

	"github.com/HiNala/stock-agents/internal/observability"
)

// SetupRoutes configures all API routes.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.HandleFunc("/status", handler.Status).Methods("GET")
	r.Handle("/metrics", observability.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/recommendations/latest", handler.GetLatestRecommendations).Methods("GET")
	api.HandleFunc("/recommendations", handler.CreateRecommendations).Methods("POST")
	api.HandleFunc("/backtests", handler.CreateBacktest).Methods("POST")
	api.HandleFunc("/backtests/{symbol}", handler.GetBacktests).Methods("GET")
	api.HandleFunc("/fundamentals/{symbol}", handler.GetFundamentals).Methods("GET")
	if handler.hub != nil {
		api.HandleFunc("/ws", handler.hub.ServeWS).Methods("GET")
	}

	return r
}
