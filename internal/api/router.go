package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/picker/internal/api/handlers"
	"github.com/wonny/picker/internal/ws"
	"github.com/wonny/picker/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	picksHandler *handlers.PicksHandler,
	scanHandler *handlers.ScanHandler,
	chartHandler *handlers.ChartHandler,
	strategyHandler *handlers.StrategyHandler,
	hub *ws.Hub,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Scan results
	api.HandleFunc("/picks", picksHandler.GetLatest).Methods("GET")
	api.HandleFunc("/runs", picksHandler.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", picksHandler.GetRun).Methods("GET")

	// Strategy table
	api.HandleFunc("/strategies", strategyHandler.List).Methods("GET")

	// Instrument charts
	api.HandleFunc("/instruments/{id}/chart", chartHandler.GetChart).Methods("GET")

	// Scan trigger
	api.HandleFunc("/scan", scanHandler.Trigger).Methods("POST")

	// Scan progress stream
	r.HandleFunc("/ws/scan", hub.HandleWS)

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "picker-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
