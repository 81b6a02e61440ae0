// Package router configures HTTP routes for the harvester's HTTP API.
//
// The harvester exposes an HTTP server on port 8080 (configurable) that provides
// run snapshot retrieval, health checks, and Prometheus metrics. This package
// sets up the routes for that HTTP server.
//
// Routes configured:
//   - GET /run/current?run=<name> - Retrieve latest run snapshot
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// The /run/current endpoint returns run snapshots in JSON format, including
// collection statistics, quality history, and the collected records. Snapshots
// older than the stale threshold include an X-Harvest-Stale header.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidemark/harvest/pkg/httpx"
	"github.com/tidemark/harvest/pkg/storage"
)

// SetupRoutes configures HTTP endpoints for the harvester.
func SetupRoutes(store storage.Store, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.Handle("/healthz", httpx.HealthHandler())

	// Run snapshot endpoint
	mux.HandleFunc("/run/current", handleGetSnapshot(store, staleAfter, logger))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetSnapshot returns a handler for GET /run/current?run=<name>.
func handleGetSnapshot(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := r.URL.Query().Get("run")
		if run == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "run parameter required")
			return
		}

		snapshot, found, err := store.GetLatest(run)
		if err != nil {
			logger.Error("failed to get snapshot", "run", run, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("snapshot not found for run %q", run))
			return
		}

		if time.Since(snapshot.GeneratedAt) > staleAfter {
			w.Header().Set("X-Harvest-Stale", "true")
		}

		// Convert to API response format
		resp := map[string]any{
			"run":             snapshot.Run,
			"generatedAt":     snapshot.GeneratedAt.Format(time.RFC3339),
			"totalRequests":   snapshot.TotalRequests,
			"successRate":     snapshot.SuccessRate,
			"meanQuality":     snapshot.MeanQuality,
			"delayMultiplier": snapshot.DelayMultiplier,
			"qualityHistory":  snapshot.QualityHistory,
			"aborted":         snapshot.Aborted,
			"records":         snapshot.Records,
		}

		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
