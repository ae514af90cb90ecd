package handlers

import (
	"net/http"

	"github.com/etonealbert/improvlingo/internal/services"
)

// HandleMetrics returns a point-in-time metrics snapshot.
func HandleMetrics(metrics *services.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

// HandleHealth returns server health status.
func HandleHealth(metrics *services.Metrics, registry *services.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":             "ok",
			"active_connections": snapshot.ActiveConnections,
			"active_sessions":    registry.Count(),
			"uptime_seconds":     snapshot.UptimeSeconds,
		})
	}
}
