package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
)

type MetricsHandler struct {
	agg *aggregator.Aggregator
}

func NewMetricsHandler(agg *aggregator.Aggregator) *MetricsHandler {
	return &MetricsHandler{agg: agg}
}

// Snapshot serves the current dashboard metrics. Always 200: a cold start
// with no feeds yet returns the zero snapshot rather than an error.
func (h *MetricsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := h.agg.Snapshot()
	if snap.RecentAppointments == nil {
		snap.RecentAppointments = []aggregator.RecentAppointment{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}
