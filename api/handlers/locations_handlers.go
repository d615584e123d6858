package handlers

import (
	"net/http"
	"strings"

	"truthlink/core/geocode"
	"truthlink/core/metrics"
	"truthlink/core/utils"
)

type LocationsHandler struct {
	geo    *geocode.Client
	logger *utils.Logger
}

func NewLocationsHandler(geo *geocode.Client, logger *utils.Logger) *LocationsHandler {
	return &LocationsHandler{geo: geo, logger: logger}
}

// Suggest powers the location autocomplete on the intake form. The
// client sends a monotonically increasing seq with each keystroke and
// drops any response whose echoed seq is older than the latest sent,
// so slow answers never overwrite fresh ones.
func (h *LocationsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	seq := parseIntDefault(r.URL.Query().Get("seq"), 0)
	if h.geo == nil || len(query) < 3 {
		writeJSON(w, http.StatusOK, map[string]any{
			"seq":         seq,
			"suggestions": []geocode.Suggestion{},
		})
		return
	}
	suggestions, err := h.geo.Suggest(r.Context(), query)
	if err != nil {
		metrics.GeocodeFailures.Inc()
		h.logger.Errorf("suggest %q: %v", query, err)
		// Degrade to an empty list; the form works without it.
		suggestions = nil
	}
	if suggestions == nil {
		suggestions = []geocode.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seq":         seq,
		"suggestions": suggestions,
	})
}
