package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"truthlink/config"
	"truthlink/core/metrics"
	"truthlink/core/publicid"
	"truthlink/core/reports"
	"truthlink/core/store"
	"truthlink/core/utils"
)

type ReportsHandler struct {
	cfg    *config.AppConfig
	svc    *reports.Service
	audits store.AuditStore
	logger *utils.Logger
}

func NewReportsHandler(cfg *config.AppConfig, svc *reports.Service, audits store.AuditStore, logger *utils.Logger) *ReportsHandler {
	return &ReportsHandler{cfg: cfg, svc: svc, audits: audits, logger: logger}
}

// Submit is the anonymous intake endpoint. The response carries the
// tracking id; it is shown exactly once and never recoverable.
func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPayload())
	var sub reports.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "reports.bad_payload", "invalid request body")
		return
	}
	report, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		var verr *reports.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, "reports.invalid_"+verr.Field, verr.Error())
		case errors.Is(err, publicid.ErrExhausted):
			h.logger.Errorf("submit: %v", err)
			writeError(w, http.StatusServiceUnavailable, "reports.id_allocation", "could not allocate a tracking id, try again")
		default:
			h.logger.Errorf("submit: %v", err)
			writeError(w, http.StatusInternalServerError, "reports.submit_failed", "server error")
		}
		return
	}
	metrics.ReportsSubmitted.WithLabelValues(report.Type).Inc()
	h.audits.Log(r.Context(), "anonymous", "reports.submitted", report.Type)
	events, err := h.svc.ListEvents(r.Context(), report.ID)
	if err != nil {
		h.logger.Errorf("submit events: %v", err)
		events = nil
	}
	writeJSON(w, http.StatusCreated, reports.Project(report, events, reports.RoleAnonymous))
}

// Track serves the anonymous status page. Malformed and unknown ids
// get the same 404 so the endpoint confirms nothing about issued ids.
func (h *ReportsHandler) Track(w http.ResponseWriter, r *http.Request) {
	report, events, err := h.svc.Track(r.Context(), urlParam(r, "publicId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reports.not_found", "no report matches this tracking id")
			return
		}
		h.logger.Errorf("track: %v", err)
		writeError(w, http.StatusInternalServerError, "reports.track_failed", "server error")
		return
	}
	writeJSON(w, http.StatusOK, reports.Project(report, events, reports.RoleAnonymous))
}

func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ReportFilter{
		Status: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
		Type:   strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))),
	}
	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		var verr *reports.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "reports.invalid_"+verr.Field, verr.Error())
			return
		}
		h.logger.Errorf("list: %v", err)
		writeError(w, http.StatusInternalServerError, "reports.list_failed", "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": reports.ProjectList(items, reports.RoleInvestigator),
		"total": len(items),
	})
}

func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "reports.bad_id", "invalid report id")
		return
	}
	report, events, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reports.not_found", "report not found")
			return
		}
		h.logger.Errorf("get: %v", err)
		writeError(w, http.StatusInternalServerError, "reports.get_failed", "server error")
		return
	}
	writeJSON(w, http.StatusOK, reports.Project(report, events, reports.RoleInvestigator))
}

type updateReportRequest struct {
	Version    int    `json:"version"`
	Status     string `json:"status"`
	Note       string `json:"note"`
	Priority   string `json:"priority"`
	Department string `json:"department"`
}

// Update applies one investigator change under optimistic concurrency.
// A status field drives a lifecycle transition; otherwise the triage
// fields are updated. The request must echo the version it read.
func (h *ReportsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "reports.bad_id", "invalid report id")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPayload())
	var req updateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "reports.bad_payload", "invalid request body")
		return
	}
	if req.Version <= 0 {
		writeError(w, http.StatusBadRequest, "reports.bad_version", "version is required")
		return
	}
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}

	var updated *store.Report
	var err error
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	req.Priority = strings.ToUpper(strings.TrimSpace(req.Priority))
	req.Department = strings.TrimSpace(req.Department)
	// Each request is one mutation: a transition or a triage edit,
	// never both under a single version check.
	if req.Status != "" && (req.Priority != "" || req.Department != "") {
		writeError(w, http.StatusBadRequest, "reports.ambiguous_update", "send a status change and triage fields as separate requests")
		return
	}
	if req.Status != "" {
		updated, err = h.svc.Transition(r.Context(), id, req.Version, req.Status, strings.TrimSpace(req.Note), sess.Username)
	} else {
		updated, err = h.svc.SetAnalysis(r.Context(), id, req.Version, req.Priority, req.Department, sess.Username)
	}
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}
	if req.Status != "" {
		metrics.ReportTransitions.WithLabelValues(updated.Status).Inc()
		h.audits.Log(r.Context(), sess.Username, "reports.transition", updated.PublicID+" -> "+updated.Status)
	} else {
		h.audits.Log(r.Context(), sess.Username, "reports.analysis", updated.PublicID)
	}
	events, err := h.svc.ListEvents(r.Context(), updated.ID)
	if err != nil {
		h.logger.Errorf("update events: %v", err)
		events = nil
	}
	writeJSON(w, http.StatusOK, reports.Project(updated, events, reports.RoleInvestigator))
}

func (h *ReportsHandler) writeUpdateError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *reports.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "reports.invalid_"+verr.Field, verr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "reports.not_found", "report not found")
	case errors.Is(err, store.ErrConflict):
		metrics.VersionConflicts.Inc()
		writeError(w, http.StatusConflict, "reports.version_conflict", "report changed since it was read, reload and retry")
	case errors.Is(err, reports.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "reports.invalid_transition", err.Error())
	case errors.Is(err, reports.ErrReportClosed):
		writeError(w, http.StatusConflict, "reports.closed", "report is closed")
	default:
		h.logger.Errorf("update %s: %v", r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "reports.update_failed", "server error")
	}
}

func (h *ReportsHandler) maxPayload() int64 {
	if h.cfg != nil && h.cfg.Security.MaxPayloadBytes > 0 {
		return h.cfg.Security.MaxPayloadBytes
	}
	return 64 * 1024
}
