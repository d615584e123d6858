package handlers

import (
	"net/http"

	"truthlink/core/store"
	"truthlink/core/utils"
)

// AdminHandler serves the small admin-only surface: the audit trail
// and the investigator account list.
type AdminHandler struct {
	users  store.UsersStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewAdminHandler(users store.UsersStore, audits store.AuditStore, logger *utils.Logger) *AdminHandler {
	return &AdminHandler{users: users, audits: audits, logger: logger}
}

func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	entries, err := h.audits.List(r.Context(), limit)
	if err != nil {
		h.logger.Errorf("audit list: %v", err)
		writeError(w, http.StatusInternalServerError, "audit.list_failed", "server error")
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Errorf("accounts list: %v", err)
		writeError(w, http.StatusInternalServerError, "accounts.list_failed", "server error")
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}
