package routegroups

import (
	"truthlink/api/handlers"

	"github.com/go-chi/chi/v5"
)

// RegisterReports mounts the investigator console routes. The numeric
// id pattern keeps these off the anonymous tracking route that shares
// the /reports prefix.
func RegisterReports(apiRouter chi.Router, g Guards, reports *handlers.ReportsHandler, attachments *handlers.AttachmentsHandler) {
	apiRouter.MethodFunc("GET", "/reports", g.SessionPerm("reports.view", reports.List))
	apiRouter.MethodFunc("GET", "/reports/{id:[0-9]+}", g.SessionPerm("reports.view", reports.Get))
	apiRouter.MethodFunc("PATCH", "/reports/{id:[0-9]+}", g.SessionPerm("reports.update", reports.Update))
	apiRouter.MethodFunc("GET", "/attachments/*", g.SessionPerm("evidence.view", attachments.Download))
}

func RegisterAdmin(apiRouter chi.Router, g Guards, admin *handlers.AdminHandler) {
	apiRouter.MethodFunc("GET", "/audit", g.SessionPerm("audit.view", admin.ListAudit))
	apiRouter.MethodFunc("GET", "/accounts", g.SessionPerm("accounts.view", admin.ListAccounts))
}
