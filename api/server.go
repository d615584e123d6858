package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"truthlink/api/handlers"
	"truthlink/api/routegroups"
	"truthlink/config"
	"truthlink/core/auth"
	"truthlink/core/geocode"
	"truthlink/core/rbac"
	"truthlink/core/reports"
	"truthlink/core/storage"
	"truthlink/core/store"
	"truthlink/core/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BackgroundWorker is anything composed alongside the server that runs
// its own goroutines and must stop on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users      store.UsersStore
	Sessions   store.SessionStore
	Audits     store.AuditStore
	ReportsSvc *reports.Service
	Geocoder   *geocode.Client
	Blobs      storage.BlobStore
}

type Server struct {
	cfg    *config.AppConfig
	logger *utils.Logger

	users      store.UsersStore
	sessions   store.SessionStore
	audits     store.AuditStore
	reportsSvc *reports.Service
	geocoder   *geocode.Client
	blobs      storage.BlobStore

	policy          *rbac.Policy
	sessionManager  *auth.SessionManager
	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
	submitLimiter   *requestLimiter

	router chi.Router
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) (*Server, error) {
	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}
	loginBurst := cfg.Security.LoginBurst
	if loginBurst <= 0 {
		loginBurst = 5
	}
	submitBurst := cfg.Security.SubmitBurst
	if submitBurst <= 0 {
		submitBurst = 10
	}
	s := &Server{
		cfg:             cfg,
		logger:          logger,
		users:           deps.Users,
		sessions:        deps.Sessions,
		audits:          deps.Audits,
		reportsSvc:      deps.ReportsSvc,
		geocoder:        deps.Geocoder,
		blobs:           deps.Blobs,
		policy:          policy,
		sessionManager:  auth.NewSessionManager(deps.Sessions, cfg, logger),
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(loginBurst, limiterWindow),
		submitLimiter:   newLimiter(submitBurst, limiterWindow),
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)

	reportsH := handlers.NewReportsHandler(s.cfg, s.reportsSvc, s.audits, s.logger)
	authH := handlers.NewAuthHandler(s.cfg, s.users, s.sessions, s.sessionManager, s.audits, s.logger)
	attachmentsH := handlers.NewAttachmentsHandler(s.cfg, s.blobs, s.audits, s.logger)
	locationsH := handlers.NewLocationsHandler(s.geocoder, s.logger)
	adminH := handlers.NewAdminHandler(s.users, s.audits, s.logger)

	r.MethodFunc("GET", "/health", s.handleHealth)
	r.Method("GET", "/metrics", s.metricsEndpoint())

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)

		// Anonymous surface. Intake and upload are rate limited per
		// client address; the tracker is an exact-id lookup only. The
		// numeric-id investigator route below wins for numeric paths,
		// tracking ids always carry the RPT- prefix.
		apiRouter.MethodFunc("POST", "/reports", s.rateLimit(s.submitLimiter, reportsH.Submit))
		apiRouter.MethodFunc("GET", "/reports/{publicId}", reportsH.Track)
		apiRouter.MethodFunc("POST", "/attachments", s.rateLimit(s.submitLimiter, attachmentsH.Upload))
		apiRouter.MethodFunc("GET", "/locations/suggest", locationsH.Suggest)

		apiRouter.MethodFunc("POST", "/auth/login", s.rateLimit(s.loginLimiter, authH.Login))
		apiRouter.MethodFunc("POST", "/auth/logout", s.withSession(authH.Logout))
		apiRouter.MethodFunc("GET", "/auth/me", s.withSession(authH.Me))

		g := routegroups.Guards{
			Session:    s.withSession,
			Permission: s.requirePermission,
		}
		routegroups.RegisterReports(apiRouter, g, reportsH, attachmentsH)
		routegroups.RegisterAdmin(apiRouter, g, adminH)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metricsEndpoint() http.Handler {
	inner := promhttp.Handler()
	username := s.cfg.Metrics.Username
	password := s.cfg.Metrics.Password
	if username == "" {
		return inner
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		inner.ServeHTTP(w, r)
	})
}
