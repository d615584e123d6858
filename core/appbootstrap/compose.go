package appbootstrap

import (
	"context"
	"database/sql"

	"truthlink/api"
	"truthlink/config"
	"truthlink/core/auth"
	"truthlink/core/geocode"
	"truthlink/core/maintenance"
	"truthlink/core/publicid"
	"truthlink/core/reports"
	"truthlink/core/storage"
	"truthlink/core/store"
	"truthlink/core/utils"
)

// Runtime wires every store, service and worker behind the HTTP
// server. main builds one and owns its lifecycle.
type Runtime struct {
	Server  *api.Server
	Workers []api.BackgroundWorker
}

func Compose(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*Runtime, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	reportsStore := store.NewReportsStore(db)

	if err := auth.EnsureDefaultAdmin(ctx, users, cfg, logger); err != nil {
		return nil, err
	}

	var geocoder *geocode.Client
	var resolver reports.Geocoder
	if cfg.Geocoding.APIKey != "" {
		geocoder = geocode.NewClient(cfg.Geocoding)
		resolver = geocoder
	} else {
		logger.Printf("geocoding disabled, reports are stored without coordinates")
	}
	blobs, err := storage.NewFromConfig(cfg.Evidence)
	if err != nil {
		return nil, err
	}
	reportsSvc := reports.NewService(reportsStore, publicid.NewGenerator(), resolver, logger)
	janitor := maintenance.NewJanitor(cfg.Scheduler, sessions, logger)

	server, err := api.NewServer(cfg, api.ServerDeps{
		Users:      users,
		Sessions:   sessions,
		Audits:     audits,
		ReportsSvc: reportsSvc,
		Geocoder:   geocoder,
		Blobs:      blobs,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Server:  server,
		Workers: []api.BackgroundWorker{janitor},
	}, nil
}
