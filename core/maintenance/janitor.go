package maintenance

import (
	"context"
	"sync"
	"time"

	"truthlink/config"
	"truthlink/core/metrics"
	"truthlink/core/store"
	"truthlink/core/utils"

	"github.com/robfig/cron/v3"
)

// Janitor removes expired sessions on a cron schedule so the sessions
// table never accumulates stale rows.
type Janitor struct {
	cfg      config.SchedulerConfig
	sessions store.SessionStore
	logger   *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewJanitor(cfg config.SchedulerConfig, sessions store.SessionStore, logger *utils.Logger) *Janitor {
	return &Janitor{cfg: cfg, sessions: sessions, logger: logger}
}

func (j *Janitor) StartWithContext(ctx context.Context) {
	if j == nil || j.sessions == nil || !j.cfg.Enabled {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	spec := j.cfg.SessionPurgeSpec
	if spec == "" {
		spec = "@every 10m"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { _ = j.RunOnce(ctx) }); err != nil {
		j.logger.Errorf("invalid session purge spec %q: %v", spec, err)
		return
	}
	c.Start()
	j.cron = c
	j.running = true
	j.logger.Printf("session janitor scheduled (%s)", spec)
}

func (j *Janitor) StopWithContext(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	wasRunning := j.running
	j.running = false
	j.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce purges everything expired as of now.
func (j *Janitor) RunOnce(ctx context.Context) error {
	n, err := j.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Errorf("session purge: %v", err)
		return err
	}
	if n > 0 {
		metrics.SessionsPurged.Add(float64(n))
		j.logger.Printf("purged %d expired sessions", n)
	}
	return nil
}
