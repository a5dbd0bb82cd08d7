package warmer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 30m"

type Refresher interface {
	RefreshComparison(ctx context.Context, product string, platforms []string) error
}

type Config struct {
	Schedule  string
	Queries   []string
	Platforms []string
	// Timeout bounds a whole run, not a single query.
	Timeout time.Duration
}

// Warmer recomputes configured comparisons on a cron schedule so popular queries
// are served from cache.
type Warmer struct {
	cfg       Config
	refresher Refresher
	cron      *cron.Cron
	logger    *slog.Logger

	mu      sync.Mutex
	lastRun time.Time
}

func New(cfg Config, refresher Refresher, logger *slog.Logger) *Warmer {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Warmer{
		cfg:       cfg,
		refresher: refresher,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger.With("component", "warmer"),
	}
}

func (w *Warmer) Start() error {
	if _, err := w.cron.AddFunc(w.cfg.Schedule, w.run); err != nil {
		return errors.Wrapf(err, "schedule %q", w.cfg.Schedule)
	}
	w.cron.Start()
	w.logger.Info("cache warmer started", "schedule", w.cfg.Schedule, "queries", len(w.cfg.Queries))
	return nil
}

// Stop waits for a run in progress to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("cache warmer stopped")
}

func (w *Warmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()
	w.RunOnce(ctx)
}

// RunOnce refreshes every configured query in order and returns how many succeeded.
// Failures are logged and do not stop the run.
func (w *Warmer) RunOnce(ctx context.Context) int {
	start := time.Now()
	ok := 0
	for _, q := range w.cfg.Queries {
		if ctx.Err() != nil {
			w.logger.Warn("warm run cut short", "error", ctx.Err())
			break
		}
		if err := w.refresher.RefreshComparison(ctx, q, w.cfg.Platforms); err != nil {
			w.logger.Warn("warm query failed", "query", q, "error", err)
			continue
		}
		ok++
	}

	w.mu.Lock()
	w.lastRun = start
	w.mu.Unlock()

	w.logger.Info("warm run finished", "refreshed", ok, "total", len(w.cfg.Queries), "duration", time.Since(start))
	return ok
}

func (w *Warmer) LastRun() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}
