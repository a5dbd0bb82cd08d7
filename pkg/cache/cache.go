package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"

	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
)

// ErrMiss is returned by backends when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend is a key/value store with per-entry expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pinger is implemented by primaries that can report whether they are reachable
// again after a failure.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config selects the primary backend. RecoveryInterval is how often a primary
// marked down is pinged; zero means 15s.
type Config struct {
	RedisURL         string
	DBPath           string
	MaxLocalEntries  int
	ConnectTimeout   time.Duration
	RecoveryInterval time.Duration
}

// Service is the process-wide cache handle. The primary backend is picked once in
// New. While it is missing, unreachable at startup, or marked down after a runtime
// failure, operations are served by the local map. A primary marked down is probed
// in the background and put back into service once it answers again.
type Service struct {
	primary          Backend
	primaryName      string
	local            *Memory
	down             atomic.Bool
	logger           *slog.Logger
	recoveryInterval time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	stop   chan struct{}
}

// New connects the configured primary backend and falls back to the local map when
// that is not possible. It never fails.
func New(ctx context.Context, cfg Config, l *slog.Logger) *Service {
	s := &Service{
		local:            NewMemory(cfg.MaxLocalEntries),
		logger:           l.With("component", "cache"),
		recoveryInterval: cfg.RecoveryInterval,
		stop:             make(chan struct{}),
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case cfg.RedisURL != "":
		r, err := NewRedis(connectCtx, cfg.RedisURL)
		if err != nil {
			s.logger.Error("redis connection failed, falling back to in-memory cache", "error", err)
			return s
		}
		s.primary, s.primaryName = r, "redis"
		s.logger.Info("redis connected")
	case cfg.DBPath != "":
		db, err := NewSQLite(connectCtx, cfg.DBPath)
		if err != nil {
			s.logger.Error("sqlite cache unavailable, falling back to in-memory cache", "path", cfg.DBPath, "error", err)
			return s
		}
		s.primary, s.primaryName = db, "sqlite"
		s.logger.Info("sqlite cache opened", "path", cfg.DBPath)
	default:
		s.logger.Warn("no cache backend configured, using in-memory cache")
	}

	return s
}

// NewWithBackend wraps an already connected primary backend.
func NewWithBackend(primary Backend, name string, maxLocalEntries int, l *slog.Logger) *Service {
	return &Service{
		primary:     primary,
		primaryName: name,
		local:       NewMemory(maxLocalEntries),
		logger:      l.With("component", "cache"),
		stop:        make(chan struct{}),
	}
}

// Mode names the backend currently serving requests.
func (s *Service) Mode() string {
	if s.usePrimary() {
		return s.primaryName
	}
	return "memory"
}

func (s *Service) usePrimary() bool {
	return s.primary != nil && !s.down.Load()
}

func (s *Service) degrade(err error) {
	if !s.down.CompareAndSwap(false, true) {
		return
	}
	logger.Once(s.logger, "cache-degraded:"+s.primaryName,
		"cache backend failed, serving from in-memory cache",
		"backend", s.primaryName, "error", err)

	p, ok := s.primary.(Pinger)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go s.probe(p)
}

// probe checks the primary until it answers, then clears the down flag. It runs
// outside any request so callers never wait on a reconnect.
func (s *Service) probe(p Pinger) {
	defer s.wg.Done()

	interval := s.recoveryInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			s.logger.Debug("cache backend still down", "backend", s.primaryName, "error", err)
			continue
		}

		s.down.Store(false)
		s.logger.Info("cache backend recovered", "backend", s.primaryName)
		return
	}
}

// Get returns the stored value and true, or nil and false when the key is absent,
// expired, or the backend failed.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	backend := Backend(s.local)
	if s.usePrimary() {
		backend = s.primary
	}

	value, err := backend.Get(ctx, key)
	switch {
	case err == nil:
		return value, true
	case errors.Is(err, ErrMiss):
		return nil, false
	default:
		s.fail(ctx, backend, &models.CacheError{Op: "get", Key: key, Err: err})
		return nil, false
	}
}

// Set stores value for ttl and reports whether the write succeeded.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if s.usePrimary() {
		if err := s.primary.Set(ctx, key, value, ttl); err != nil {
			s.fail(ctx, s.primary, &models.CacheError{Op: "set", Key: key, Err: err})
			return false
		}
		return true
	}

	if err := s.local.Set(ctx, key, value, ttl); err != nil {
		s.fail(ctx, s.local, &models.CacheError{Op: "set", Key: key, Err: err})
		return false
	}
	return true
}

// Delete removes key and reports whether the backend accepted the removal.
func (s *Service) Delete(ctx context.Context, key string) bool {
	backend := Backend(s.local)
	if s.usePrimary() {
		backend = s.primary
	}

	if err := backend.Delete(ctx, key); err != nil {
		s.fail(ctx, backend, &models.CacheError{Op: "delete", Key: key, Err: err})
		return false
	}
	return true
}

// fail logs err and marks the primary down. An error caused by the caller's own
// context ending says nothing about the backend and leaves it in service.
func (s *Service) fail(ctx context.Context, backend Backend, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("cache operation abandoned", "error", err)
		return
	}

	s.logger.Error("cache operation failed", "error", err)
	if backend == s.primary && s.primary != nil {
		s.degrade(err)
	}
}

// Close stops recovery probing and releases the primary backend connection.
func (s *Service) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()

	if s.primary == nil {
		return nil
	}
	if err := s.primary.Close(); err != nil {
		return errors.Wrap(err, "close cache backend")
	}
	s.logger.Info("cache backend closed", "backend", s.primaryName)
	return nil
}
