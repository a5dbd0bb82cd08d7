package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type payload struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
}

// ServiceTestSuite runs the same caller-visible contract against every backend
// arrangement the service can end up in.
type ServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	redis   *miniredis.Miniredis
	service *Service
	advance func(time.Duration)
}

func (s *ServiceTestSuite) exercise(svc *Service, advance func(time.Duration)) {
	s.service = svc
	s.advance = advance

	in := payload{Query: "milk", Platforms: []string{"blinkit"}}
	raw, err := json.Marshal(in)
	s.Require().NoError(err)

	s.True(s.service.Set(s.ctx, "compare:milk:all", raw, 30*time.Minute))

	got, ok := s.service.Get(s.ctx, "compare:milk:all")
	s.Require().True(ok)
	s.Equal(raw, got, "cache hit must return the bytes that were written")

	var out payload
	s.Require().NoError(json.Unmarshal(got, &out))
	s.Equal(in, out)

	_, ok = s.service.Get(s.ctx, "compare:bread:all")
	s.False(ok)

	s.True(s.service.Delete(s.ctx, "compare:milk:all"))
	_, ok = s.service.Get(s.ctx, "compare:milk:all")
	s.False(ok)

	s.True(s.service.Set(s.ctx, "search:eggs:all", raw, time.Minute))
	s.advance(time.Minute + time.Second)
	_, ok = s.service.Get(s.ctx, "search:eggs:all")
	s.False(ok, "expired entries are absent")
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.redis = miniredis.RunT(s.T())
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) TestRedisBackend() {
	svc := New(s.ctx, Config{RedisURL: "redis://" + s.redis.Addr()}, discardLogger())
	defer svc.Close()

	s.Equal("redis", svc.Mode())
	s.exercise(svc, s.redis.FastForward)
}

func (s *ServiceTestSuite) TestFallbackWhenUnconfigured() {
	svc := New(s.ctx, Config{}, discardLogger())
	s.Equal("memory", svc.Mode())

	clock := &fakeClock{now: time.Now()}
	svc.local.now = clock.Now
	s.exercise(svc, clock.Advance)
}

func (s *ServiceTestSuite) TestFallbackWhenRedisUnreachable() {
	addr := s.redis.Addr()
	s.redis.Close()

	svc := New(s.ctx, Config{RedisURL: "redis://" + addr, ConnectTimeout: time.Second}, discardLogger())
	s.Equal("memory", svc.Mode())

	clock := &fakeClock{now: time.Now()}
	svc.local.now = clock.Now
	s.exercise(svc, clock.Advance)
}

func (s *ServiceTestSuite) TestSQLiteBackend() {
	svc := New(s.ctx, Config{DBPath: filepath.Join(s.T().TempDir(), "cache.db")}, discardLogger())
	defer svc.Close()
	s.Equal("sqlite", svc.Mode())

	clock := &fakeClock{now: time.Now()}
	svc.primary.(*SQLite).now = clock.Now
	s.exercise(svc, clock.Advance)
}

func (s *ServiceTestSuite) TestRedisPreferredOverSQLite() {
	svc := New(s.ctx, Config{
		RedisURL: "redis://" + s.redis.Addr(),
		DBPath:   filepath.Join(s.T().TempDir(), "cache.db"),
	}, discardLogger())
	defer svc.Close()

	s.Equal("redis", svc.Mode())
}

func (s *ServiceTestSuite) TestDegradesWhenRedisDropsMidFlight() {
	svc := New(s.ctx, Config{RedisURL: "redis://" + s.redis.Addr()}, discardLogger())
	defer svc.Close()
	s.Require().Equal("redis", svc.Mode())

	s.True(svc.Set(s.ctx, "k", []byte("v"), time.Minute))
	s.redis.Close()

	_, ok := svc.Get(s.ctx, "k")
	s.False(ok, "backend failure surfaces as a miss")
	s.Equal("memory", svc.Mode())

	s.True(svc.Set(s.ctx, "k", []byte("local"), time.Minute))
	got, ok := svc.Get(s.ctx, "k")
	s.True(ok)
	s.Equal("local", string(got))
}

func (s *ServiceTestSuite) TestCallerCancellationKeepsRedis() {
	svc := New(s.ctx, Config{RedisURL: "redis://" + s.redis.Addr()}, discardLogger())
	defer svc.Close()
	s.Require().Equal("redis", svc.Mode())

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	s.False(svc.Set(ctx, "compare:milk:all", []byte("v"), time.Minute))
	_, ok := svc.Get(ctx, "compare:milk:all")
	s.False(ok)
	s.False(svc.Delete(ctx, "compare:milk:all"))
	s.Equal("redis", svc.Mode(), "a hung-up caller says nothing about the backend")

	expired, cancelExpired := context.WithTimeout(s.ctx, time.Nanosecond)
	defer cancelExpired()
	<-expired.Done()
	svc.Set(expired, "compare:milk:all", []byte("v"), time.Minute)
	s.Equal("redis", svc.Mode())

	s.True(svc.Set(s.ctx, "compare:milk:all", []byte("v"), time.Minute))
	s.True(s.redis.Exists("compare:milk:all"))
}

func (s *ServiceTestSuite) TestRecoversWhenRedisComesBack() {
	svc := New(s.ctx, Config{
		RedisURL:         "redis://" + s.redis.Addr(),
		RecoveryInterval: 20 * time.Millisecond,
	}, discardLogger())
	defer svc.Close()
	s.Require().Equal("redis", svc.Mode())

	s.redis.Close()
	_, ok := svc.Get(s.ctx, "k")
	s.False(ok)
	s.Equal("memory", svc.Mode())

	s.Require().NoError(s.redis.Restart())
	s.Eventually(func() bool { return svc.Mode() == "redis" }, 5*time.Second, 20*time.Millisecond)

	s.True(svc.Set(s.ctx, "k", []byte("shared"), time.Minute))
	got, err := s.redis.Get("k")
	s.Require().NoError(err)
	s.Equal("shared", got)
}

func (s *ServiceTestSuite) TestCloseStopsRecoveryProbe() {
	svc := New(s.ctx, Config{
		RedisURL:         "redis://" + s.redis.Addr(),
		RecoveryInterval: time.Hour,
	}, discardLogger())

	s.redis.Close()
	svc.Get(s.ctx, "k")
	s.Require().Equal("memory", svc.Mode())

	done := make(chan struct{})
	go func() {
		_ = svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("Close blocked on the recovery probe")
	}
}

func TestService_InvalidRedisURLFallsBack(t *testing.T) {
	svc := New(context.Background(), Config{RedisURL: "://not-a-url"}, discardLogger())

	assert.Equal(t, "memory", svc.Mode())
	assert.True(t, svc.Set(context.Background(), "k", []byte("v"), time.Minute))
	got, ok := svc.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.NoError(t, svc.Close())
}
