package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute

	activityKey = "interviewcoach:sessions:activity"
)

// ActivityTracker records the last activity time of every active session
type ActivityTracker interface {
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Remove(ctx context.Context, sessionID string) error
	// IdleSince returns the sessions whose last activity is at or before cutoff
	IdleSince(ctx context.Context, cutoff time.Time) ([]string, error)
}

// MemoryActivityTracker keeps activity in process. It is enough for a single instance.
type MemoryActivityTracker struct {
	mu           sync.RWMutex
	lastActivity map[string]time.Time
}

func NewMemoryActivityTracker() *MemoryActivityTracker {
	return &MemoryActivityTracker{lastActivity: make(map[string]time.Time)}
}

func (t *MemoryActivityTracker) Touch(_ context.Context, sessionID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity[sessionID] = at
	return nil
}

func (t *MemoryActivityTracker) Remove(_ context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastActivity, sessionID)
	return nil
}

func (t *MemoryActivityTracker) IdleSince(_ context.Context, cutoff time.Time) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var idle []string
	for id, at := range t.lastActivity {
		if !at.After(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle, nil
}

// Len returns the number of tracked sessions
func (t *MemoryActivityTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.lastActivity)
}

// RedisActivityTracker stores activity in a sorted set scored by unix milliseconds,
// so every instance behind a load balancer sees the same sessions.
type RedisActivityTracker struct {
	client *redis.Client
	key    string
}

func NewRedisActivityTracker(client *redis.Client) *RedisActivityTracker {
	return &RedisActivityTracker{client: client, key: activityKey}
}

func (t *RedisActivityTracker) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return t.client.ZAdd(ctx, t.key, redis.Z{Score: float64(at.UnixMilli()), Member: sessionID}).Err()
}

func (t *RedisActivityTracker) Remove(ctx context.Context, sessionID string) error {
	return t.client.ZRem(ctx, t.key, sessionID).Err()
}

func (t *RedisActivityTracker) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	return t.client.ZRangeByScore(ctx, t.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
}

// SessionAbandoner ends a session that went idle
type SessionAbandoner interface {
	// Abandon ends sessionID unless it saw activity after idleSince
	Abandon(ctx context.Context, sessionID string, idleSince time.Time) error
}

// IdleSweeper periodically abandons sessions without activity for longer than the idle timeout
type IdleSweeper struct {
	tracker     ActivityTracker
	abandoner   SessionAbandoner
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	idleTimeout time.Duration
	interval    time.Duration
}

func NewIdleSweeper(tracker ActivityTracker, abandoner SessionAbandoner, clock clockwork.Clock, m *metrics.Metrics, idleTimeout, interval time.Duration) *IdleSweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &IdleSweeper{
		tracker:     tracker,
		abandoner:   abandoner,
		clock:       clock,
		metrics:     m,
		idleTimeout: idleTimeout,
		interval:    interval,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (s *IdleSweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Idle session sweeper started", "idle_timeout", s.idleTimeout, "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Idle session sweeper stopped")
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep abandons every idle session once and returns how many were abandoned
func (s *IdleSweeper) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	if tracked, err := s.tracker.IdleSince(ctx, now); err == nil {
		s.metrics.Tracked(len(tracked))
	}

	cutoff := now.Add(-s.idleTimeout)
	idle, err := s.tracker.IdleSince(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to list idle sessions", "error", err)
		return 0
	}

	abandoned := 0
	for _, sessionID := range idle {
		if err := s.abandoner.Abandon(ctx, sessionID, cutoff); err != nil {
			if errors.Is(err, ErrRecentActivity) {
				slog.Debug("Idle session became active again", "session_id", sessionID)
				continue
			}
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
				// Already finished or deleted elsewhere
				_ = s.tracker.Remove(ctx, sessionID)
				continue
			}
			slog.Error("Failed to abandon idle session", "session_id", sessionID, "error", err)
			continue
		}
		abandoned++
		slog.Info("Session abandoned after inactivity", "session_id", sessionID, "idle_timeout", s.idleTimeout)
	}
	return abandoned
}
