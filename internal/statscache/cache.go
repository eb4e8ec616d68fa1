// Package statscache caches per-user task statistics with cache-aside reads.
//
// Entries are keyed by a per-user generation that is bumped on every task
// mutation, so a stale entry is never read back after a write.
package statscache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"todoapp/internal/models"
)

// Cache stores statistics snapshots and the per-user generation counter.
type Cache interface {
	Generation(ctx context.Context, userID int64) (int64, error)
	Bump(ctx context.Context, userID int64) error
	Get(ctx context.Context, key string) (models.Statistics, bool, error)
	Set(ctx context.Context, key string, stats models.Statistics) error
}

// Key returns the cache key for a user's statistics at generation gen on the
// UTC day containing now.
func Key(userID, gen int64, now time.Time) string {
	return fmt.Sprintf("stats:%d:%d:%s", userID, gen, now.UTC().Format("2006-01-02"))
}

// parseKey splits a key built by Key back into its user and generation.
func parseKey(key string) (userID, gen int64, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "stats" {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	gen, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return userID, gen, true
}

type memoryEntry struct {
	key   string
	stats models.Statistics
}

// Memory is an in-process Cache. It holds at most one entry per user: the
// one for the latest key written, so entries for past days and
// generations do not accumulate.
type Memory struct {
	mu      sync.Mutex
	gens    map[int64]int64
	entries map[int64]memoryEntry
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		gens:    make(map[int64]int64),
		entries: make(map[int64]memoryEntry),
	}
}

func (m *Memory) Generation(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[userID], nil
}

// Bump advances the user's generation and drops their cached entry.
func (m *Memory) Bump(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[userID]++
	delete(m.entries, userID)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (models.Statistics, bool, error) {
	userID, _, ok := parseKey(key)
	if !ok {
		return models.Statistics{}, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.entries[userID]
	if !found || e.key != key {
		return models.Statistics{}, false, nil
	}
	return e.stats, true, nil
}

// Set replaces the user's entry. A write for a generation that has since
// been bumped is dropped.
func (m *Memory) Set(_ context.Context, key string, stats models.Statistics) error {
	userID, gen, ok := parseKey(key)
	if !ok {
		return fmt.Errorf("malformed statistics key %q", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen < m.gens[userID] {
		return nil
	}
	m.entries[userID] = memoryEntry{key: key, stats: stats}
	return nil
}

// ComputeFunc produces fresh statistics from the source of truth.
type ComputeFunc func(ctx context.Context, userID int64, now time.Time) (models.Statistics, error)

// Loader reads statistics through a Cache, computing them on a miss.
// Concurrent misses for the same key share one computation.
type Loader struct {
	cache   Cache
	compute ComputeFunc
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(cache Cache, compute ComputeFunc, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cache:   cache,
		compute: compute,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the user's statistics. Cache failures are logged and fall
// through to compute; only compute errors are returned.
func (l *Loader) Get(ctx context.Context, userID int64) (models.Statistics, error) {
	now := l.now()

	gen, err := l.cache.Generation(ctx, userID)
	if err != nil {
		l.logger.Warn("statistics cache generation failed", "user_id", userID, "error", err)
		return l.compute(ctx, userID, now)
	}

	key := Key(userID, gen, now)
	stats, found, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("statistics cache read failed", "key", key, "error", err)
	}
	if found {
		return stats, nil
	}

	// The computation is shared by every caller waiting on key. It runs
	// detached from ctx so one caller leaving does not fail the rest.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		stats, err := l.compute(shared, userID, now)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(shared, key, stats); err != nil {
			l.logger.Warn("statistics cache write failed", "key", key, "error", err)
		}
		return stats, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.Statistics{}, res.Err
		}
		return res.Val.(models.Statistics), nil
	case <-ctx.Done():
		return models.Statistics{}, ctx.Err()
	}
}

// Invalidate bumps the user's generation after a mutation.
func (l *Loader) Invalidate(ctx context.Context, userID int64) {
	if err := l.cache.Bump(ctx, userID); err != nil {
		l.logger.Warn("statistics cache invalidation failed", "user_id", userID, "error", err)
	}
}
