// Package cache holds the consolidated source snapshot between refreshes,
// coalescing concurrent refreshes into a single upstream fetch cycle.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
	"github.com/kjstillabower/flood-risk-service/internal/source"
)

// Result sources.
const (
	SourceHit       = "hit"
	SourceRefresh   = "refresh"
	SourceCoalesced = "coalesced"
	SourceStale     = "stale"
	SourceStore     = "store"
)

// Defaults.
const (
	DefaultTTL             = 300 * time.Second
	DefaultRetryBackoff    = 30 * time.Second
	DefaultCoalesceTimeout = 60 * time.Second
	storeTimeout           = 2 * time.Second
	coalesceKey            = "snapshot"
	coalesceKeyForced      = "snapshot:force"
)

// Fetcher produces a fresh snapshot. *source.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context) (*models.Snapshot, error)
}

// Result is what Get hands to callers. Snapshot is shared and must not be modified.
type Result struct {
	Snapshot *models.Snapshot
	// Stale is true when the last refresh failed and an older live snapshot is served.
	Stale  bool
	Age    time.Duration
	Source string
}

// SourceCache serves the latest snapshot, refreshing it at most once per TTL.
// It is safe for concurrent use.
type SourceCache struct {
	fetcher         Fetcher
	ttl             time.Duration
	retryBackoff    time.Duration
	coalesceTimeout time.Duration
	clock           clockwork.Clock
	store           SnapshotStore
	logger          *zap.Logger
	coalescer       *requestCoalescer

	mu           sync.RWMutex
	snap         *models.Snapshot
	storedAt     time.Time
	retryAt      time.Time
	stale        bool
	storeChecked bool
}

// Option configures a SourceCache.
type Option func(*SourceCache)

// WithTTL sets how long a live snapshot is served without refetching.
func WithTTL(d time.Duration) Option {
	return func(c *SourceCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock sets the clock used for expiry and backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *SourceCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithStore sets an external store used for warm start and write-back.
func WithStore(s SnapshotStore) Option {
	return func(c *SourceCache) { c.store = s }
}

// WithRetryBackoff sets how long non-forced callers are served the current
// snapshot after a failed refresh before another fetch is attempted.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *SourceCache) {
		if d > 0 {
			c.retryBackoff = d
		}
	}
}

// WithCoalesceTimeout bounds how long a caller waits on a shared refresh.
func WithCoalesceTimeout(d time.Duration) Option {
	return func(c *SourceCache) {
		if d > 0 {
			c.coalesceTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *SourceCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a SourceCache over fetcher.
func New(fetcher Fetcher, opts ...Option) *SourceCache {
	c := &SourceCache{
		fetcher:         fetcher,
		ttl:             DefaultTTL,
		retryBackoff:    DefaultRetryBackoff,
		coalesceTimeout: DefaultCoalesceTimeout,
		clock:           clockwork.NewRealClock(),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.coalescer = newRequestCoalescer(c.coalesceTimeout)
	return c
}

// TTL returns the configured snapshot lifetime.
func (c *SourceCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the current snapshot, refreshing it when expired or when force
// is set. Concurrent refreshes share one fetch cycle. Upstream failures never
// surface as errors: the previous snapshot, or a simulated one, is served
// instead. An error is returned only when ctx ends before any snapshot exists.
func (c *SourceCache) Get(ctx context.Context, force bool) (Result, error) {
	if !force {
		if res, ok := c.fastPath(); ok {
			return c.observe(res), nil
		}
	}

	// A forced caller must not join a non-forced flight that may settle on
	// the store or the backoff without fetching.
	key := coalesceKey
	if force {
		key = coalesceKeyForced
	}
	res, shared, err := c.coalescer.Do(ctx, key, func() (Result, error) {
		return c.refresh(context.WithoutCancel(ctx), force)
	})
	if err != nil {
		if cur, ok := c.Current(); ok {
			cur.Source = SourceStale
			return c.observe(cur), nil
		}
		return Result{}, err
	}
	if shared && res.Source == SourceRefresh {
		res.Source = SourceCoalesced
	}
	return c.observe(res), nil
}

// Refresh forces one fetch cycle. It satisfies RefreshFunc.
func (c *SourceCache) Refresh(ctx context.Context, force bool) error {
	_, err := c.Get(ctx, force)
	return err
}

// Current returns the held snapshot without fetching. ok is false before the
// first snapshot.
func (c *SourceCache) Current() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return Result{}, false
	}
	return c.resultLocked(c.clock.Now(), SourceHit), true
}

func (c *SourceCache) resultLocked(now time.Time, src string) Result {
	if c.stale {
		src = SourceStale
	}
	return Result{
		Snapshot: c.snap,
		Stale:    c.stale,
		Age:      now.Sub(c.storedAt),
		Source:   src,
	}
}

// fastPath serves a fresh live snapshot, or the current one while a failed
// refresh is backing off.
func (c *SourceCache) fastPath() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return Result{}, false
	}
	now := c.clock.Now()
	if !c.stale && c.snap.Live() && now.Sub(c.storedAt) < c.ttl {
		return c.resultLocked(now, SourceHit), true
	}
	if now.Before(c.retryAt) {
		return c.resultLocked(now, SourceHit), true
	}
	return Result{}, false
}

func (c *SourceCache) refresh(ctx context.Context, force bool) (Result, error) {
	if !force {
		if res, ok := c.fastPath(); ok {
			return res, nil
		}
		if res, ok := c.warmStart(ctx); ok {
			return res, nil
		}
	}

	snap, err := c.fetcher.FetchAll(ctx)
	now := c.clock.Now()

	switch {
	case err == nil:
		c.mu.Lock()
		c.snap = snap
		c.storedAt = now
		c.retryAt = time.Time{}
		c.stale = false
		res := c.resultLocked(now, SourceRefresh)
		c.mu.Unlock()
		c.saveToStore(ctx, snap)
		return res, nil

	case errors.Is(err, source.ErrAllProvidersFailed) && snap != nil:
		c.mu.Lock()
		defer c.mu.Unlock()
		c.retryAt = now.Add(c.retryBackoff)
		if c.snap == nil || !c.snap.Live() {
			c.snap = snap
			c.storedAt = now
			c.stale = false
			c.logger.Warn("all providers failed; serving simulated snapshot",
				zap.Duration("retry_in", c.retryBackoff))
			return c.resultLocked(now, SourceRefresh), nil
		}
		c.stale = true
		c.logger.Info("all providers failed; serving stale snapshot",
			zap.Duration("age", now.Sub(c.storedAt)),
			zap.Duration("retry_in", c.retryBackoff))
		return c.resultLocked(now, SourceStale), nil

	default:
		return Result{}, err
	}
}

// warmStart adopts a fresh live snapshot from the store on a cold cache.
// The store is consulted at most once per process.
func (c *SourceCache) warmStart(ctx context.Context) (Result, bool) {
	if c.store == nil {
		return Result{}, false
	}
	c.mu.Lock()
	cold := c.snap == nil && !c.storeChecked
	c.storeChecked = true
	c.mu.Unlock()
	if !cold {
		return Result{}, false
	}

	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	snap, ok, err := c.store.Load(loadCtx)
	if err != nil {
		observability.SnapshotRequestsTotal.WithLabelValues("store_error").Inc()
		c.logger.Warn("snapshot store load failed", zap.Error(err))
		return Result{}, false
	}
	now := c.clock.Now()
	if !ok || !snap.Live() || now.Sub(snap.FetchedAt) >= c.ttl {
		return Result{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil {
		return Result{}, false
	}
	c.snap = snap
	c.storedAt = snap.FetchedAt
	c.stale = false
	c.logger.Info("warm start from snapshot store", zap.Duration("age", now.Sub(snap.FetchedAt)))
	return c.resultLocked(now, SourceStore), true
}

func (c *SourceCache) saveToStore(ctx context.Context, snap *models.Snapshot) {
	if c.store == nil || !snap.Live() {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.store.Save(saveCtx, snap, c.ttl); err != nil {
		observability.SnapshotRequestsTotal.WithLabelValues("store_error").Inc()
		c.logger.Warn("snapshot store save failed", zap.Error(err))
	}
}

func (c *SourceCache) observe(res Result) Result {
	observability.SnapshotRequestsTotal.WithLabelValues(res.Source).Inc()
	observability.SnapshotAgeSeconds.Set(res.Age.Seconds())
	if res.Stale {
		observability.SnapshotStaleTotal.Inc()
	}
	return res
}
