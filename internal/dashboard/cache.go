package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"dashboard-backend/internal/metrics"
	"dashboard-backend/internal/models"
)

// Record set names, used in cache keys and metric labels.
const (
	SetStats            = "stats"
	SetTierPerformance  = "tier_performance"
	SetUrgentAlerts     = "urgent_alerts"
	SetRewardSummary    = "reward_summary"
	SetRecentActivities = "recent_activities"
	SetPendingRewards   = "pending_rewards"
	SetOverview         = "overview"
)

// CacheOptions tunes Cached.
type CacheOptions struct {
	TTL            time.Duration // fresh for this long
	MaxStale       time.Duration // then served stale, while refreshing, up to this age
	RefreshTimeout time.Duration // bound on one upstream load, retries included
	MaxRetries     uint          // upstream attempts per load
	Logger         *zap.Logger
}

func (o *CacheOptions) defaults() {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.MaxStale < o.TTL {
		o.MaxStale = o.TTL
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 10 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Cached fronts a slower Provider with a stale-while-revalidate cache.
//
// A fresh entry is returned as is. A stale entry is returned immediately
// and one background refresh is started. A missing entry is loaded while
// the caller waits. Loads for the same key are shared, so there is a single
// writer per key. Transient upstream failures are retried with exponential
// backoff; invalid data is not. A failed refresh leaves the stale entry in
// place.
type Cached struct {
	upstream Provider
	store    CacheStore
	opts     CacheOptions
	log      *zap.Logger
	group    singleflight.Group
	now      func() time.Time
	backoff  func() backoff.BackOff
}

// NewCached wraps upstream. A nil store means an in-process MemoryStore.
func NewCached(upstream Provider, store CacheStore, opts CacheOptions) *Cached {
	opts.defaults()
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cached{
		upstream: upstream,
		store:    store,
		opts:     opts,
		log:      opts.Logger.Named("cache"),
		now:      time.Now,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

var _ Provider = (*Cached)(nil)

func (c *Cached) Stats(ctx context.Context, f Filter) ([]models.StatCard, error) {
	return cachedGet(ctx, c, SetStats, f, c.upstream.Stats)
}

func (c *Cached) TierPerformance(ctx context.Context, f Filter) ([]models.TierPerformance, error) {
	return cachedGet(ctx, c, SetTierPerformance, f, c.upstream.TierPerformance)
}

func (c *Cached) UrgentAlerts(ctx context.Context, f Filter) ([]models.UrgentAlert, error) {
	return cachedGet(ctx, c, SetUrgentAlerts, f, c.upstream.UrgentAlerts)
}

func (c *Cached) RewardSummary(ctx context.Context, f Filter) (models.RewardManagementSummary, error) {
	return cachedGet(ctx, c, SetRewardSummary, f, c.upstream.RewardSummary)
}

func (c *Cached) RecentActivities(ctx context.Context, f Filter) ([]models.RecentActivity, error) {
	return cachedGet(ctx, c, SetRecentActivities, f, c.upstream.RecentActivities)
}

func (c *Cached) PendingRewards(ctx context.Context, f Filter) ([]models.PendingReward, error) {
	return cachedGet(ctx, c, SetPendingRewards, f, c.upstream.PendingRewards)
}

func (c *Cached) Overview(ctx context.Context, f Filter) (models.Overview, error) {
	return cachedGet(ctx, c, SetOverview, f, c.upstream.Overview)
}

// cachedGet serves one record set. Every caller decodes its own copy, so
// results are never shared between callers.
func cachedGet[T any](ctx context.Context, c *Cached, set string, f Filter,
	fetch func(context.Context, Filter) (T, error)) (T, error) {
	var zero T
	if err := f.Validate(); err != nil {
		return zero, err
	}

	key := set + ":" + f.Key()
	load := func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx, f)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	e, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		var v T
		if err := json.Unmarshal(e.Data, &v); err != nil {
			c.log.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		} else {
			age := c.now().Sub(e.StoredAt)
			switch {
			case age < c.opts.TTL:
				metrics.CacheRequests.WithLabelValues(set, "hit").Inc()
				return v, nil
			case age < c.opts.MaxStale:
				metrics.CacheRequests.WithLabelValues(set, "stale").Inc()
				c.refresh(set, key, load)
				return v, nil
			}
		}
	}

	metrics.CacheRequests.WithLabelValues(set, "miss").Inc()
	data, err := c.wait(ctx, set, key, load)
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("%w: decode %s: %v", ErrInvalidData, set, err)
	}
	return v, nil
}

// wait joins (or starts) the shared load for key and waits for it, or
// for ctx to end. Cancelling ctx does not cancel the shared load.
func (c *Cached) wait(ctx context.Context, set, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.loadAndStore(set, key, load)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refresh starts a background load unless one is already running for key.
func (c *Cached) refresh(set, key string, load func(context.Context) ([]byte, error)) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.loadAndStore(set, key, load)
	})
	go func() {
		if res := <-ch; res.Err != nil {
			c.log.Warn("background refresh failed, keeping stale entry",
				zap.String("set", set), zap.String("key", key), zap.Error(res.Err))
		}
	}()
}

func (c *Cached) loadAndStore(set, key string, load func(context.Context) ([]byte, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
	defer cancel()

	start := time.Now()
	data, err := c.retry(ctx, set, load)
	metrics.FetchDuration.WithLabelValues(set).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %s: %w", ErrUnavailable, set, err)
		}
		metrics.FetchErrors.WithLabelValues(set, errorReason(err)).Inc()
		return nil, err
	}

	if err := c.store.Set(ctx, key, Entry{Data: data, StoredAt: c.now()}, c.opts.MaxStale); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

// retry retries ErrUnavailable with exponential backoff. Anything else
// is returned at once.
func (c *Cached) retry(ctx context.Context, set string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	op := func() ([]byte, error) {
		data, err := load(ctx)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrUnavailable) && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.opts.MaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug("retrying upstream load",
				zap.String("set", set), zap.Duration("in", next), zap.Error(err))
		}),
	)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidData):
		return "invalid"
	}
	return "other"
}
