package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-backend/internal/models"
)

// countingProvider serves the sample data and lets tests script Stats.
type countingProvider struct {
	*Sample

	mu      sync.Mutex
	calls   int
	errs    []error // returned by successive Stats calls before succeeding
	failAll error   // returned by every Stats call when set
	users   int     // value of the first card
	gate    chan struct{}
}

func newCountingProvider() *countingProvider {
	return &countingProvider{Sample: NewSample(), users: 1234}
}

func (p *countingProvider) Stats(ctx context.Context, f Filter) ([]models.StatCard, error) {
	p.mu.Lock()
	p.calls++
	var err error
	if p.failAll != nil {
		err = p.failAll
	} else if p.calls <= len(p.errs) {
		err = p.errs[p.calls-1]
	}
	users, gate := p.users, p.gate
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	cards, _ := p.Sample.Stats(ctx, f)
	cards[0].Value = users
	return cards, nil
}

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *countingProvider) set(fn func(p *countingProvider)) {
	p.mu.Lock()
	fn(p)
	p.mu.Unlock()
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(upstream Provider) (*Cached, *testClock) {
	clock := &testClock{t: fixedNow}
	store := NewMemoryStore()
	store.now = clock.Now

	c := NewCached(upstream, store, CacheOptions{
		TTL:            time.Minute,
		MaxStale:       10 * time.Minute,
		RefreshTimeout: 2 * time.Second,
		MaxRetries:     3,
	})
	c.now = clock.Now
	c.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c, clock
}

func TestCachedHitAfterMiss(t *testing.T) {
	up := newCountingProvider()
	c, _ := newTestCache(up)
	ctx := context.Background()

	first, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)
	second, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, up.Calls())
}

func TestCachedKeysByFilter(t *testing.T) {
	up := newCountingProvider()
	c, _ := newTestCache(up)
	ctx := context.Background()

	_, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)
	_, err = c.Stats(ctx, Filter{Tier: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, up.Calls())
}

func TestCachedServesStaleWhileRefreshing(t *testing.T) {
	up := newCountingProvider()
	c, clock := newTestCache(up)
	ctx := context.Background()

	_, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)

	up.set(func(p *countingProvider) { p.users = 2000 })
	clock.Advance(2 * time.Minute)

	stale, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1234, stale[0].Value, "stale value is served immediately")

	assert.Eventually(t, func() bool {
		cards, err := c.Stats(ctx, Filter{})
		return err == nil && cards[0].Value == 2000
	}, time.Second, 10*time.Millisecond)
}

func TestCachedKeepsStaleWhenRefreshFails(t *testing.T) {
	up := newCountingProvider()
	c, clock := newTestCache(up)
	ctx := context.Background()

	_, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)

	up.set(func(p *countingProvider) { p.failAll = fmt.Errorf("%w: db down", ErrUnavailable) })
	clock.Advance(2 * time.Minute)

	cards, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1234, cards[0].Value)

	assert.Eventually(t, func() bool { return up.Calls() >= 4 }, time.Second, 10*time.Millisecond,
		"background refresh retried")

	cards, err = c.Stats(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1234, cards[0].Value)
}

func TestCachedExpiresAfterMaxStale(t *testing.T) {
	up := newCountingProvider()
	c, clock := newTestCache(up)
	ctx := context.Background()

	_, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	up.set(func(p *countingProvider) { p.users = 42 })

	cards, err := c.Stats(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 42, cards[0].Value)
	assert.Equal(t, 2, up.Calls())
}

func TestCachedRetriesUnavailable(t *testing.T) {
	up := newCountingProvider()
	up.errs = []error{
		fmt.Errorf("%w: timeout", ErrUnavailable),
		fmt.Errorf("%w: timeout", ErrUnavailable),
	}
	c, _ := newTestCache(up)

	cards, err := c.Stats(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, cards, 4)
	assert.Equal(t, 3, up.Calls())
}

func TestCachedGivesUpAfterMaxRetries(t *testing.T) {
	up := newCountingProvider()
	up.failAll = fmt.Errorf("%w: refused", ErrUnavailable)
	c, _ := newTestCache(up)

	_, err := c.Stats(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, up.Calls())
}

func TestCachedDoesNotRetryInvalidData(t *testing.T) {
	up := newCountingProvider()
	up.failAll = fmt.Errorf("tier 2: %w", ErrInvalidData)
	c, _ := newTestCache(up)

	_, err := c.Stats(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, up.Calls())
}

func TestCachedSharesConcurrentLoads(t *testing.T) {
	up := newCountingProvider()
	up.gate = make(chan struct{})
	c, _ := newTestCache(up)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Stats(context.Background(), Filter{})
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return up.Calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(up.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, up.Calls())
}

func TestCachedCallerCancellation(t *testing.T) {
	up := newCountingProvider()
	up.gate = make(chan struct{})
	c, _ := newTestCache(up)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Stats(ctx, Filter{})
		done <- err
	}()

	require.Eventually(t, func() bool { return up.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The shared load carries on and fills the cache.
	close(up.gate)
	assert.Eventually(t, func() bool {
		_, found, _ := c.store.Get(context.Background(), SetStats+":"+Filter{}.Key())
		return found
	}, time.Second, 5*time.Millisecond)

	_, err := c.Stats(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.Calls())
}

func TestCachedResultsAreIndependent(t *testing.T) {
	c, _ := newTestCache(newCountingProvider())
	ctx := context.Background()

	tiers, err := c.TierPerformance(ctx, Filter{})
	require.NoError(t, err)
	tiers[0].ActiveUsers[0].DisplayName = "changed"

	again, err := c.TierPerformance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "สมชาย ใจดี", again[0].ActiveUsers[0].DisplayName)
}

func TestCachedRoundTripsEverySet(t *testing.T) {
	sample := NewSample()
	c, _ := newTestCache(newCountingProvider())
	ctx := context.Background()

	for i := 0; i < 2; i++ { // miss, then hit
		tiers, err := c.TierPerformance(ctx, Filter{})
		require.NoError(t, err)
		want, _ := sample.TierPerformance(ctx, Filter{})
		assert.Equal(t, want, tiers)

		alerts, err := c.UrgentAlerts(ctx, Filter{})
		require.NoError(t, err)
		wantAlerts, _ := sample.UrgentAlerts(ctx, Filter{})
		assert.Equal(t, wantAlerts, alerts)

		summary, err := c.RewardSummary(ctx, Filter{})
		require.NoError(t, err)
		wantSummary, _ := sample.RewardSummary(ctx, Filter{})
		assert.Equal(t, wantSummary, summary)

		acts, err := c.RecentActivities(ctx, Filter{})
		require.NoError(t, err)
		wantActs, _ := sample.RecentActivities(ctx, Filter{})
		assert.Equal(t, wantActs, acts)

		pending, err := c.PendingRewards(ctx, Filter{})
		require.NoError(t, err)
		wantPending, _ := sample.PendingRewards(ctx, Filter{})
		assert.Equal(t, wantPending, pending)

		overview, err := c.Overview(ctx, Filter{})
		require.NoError(t, err)
		wantOverview, _ := sample.Overview(ctx, Filter{})
		assert.Equal(t, wantOverview, overview)
	}
}

func TestCachedRejectsBadFilter(t *testing.T) {
	up := newCountingProvider()
	c, _ := newTestCache(up)

	_, err := c.Stats(context.Background(), Filter{Tier: -2})
	assert.ErrorIs(t, err, ErrBadFilter)
	assert.Equal(t, 0, up.Calls())
}
