package cron

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-backend/internal/dashboard"
	"dashboard-backend/internal/metrics"
	"dashboard-backend/internal/models"
	"dashboard-backend/internal/storage"
)

// memStore is an in-memory storage.Store.
type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	saves     int
	err       error
	deleteErr error
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (m *memStore) Save(_ context.Context, p string, r io.Reader, contentType string) (*storage.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.files[p] = b
	m.saves++
	return &storage.FileInfo{URL: m.URL(p), FileName: p, FileSize: int64(len(b)), FileType: contentType}, nil
}

func (m *memStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

func (m *memStore) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.files, p)
	return nil
}

func (m *memStore) List(_ context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for p := range m.files {
		if strings.HasPrefix(p, dir+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *memStore) has(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[p]
	return ok
}

// seed stores an archived snapshot generated at t.
func (m *memStore) seed(t time.Time) string {
	p := storage.SnapshotPath(t)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = []byte("{}")
	return p
}

func (m *memStore) URL(p string) string { return "mem://" + p }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) file(p string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[p]
}

// brokenStats fails the stats record set.
type brokenStats struct{ *dashboard.Sample }

func (brokenStats) Stats(context.Context, dashboard.Filter) ([]models.StatCard, error) {
	return nil, dashboard.ErrUnavailable
}

var archiveTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestArchiveWritesTimestampedAndLatest(t *testing.T) {
	store := newMemStore()
	a := NewArchiver(dashboard.NewSample(), store, 0, nil)
	a.now = func() time.Time { return archiveTime }

	info, err := a.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mem://snapshots/20250310T120000Z.json", info.URL)

	stamped := store.file("snapshots/20250310T120000Z.json")
	require.NotEmpty(t, stamped)
	assert.Equal(t, stamped, store.file(storage.LatestSnapshotPath))

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(stamped, &snap))
	assert.True(t, archiveTime.Equal(snap.GeneratedAt))
	assert.Len(t, snap.Stats, 4)
	assert.Len(t, snap.TierPerformance, 3)
	assert.Len(t, snap.UrgentAlerts, 3)
	assert.Len(t, snap.RecentActivities, 8)
	assert.NoError(t, snap.Validate())
}

func TestArchiveFailures(t *testing.T) {
	_, err := NewArchiver(brokenStats{dashboard.NewSample()}, newMemStore(), 0, nil).Archive(context.Background())
	assert.ErrorIs(t, err, dashboard.ErrUnavailable)

	store := newMemStore()
	store.err = errors.New("disk full")
	_, err = NewArchiver(dashboard.NewSample(), store, 0, nil).Archive(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	store := newMemStore()
	a := NewArchiver(dashboard.NewSample(), store, 0, nil)

	ok := metrics.SnapshotsArchived.WithLabelValues("ok")
	before := testutil.ToFloat64(ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := a.Start(ctx, time.Hour)

	assert.Eventually(t, func() bool { return testutil.ToFloat64(ok) == before+1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, store.count())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("archiver did not stop")
	}
}

func TestStartTicks(t *testing.T) {
	store := newMemStore()
	a := NewArchiver(dashboard.NewSample(), store, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return store.count() >= 6 }, time.Second, 5*time.Millisecond)
}

func TestStartDisabled(t *testing.T) {
	store := newMemStore()
	done := NewArchiver(dashboard.NewSample(), store, 0, nil).Start(context.Background(), 0)

	_, open := <-done
	assert.False(t, open)
	assert.Equal(t, 0, store.count())
}

func TestPruneDeletesOnlyExpiredSnapshots(t *testing.T) {
	store := newMemStore()
	old := store.seed(archiveTime.Add(-49 * time.Hour))
	older := store.seed(archiveTime.Add(-30 * 24 * time.Hour))
	recent := store.seed(archiveTime.Add(-time.Hour))
	store.files[storage.LatestSnapshotPath] = []byte("{}")
	store.files["snapshots/readme.txt"] = []byte("keep")

	a := NewArchiver(dashboard.NewSample(), store, 48*time.Hour, nil)
	a.now = func() time.Time { return archiveTime }

	n, err := a.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, store.has(old))
	assert.False(t, store.has(older))
	assert.True(t, store.has(recent))
	assert.True(t, store.has(storage.LatestSnapshotPath))
	assert.True(t, store.has("snapshots/readme.txt"))
}

func TestPruneDisabledAndFailures(t *testing.T) {
	store := newMemStore()
	old := store.seed(archiveTime.Add(-90 * 24 * time.Hour))

	a := NewArchiver(dashboard.NewSample(), store, 0, nil)
	a.now = func() time.Time { return archiveTime }
	n, err := a.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, store.has(old), "zero retention keeps everything")

	store.deleteErr = errors.New("permission denied")
	a.retain = 24 * time.Hour
	n, err = a.Prune(context.Background())
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "permission denied")
}

func TestStartPrunesAfterArchiving(t *testing.T) {
	store := newMemStore()
	old := store.seed(time.Now().Add(-72 * time.Hour))

	before := testutil.ToFloat64(metrics.SnapshotsPruned)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewArchiver(dashboard.NewSample(), store, 24*time.Hour, nil).Start(ctx, time.Hour)

	assert.Eventually(t, func() bool { return !store.has(old) }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.SnapshotsPruned) >= before+1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return store.has(storage.LatestSnapshotPath) }, time.Second, 5*time.Millisecond)
}
