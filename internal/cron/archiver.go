// Package cron runs the periodic background jobs of the dashboard service.
package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dashboard-backend/internal/dashboard"
	"dashboard-backend/internal/metrics"
	"dashboard-backend/internal/storage"
)

// archiveTimeout bounds one archive cycle.
const archiveTimeout = 30 * time.Second

// Archiver writes the whole dashboard to storage as a JSON snapshot and
// deletes snapshots older than its retention.
type Archiver struct {
	data   dashboard.Provider
	store  storage.Store
	retain time.Duration // 0 keeps everything
	log    *zap.Logger
	now    func() time.Time
}

// NewArchiver returns an archiver reading from data and writing to store.
func NewArchiver(data dashboard.Provider, store storage.Store, retain time.Duration, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{data: data, store: store, retain: retain, log: log, now: time.Now}
}

// Start launches a background goroutine that archives once immediately and
// then every interval, until ctx ends. The returned channel is closed when
// the goroutine exits. A non-positive interval disables the job.
func (a *Archiver) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		a.log.Info("snapshot archiver disabled")
		return done
	}

	go func() {
		defer close(done)
		a.runCycle(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				a.log.Info("snapshot archiver stopped")
				return
			case <-ticker.C:
				a.runCycle(ctx)
			}
		}
	}()

	a.log.Info("snapshot archiver started", zap.Duration("interval", interval))
	return done
}

func (a *Archiver) runCycle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	info, err := a.Archive(ctx)
	if err != nil {
		metrics.SnapshotsArchived.WithLabelValues("error").Inc()
		a.log.Error("snapshot archive failed", zap.Error(err))
		return
	}
	metrics.SnapshotsArchived.WithLabelValues("ok").Inc()
	a.log.Info("snapshot archived", zap.String("url", info.URL), zap.Int64("bytes", info.FileSize))

	n, err := a.Prune(ctx)
	if n > 0 {
		metrics.SnapshotsPruned.Add(float64(n))
		a.log.Info("old snapshots deleted", zap.Int("count", n))
	}
	if err != nil {
		a.log.Warn("snapshot prune failed", zap.Error(err))
	}
}

// Archive collects one snapshot, validates it and stores it twice: under
// its timestamp and as the latest snapshot.
func (a *Archiver) Archive(ctx context.Context) (*storage.FileInfo, error) {
	snap, err := dashboard.Collect(ctx, a.data, a.now())
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	info, err := a.store.Save(ctx, storage.SnapshotPath(snap.GeneratedAt), bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if _, err := a.store.Save(ctx, storage.LatestSnapshotPath, bytes.NewReader(body), "application/json"); err != nil {
		return nil, fmt.Errorf("save latest: %w", err)
	}
	return info, nil
}

// Prune deletes timestamped snapshots generated before now minus the
// retention and returns how many it deleted. The latest snapshot is never
// touched. It keeps going past a failed delete and reports the first error.
func (a *Archiver) Prune(ctx context.Context) (int, error) {
	if a.retain <= 0 {
		return 0, nil
	}
	paths, err := a.store.List(ctx, storage.SnapshotDir)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	cutoff := a.now().Add(-a.retain)
	var (
		deleted  int
		firstErr error
	)
	for _, p := range paths {
		at, ok := storage.SnapshotTime(p)
		if !ok || !at.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, p); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: %w", p, err)
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}
