// Package dashboard provisions the five dashboard record sets (stat cards,
// tier performance, urgent alerts, reward summary, recent activities) plus
// the pending-reward queue and the mission overview, from a fixed sample
// dataset or from PostgreSQL.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"dashboard-backend/internal/models"
)

var (
	// ErrUnavailable is returned when the backing data source cannot be
	// reached. It is transient; callers may retry.
	ErrUnavailable = errors.New("dashboard data unavailable")

	// ErrInvalidData is returned when a record violates the data contract.
	ErrInvalidData = models.ErrInvalidData

	// ErrBadFilter is returned for a filter that cannot be applied.
	ErrBadFilter = errors.New("invalid filter")
)

// Provider supplies the dashboard record sets. Implementations must be safe
// for concurrent use.
type Provider interface {
	Stats(ctx context.Context, f Filter) ([]models.StatCard, error)
	TierPerformance(ctx context.Context, f Filter) ([]models.TierPerformance, error)
	UrgentAlerts(ctx context.Context, f Filter) ([]models.UrgentAlert, error)
	RewardSummary(ctx context.Context, f Filter) (models.RewardManagementSummary, error)
	RecentActivities(ctx context.Context, f Filter) ([]models.RecentActivity, error)
	PendingRewards(ctx context.Context, f Filter) ([]models.PendingReward, error)
	Overview(ctx context.Context, f Filter) (models.Overview, error)
}

// ── Filter ───────────────────────────────────────────────────────

// Filter narrows a record set. The zero Filter selects everything.
type Filter struct {
	Since    time.Time           // activities and rewards at or after
	Until    time.Time           // activities and rewards before
	Tier     int                 // 0 = all tiers
	Severity models.Severity     // "" = all severities
	Type     models.ActivityType // "" = all activity types
	Limit    int                 // 0 = source default
}

// Validate rejects filters that cannot match anything meaningful.
func (f Filter) Validate() error {
	if f.Tier < 0 {
		return fmt.Errorf("%w: tier %d", ErrBadFilter, f.Tier)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: limit %d", ErrBadFilter, f.Limit)
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return fmt.Errorf("%w: severity %q", ErrBadFilter, f.Severity)
	}
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("%w: activity type %q", ErrBadFilter, f.Type)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Since.After(f.Until) {
		return fmt.Errorf("%w: since is after until", ErrBadFilter)
	}
	return nil
}

// Key identifies the filter in cache keys.
func (f Filter) Key() string {
	return fmt.Sprintf("t%d|s%s|a%s|l%d|%s|%s",
		f.Tier, f.Severity, f.Type, f.Limit, unixKey(f.Since), unixKey(f.Until))
}

func unixKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.FormatInt(t.UnixNano(), 36)
}

// limitOr returns the filter limit clamped to max, or def when unset.
func (f Filter) limitOr(def, max int) int {
	switch {
	case f.Limit == 0:
		return def
	case f.Limit > max:
		return max
	}
	return f.Limit
}

// ── Shared filtering ─────────────────────────────────────────────

func filterTiers(tiers []models.TierPerformance, f Filter) []models.TierPerformance {
	if f.Tier == 0 {
		return tiers
	}
	out := make([]models.TierPerformance, 0, 1)
	for _, t := range tiers {
		if t.Tier == f.Tier {
			out = append(out, t)
		}
	}
	return out
}

func filterAlerts(alerts []models.UrgentAlert, f Filter) []models.UrgentAlert {
	out := make([]models.UrgentAlert, 0, len(alerts))
	for _, a := range alerts {
		if f.Severity == "" || a.Severity == f.Severity {
			out = append(out, a)
		}
	}
	sortAlerts(out)
	return out
}

// sortAlerts orders alerts error > warning > info, keeping input order
// within a severity.
func sortAlerts(alerts []models.UrgentAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Priority() > alerts[j].Severity.Priority()
	})
}

func filterActivities(acts []models.RecentActivity, f Filter) []models.RecentActivity {
	out := make([]models.RecentActivity, 0, len(acts))
	for _, a := range acts {
		if f.Type != "" && a.Type() != f.Type {
			continue
		}
		if f.Tier != 0 {
			if tier, ok := a.Tier(); !ok || tier != f.Tier {
				continue
			}
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// ── Validation helpers ───────────────────────────────────────────

func validateStats(cards []models.StatCard) error {
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateAlerts(alerts []models.UrgentAlert) error {
	for _, a := range alerts {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateActivities(acts []models.RecentActivity) error {
	for _, a := range acts {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validatePending(rows []models.PendingReward) error {
	for _, p := range rows {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Collect gathers every record set into one snapshot.
func Collect(ctx context.Context, p Provider, now time.Time) (models.Snapshot, error) {
	var (
		snap models.Snapshot
		err  error
		f    Filter
	)
	snap.GeneratedAt = now.UTC()

	if snap.Stats, err = p.Stats(ctx, f); err != nil {
		return snap, fmt.Errorf("stats: %w", err)
	}
	if snap.TierPerformance, err = p.TierPerformance(ctx, f); err != nil {
		return snap, fmt.Errorf("tier performance: %w", err)
	}
	if snap.UrgentAlerts, err = p.UrgentAlerts(ctx, f); err != nil {
		return snap, fmt.Errorf("urgent alerts: %w", err)
	}
	if snap.RewardSummary, err = p.RewardSummary(ctx, f); err != nil {
		return snap, fmt.Errorf("reward summary: %w", err)
	}
	if snap.RecentActivities, err = p.RecentActivities(ctx, f); err != nil {
		return snap, fmt.Errorf("recent activities: %w", err)
	}
	return snap, nil
}
