package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"dashboard-backend/internal/dashboard"
	"dashboard-backend/internal/models"
)

// requestTimeout bounds how long a dashboard request waits for data.
const requestTimeout = 5 * time.Second

// DashboardHandler serves the dashboard record sets.
type DashboardHandler struct {
	data dashboard.Provider
	log  *zap.Logger
}

// NewDashboardHandler creates a DashboardHandler reading from data.
func NewDashboardHandler(data dashboard.Provider, log *zap.Logger) *DashboardHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardHandler{data: data, log: log}
}

// ── Overview ─────────────────────────────────────────────────────

// GetOverview handles GET /api/dashboard/?tier=
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "overview", h.data.Overview)
}

// ── Stats ────────────────────────────────────────────────────────

// GetStats handles GET /api/dashboard/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "stats", h.data.Stats)
}

// ── Tier Performance ─────────────────────────────────────────────

// GetTierPerformance handles GET /api/dashboard/tier-performance?tier=
func (h *DashboardHandler) GetTierPerformance(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "tier performance", h.data.TierPerformance)
}

// ── Urgent Alerts ────────────────────────────────────────────────

// GetUrgentAlerts handles GET /api/dashboard/urgent-alerts?severity=
func (h *DashboardHandler) GetUrgentAlerts(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "urgent alerts", h.data.UrgentAlerts)
}

// ── Rewards ──────────────────────────────────────────────────────

// GetRewardSummary handles GET /api/dashboard/reward-summary
func (h *DashboardHandler) GetRewardSummary(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "reward summary", h.data.RewardSummary)
}

// pendingSummary is the queue overview returned next to the pending list.
type pendingSummary struct {
	Pending   int   `json:"pending"`
	Approved  int   `json:"approved"`
	Rejected  int   `json:"rejected"`
	TotalPaid int64 `json:"totalPaid"`
	Total     int   `json:"total"`
}

// GetPendingRewards handles GET /api/dashboard/pending-rewards?limit=
func (h *DashboardHandler) GetPendingRewards(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rows, err := h.data.PendingRewards(ctx, f)
	if err != nil {
		h.fail(w, "pending rewards", err)
		return
	}
	s, err := h.data.RewardSummary(ctx, dashboard.Filter{})
	if err != nil {
		h.fail(w, "pending rewards", err)
		return
	}

	JSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    rows,
		Summary: pendingSummary{
			Pending:   s.PendingApproval,
			Approved:  s.ApprovedCount,
			Rejected:  s.RejectedCount,
			TotalPaid: s.ApprovedAmount,
			Total:     s.PendingApproval + s.ApprovedCount + s.RejectedCount,
		},
	})
}

// ── Recent Activities ────────────────────────────────────────────

// GetRecentActivities handles
// GET /api/dashboard/recent-activities?limit=&tier=&type=&since=&until=
func (h *DashboardHandler) GetRecentActivities(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "recent activities", h.data.RecentActivities)
}

// ── Shared ───────────────────────────────────────────────────────

// serve parses the filter, loads one record set and writes it.
func serve[T any](h *DashboardHandler, w http.ResponseWriter, r *http.Request, name string,
	load func(context.Context, dashboard.Filter) (T, error)) {
	f, err := parseFilter(r)
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := load(ctx, f)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	ok(w, data)
}

// fail maps a provider error to a status code.
func (h *DashboardHandler) fail(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, dashboard.ErrBadFilter):
		JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dashboard.ErrInvalidData):
		h.log.Error("invalid dashboard data", zap.String("set", name), zap.Error(err))
		JSONError(w, http.StatusBadGateway, "Invalid data from data source")
	case errors.Is(err, dashboard.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("dashboard data unavailable", zap.String("set", name), zap.Error(err))
		JSONError(w, http.StatusServiceUnavailable, "Dashboard data unavailable")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		h.log.Debug("request canceled", zap.String("set", name))
	default:
		h.log.Error("failed to load dashboard data", zap.String("set", name), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch "+name)
	}
}

// parseFilter reads the optional query parameters shared by all endpoints.
func parseFilter(r *http.Request) (dashboard.Filter, error) {
	q := r.URL.Query()
	var f dashboard.Filter

	parseInt := func(name string) (int, error) {
		v := q.Get(name)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return n, nil
	}
	parseTime := func(name string) (time.Time, error) {
		v := q.Get(name)
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
		}
		return t, nil
	}

	var err error
	if f.Tier, err = parseInt("tier"); err != nil {
		return f, err
	}
	if f.Limit, err = parseInt("limit"); err != nil {
		return f, err
	}
	if f.Since, err = parseTime("since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTime("until"); err != nil {
		return f, err
	}
	f.Severity = models.Severity(q.Get("severity"))
	f.Type = models.ActivityType(q.Get("type"))

	return f, f.Validate()
}
