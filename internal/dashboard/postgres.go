package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"dashboard-backend/internal/database"
	"dashboard-backend/internal/kpi"
	"dashboard-backend/internal/models"
)

const (
	defaultActivityLimit = 10
	maxActivityLimit     = 100
	defaultPendingLimit  = 50
	maxPendingLimit      = 200

	activeUsersPerTier = 4
)

// querier is the subset of *pgxpool.Pool used here.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres builds the record sets from the tables in database/schema.sql.
// Every result is validated before it is returned.
type Postgres struct {
	db  querier
	now func() time.Time
}

// NewPostgres returns a provider reading from db.
func NewPostgres(db database.Service) *Postgres {
	return &Postgres{db: db.GetPool(), now: time.Now}
}

var _ Provider = (*Postgres)(nil)

// unavailable wraps a database failure. The cause stays inspectable, so
// context cancellation is still visible through errors.Is.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// optTime maps the zero time to SQL NULL.
func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ── Stats ────────────────────────────────────────────────────────

type statCounts struct {
	Users, UsersCur, UsersPrev                int
	Processing, ProcessingCur, ProcessingPrev int
	Completed, CompletedCur, CompletedPrev    int
	Pending, PendingCur, PendingPrev          int
}

const statsQuery = `
	SELECT
		(SELECT COUNT(*) FROM clients),
		(SELECT COUNT(*) FROM clients WHERE created_at >= $1::timestamptz - INTERVAL '30 days'),
		(SELECT COUNT(*) FROM clients WHERE created_at >= $1::timestamptz - INTERVAL '60 days'
		                                AND created_at <  $1::timestamptz - INTERVAL '30 days'),
		(SELECT COUNT(*) FROM missions WHERE status = 'processing'),
		(SELECT COUNT(*) FROM missions WHERE started_at >= $1::timestamptz - INTERVAL '7 days'),
		(SELECT COUNT(*) FROM missions WHERE started_at >= $1::timestamptz - INTERVAL '14 days'
		                                 AND started_at <  $1::timestamptz - INTERVAL '7 days'),
		(SELECT COUNT(*) FROM missions WHERE status = 'completed'),
		(SELECT COUNT(*) FROM missions WHERE status = 'completed'
		                                 AND updated_at >= $1::timestamptz - INTERVAL '7 days'),
		(SELECT COUNT(*) FROM missions WHERE status = 'completed'
		                                 AND updated_at >= $1::timestamptz - INTERVAL '14 days'
		                                 AND updated_at <  $1::timestamptz - INTERVAL '7 days'),
		(SELECT COUNT(*) FROM reward_logs WHERE status = 'pending'),
		(SELECT COUNT(*) FROM reward_logs WHERE status = 'pending'
		                                    AND created_at >= $1::timestamptz - INTERVAL '1 day'),
		(SELECT COUNT(*) FROM reward_logs WHERE status = 'pending'
		                                    AND created_at >= $1::timestamptz - INTERVAL '2 days'
		                                    AND created_at <  $1::timestamptz - INTERVAL '1 day')
`

// Stats returns the four KPI cards with trends against the previous window.
func (p *Postgres) Stats(ctx context.Context, f Filter) ([]models.StatCard, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var c statCounts
	err := p.db.QueryRow(ctx, statsQuery, p.now()).Scan(
		&c.Users, &c.UsersCur, &c.UsersPrev,
		&c.Processing, &c.ProcessingCur, &c.ProcessingPrev,
		&c.Completed, &c.CompletedCur, &c.CompletedPrev,
		&c.Pending, &c.PendingCur, &c.PendingPrev,
	)
	if err != nil {
		return nil, unavailable("query stats", err)
	}

	cards := buildStats(c)
	if err := validateStats(cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func buildStats(c statCounts) []models.StatCard {
	return []models.StatCard{
		newStatCard(statUsers, c.Users, kpi.TrendPercent(c.UsersCur, c.UsersPrev)),
		newStatCard(statProcessing, c.Processing, kpi.TrendPercent(c.ProcessingCur, c.ProcessingPrev)),
		newStatCard(statCompleted, c.Completed, kpi.TrendPercent(c.CompletedCur, c.CompletedPrev)),
		newStatCard(statPendingRewards, c.Pending, kpi.TrendPercent(c.PendingCur, c.PendingPrev)),
	}
}

// ── Tier Performance ─────────────────────────────────────────────

type tierRow struct {
	Tier       int
	Name       string
	Total      int
	Completed  int
	Processing int
	Failed     int
}

type activeUserRow struct {
	Tier        int
	MissionID   int64
	UserID      string
	DisplayName string
	PictureURL  string
	Phone       string
	Level       int
	Status      string
	UpdatedAt   time.Time
}

const tiersQuery = `
	SELECT t.tier, t.name,
	       COUNT(m.id),
	       COUNT(m.id) FILTER (WHERE m.status = 'completed'),
	       COUNT(m.id) FILTER (WHERE m.status = 'processing'),
	       COUNT(m.id) FILTER (WHERE m.status = 'failed')
	FROM mission_tiers t
	LEFT JOIN missions m ON m.tier = t.tier
	WHERE ($1::int = 0 OR t.tier = $1::int)
	GROUP BY t.tier, t.name
	ORDER BY t.tier
`

const activeUsersQuery = `
	SELECT tier, id, user_id, display_name, picture_url, phone_number, current_level, status, updated_at
	FROM (
		SELECT m.tier, m.id, m.user_id,
		       COALESCE(c.display_name, '') AS display_name,
		       COALESCE(c.picture_url, '')  AS picture_url,
		       COALESCE(c.phone_number, '') AS phone_number,
		       m.current_level, m.status, m.updated_at,
		       ROW_NUMBER() OVER (PARTITION BY m.tier ORDER BY m.updated_at DESC, m.id DESC) AS rn
		FROM missions m
		LEFT JOIN clients c ON c.user_id = m.user_id
		WHERE m.status = 'processing' AND ($1::int = 0 OR m.tier = $1::int)
	) ranked
	WHERE rn <= $2
	ORDER BY tier, rn
`

// TierPerformance returns per-tier progress with up to four active users each.
func (p *Postgres) TierPerformance(ctx context.Context, f Filter) ([]models.TierPerformance, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, tiersQuery, f.Tier)
	if err != nil {
		return nil, unavailable("query tiers", err)
	}
	var tiers []tierRow
	for rows.Next() {
		var t tierRow
		if err := rows.Scan(&t.Tier, &t.Name, &t.Total, &t.Completed, &t.Processing, &t.Failed); err != nil {
			rows.Close()
			return nil, unavailable("scan tier", err)
		}
		tiers = append(tiers, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tiers", err)
	}

	rows, err = p.db.Query(ctx, activeUsersQuery, f.Tier, activeUsersPerTier)
	if err != nil {
		return nil, unavailable("query active users", err)
	}
	var users []activeUserRow
	for rows.Next() {
		var u activeUserRow
		if err := rows.Scan(&u.Tier, &u.MissionID, &u.UserID, &u.DisplayName, &u.PictureURL,
			&u.Phone, &u.Level, &u.Status, &u.UpdatedAt); err != nil {
			rows.Close()
			return nil, unavailable("scan active user", err)
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate active users", err)
	}

	out := buildTiers(tiers, users, p.now())
	if err := models.ValidateTiers(out); err != nil {
		return nil, err
	}
	return out, nil
}

// buildTiers attaches users to their tier, keeping the query order.
func buildTiers(tiers []tierRow, users []activeUserRow, now time.Time) []models.TierPerformance {
	byTier := make(map[int][]models.ActiveUser, len(tiers))
	for _, u := range users {
		if len(byTier[u.Tier]) >= activeUsersPerTier {
			continue
		}
		j := len(byTier[u.Tier])
		byTier[u.Tier] = append(byTier[u.Tier], buildActiveUser(u, j, now))
	}

	out := make([]models.TierPerformance, 0, len(tiers))
	for _, t := range tiers {
		active := byTier[t.Tier]
		if active == nil {
			active = []models.ActiveUser{}
		}
		name := t.Name
		if name == "" {
			name = kpi.TierName(t.Tier)
		}
		out = append(out, models.TierPerformance{
			Tier:            t.Tier,
			Name:            name,
			TotalUsers:      t.Total,
			CompletedUsers:  t.Completed,
			ProcessingUsers: t.Processing,
			FailedUsers:     t.Failed,
			SuccessRate:     kpi.SuccessRate(t.Completed, t.Total),
			Color:           kpi.TierColor(name),
			ActiveUsers:     active,
		})
	}
	return out
}

func buildActiveUser(u activeUserRow, j int, now time.Time) models.ActiveUser {
	name := u.DisplayName
	if name == "" {
		name = "Unknown User"
	}
	pic := u.PictureURL
	if pic == "" {
		pic = kpi.AvatarURL(j)
	}
	return models.ActiveUser{
		ID:           strconv.FormatInt(u.MissionID, 10),
		UserID:       u.UserID,
		DisplayName:  name,
		PictureURL:   pic,
		PhoneNumber:  kpi.FormatPhone(u.Phone),
		CurrentLevel: u.Level,
		Status:       models.UserStatus(u.Status),
		UpdatedAt:    kpi.Ago(u.UpdatedAt, now),
	}
}

// ── Overview ─────────────────────────────────────────────────────

type levelRow struct {
	Tier       int
	Name       string
	Level      int
	Total      int
	Completed  int
	Processing int
	Failed     int
}

const overviewQuery = `
	SELECT m.tier, COALESCE(t.name, ''), m.current_level,
	       COUNT(*),
	       COUNT(*) FILTER (WHERE m.status = 'completed'),
	       COUNT(*) FILTER (WHERE m.status = 'processing'),
	       COUNT(*) FILTER (WHERE m.status = 'failed')
	FROM missions m
	LEFT JOIN mission_tiers t ON t.tier = m.tier
	WHERE ($1::int = 0 OR m.tier = $1::int)
	GROUP BY m.tier, t.name, m.current_level
	ORDER BY m.tier, m.current_level
`

// Overview returns mission counts per tier, status and level.
func (p *Postgres) Overview(ctx context.Context, f Filter) (models.Overview, error) {
	if err := f.Validate(); err != nil {
		return models.Overview{}, err
	}

	rows, err := p.db.Query(ctx, overviewQuery, f.Tier)
	if err != nil {
		return models.Overview{}, unavailable("query overview", err)
	}
	defer rows.Close()

	var levels []levelRow
	for rows.Next() {
		var l levelRow
		if err := rows.Scan(&l.Tier, &l.Name, &l.Level, &l.Total, &l.Completed, &l.Processing, &l.Failed); err != nil {
			return models.Overview{}, unavailable("scan overview", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return models.Overview{}, unavailable("iterate overview", err)
	}

	o := buildOverview(levels)
	if err := o.Validate(); err != nil {
		return models.Overview{}, err
	}
	return o, nil
}

// buildOverview folds per-level rows, ordered by tier, into tiers.
func buildOverview(levels []levelRow) models.Overview {
	o := models.Overview{Tiers: []models.TierOverview{}}
	for _, l := range levels {
		n := len(o.Tiers)
		if n == 0 || o.Tiers[n-1].Tier != l.Tier {
			name := l.Name
			if name == "" {
				name = kpi.TierName(l.Tier)
			}
			o.Tiers = append(o.Tiers, models.TierOverview{Tier: l.Tier, Name: name, LevelCounts: map[int]int{}})
			n++
		}
		t := &o.Tiers[n-1]
		t.TotalUsers += l.Total
		t.CompletedUsers += l.Completed
		t.ProcessingUsers += l.Processing
		t.FailedUsers += l.Failed
		t.LevelCounts[l.Level] += l.Total
		o.TotalMissions += l.Total
	}
	return o
}

// ── Urgent Alerts ────────────────────────────────────────────────

type alertCounts struct {
	RewardExpiring  int
	ApprovalPending int
	LevelExpiring   int
}

const alertsQuery = `
	SELECT
		(SELECT COUNT(*) FROM expiration_events
		  WHERE type = 'reward_expiration' AND status = 'pending'
		    AND expires_at >= $1 AND expires_at < $1::timestamptz + INTERVAL '24 hours'),
		(SELECT COUNT(*) FROM reward_logs WHERE status = 'pending'),
		(SELECT COUNT(*) FROM expiration_events
		  WHERE type = 'level_expiration' AND status = 'pending'
		    AND expires_at >= $2 AND expires_at < $3)
`

// UrgentAlerts returns the three alert kinds ordered by severity.
func (p *Postgres) UrgentAlerts(ctx context.Context, f Filter) ([]models.UrgentAlert, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	now := p.now()
	dayStart := kpi.StartOfDay(now)

	var c alertCounts
	err := p.db.QueryRow(ctx, alertsQuery, now, dayStart, dayStart.Add(24*time.Hour)).
		Scan(&c.RewardExpiring, &c.ApprovalPending, &c.LevelExpiring)
	if err != nil {
		return nil, unavailable("query alerts", err)
	}

	alerts := filterAlerts(buildAlerts(c), f)
	if err := validateAlerts(alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func buildAlerts(c alertCounts) []models.UrgentAlert {
	return []models.UrgentAlert{
		newAlert(models.AlertRewardExpiring, c.RewardExpiring),
		newAlert(models.AlertApprovalPending, c.ApprovalPending),
		newAlert(models.AlertLevelExpiring, c.LevelExpiring),
	}
}

// ── Reward Summary ───────────────────────────────────────────────

type rewardTotals struct {
	PendingCount   int
	PendingAmount  int64
	ApprovedCount  int
	ApprovedAmount int64
	RejectedCount  int
}

const rewardSummaryQuery = `
	SELECT
		COUNT(*)                   FILTER (WHERE status = 'pending'),
		COALESCE(SUM(reward)       FILTER (WHERE status = 'pending'), 0),
		COUNT(*)                   FILTER (WHERE status = 'approve'),
		COALESCE(SUM(reward)       FILTER (WHERE status = 'approve'), 0),
		COUNT(*)                   FILTER (WHERE status = 'reject')
	FROM reward_logs
	WHERE ($1::timestamptz IS NULL OR created_at >= $1)
	  AND ($2::timestamptz IS NULL OR created_at <  $2)
`

// RewardSummary returns reward counts and amounts by approval state.
func (p *Postgres) RewardSummary(ctx context.Context, f Filter) (models.RewardManagementSummary, error) {
	if err := f.Validate(); err != nil {
		return models.RewardManagementSummary{}, err
	}

	var t rewardTotals
	err := p.db.QueryRow(ctx, rewardSummaryQuery, optTime(f.Since), optTime(f.Until)).Scan(
		&t.PendingCount, &t.PendingAmount, &t.ApprovedCount, &t.ApprovedAmount, &t.RejectedCount,
	)
	if err != nil {
		return models.RewardManagementSummary{}, unavailable("query reward summary", err)
	}

	s := buildSummary(t)
	if err := s.Validate(); err != nil {
		return models.RewardManagementSummary{}, err
	}
	return s, nil
}

func buildSummary(t rewardTotals) models.RewardManagementSummary {
	return models.RewardManagementSummary{
		PendingApproval: t.PendingCount,
		PendingAmount:   t.PendingAmount,
		ApprovedCount:   t.ApprovedCount,
		ApprovedAmount:  t.ApprovedAmount,
		RejectedCount:   t.RejectedCount,
		TotalAmount:     t.PendingAmount + t.ApprovedAmount,
		ApprovalRate:    kpi.ApprovalRate(t.ApprovedCount, t.RejectedCount),
	}
}

// ── Recent Activities ────────────────────────────────────────────

type activityRow struct {
	ID          int64
	Type        string
	Phone       string
	Description string
	Tier        *int
	Level       *int
	Reward      *int64
	CreatedAt   time.Time
}

const activitiesQuery = `
	SELECT a.id, a.type, COALESCE(c.phone_number, ''), a.description,
	       a.tier, a.level, a.reward, a.created_at
	FROM activity_log a
	LEFT JOIN clients c ON c.user_id = a.user_id
	WHERE ($1::int = 0 OR a.tier = $1::int)
	  AND ($2::text = '' OR a.type = $2::text)
	  AND ($3::timestamptz IS NULL OR a.created_at >= $3)
	  AND ($4::timestamptz IS NULL OR a.created_at <  $4)
	ORDER BY a.created_at DESC, a.id DESC
	LIMIT $5
`

// RecentActivities returns the newest feed entries first.
func (p *Postgres) RecentActivities(ctx context.Context, f Filter) ([]models.RecentActivity, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, activitiesQuery,
		f.Tier, string(f.Type), optTime(f.Since), optTime(f.Until),
		f.limitOr(defaultActivityLimit, maxActivityLimit))
	if err != nil {
		return nil, unavailable("query activities", err)
	}
	defer rows.Close()

	now := p.now()
	out := []models.RecentActivity{}
	for rows.Next() {
		var r activityRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Phone, &r.Description,
			&r.Tier, &r.Level, &r.Reward, &r.CreatedAt); err != nil {
			return nil, unavailable("scan activity", err)
		}
		a, err := buildActivity(r, now)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate activities", err)
	}

	if err := validateActivities(out); err != nil {
		return nil, err
	}
	return out, nil
}

func buildActivity(r activityRow, now time.Time) (models.RecentActivity, error) {
	id := strconv.FormatInt(r.ID, 10)
	detail, err := models.NewActivityDetail(models.ActivityType(r.Type), r.Tier, r.Level, r.Reward)
	if err != nil {
		return models.RecentActivity{}, fmt.Errorf("activity %s: %w", id, err)
	}
	return models.RecentActivity{
		ID:          id,
		UserPhone:   kpi.MaskPhone(r.Phone),
		Description: r.Description,
		Timestamp:   kpi.Elapsed(r.CreatedAt, now),
		Detail:      detail,
	}, nil
}

// ── Pending Rewards ──────────────────────────────────────────────

type pendingRow struct {
	LogID         int64
	UserID        string
	DisplayName   string
	PictureURL    string
	Phone         string
	MissionID     *int64
	MissionDetail string
	Reward        int64
	CreatedAt     time.Time
}

const pendingQuery = `
	SELECT r.id, r.user_id,
	       COALESCE(c.display_name, ''), COALESCE(c.picture_url, ''), COALESCE(c.phone_number, ''),
	       r.mission_id, r.mission_detail, r.reward, r.created_at
	FROM reward_logs r
	LEFT JOIN clients c ON c.user_id = r.user_id
	WHERE r.status = 'pending'
	  AND ($1::timestamptz IS NULL OR r.created_at >= $1)
	  AND ($2::timestamptz IS NULL OR r.created_at <  $2)
	ORDER BY r.created_at DESC, r.id DESC
	LIMIT $3
`

// PendingRewards returns reward claims awaiting approval, newest first.
func (p *Postgres) PendingRewards(ctx context.Context, f Filter) ([]models.PendingReward, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, pendingQuery, optTime(f.Since), optTime(f.Until),
		f.limitOr(defaultPendingLimit, maxPendingLimit))
	if err != nil {
		return nil, unavailable("query pending rewards", err)
	}
	defer rows.Close()

	now := p.now()
	out := []models.PendingReward{}
	for rows.Next() {
		var r pendingRow
		if err := rows.Scan(&r.LogID, &r.UserID, &r.DisplayName, &r.PictureURL, &r.Phone,
			&r.MissionID, &r.MissionDetail, &r.Reward, &r.CreatedAt); err != nil {
			return nil, unavailable("scan pending reward", err)
		}
		out = append(out, buildPendingReward(r, len(out), now))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate pending rewards", err)
	}

	if err := validatePending(out); err != nil {
		return nil, err
	}
	return out, nil
}

func buildPendingReward(r pendingRow, i int, now time.Time) models.PendingReward {
	name := r.DisplayName
	if name == "" {
		name = "Unknown User"
	}
	pic := r.PictureURL
	if pic == "" {
		pic = kpi.AvatarURL(i)
	}
	missionID := ""
	if r.MissionID != nil {
		missionID = strconv.FormatInt(*r.MissionID, 10)
	}
	return models.PendingReward{
		LogID:         strconv.FormatInt(r.LogID, 10),
		UserID:        r.UserID,
		DisplayName:   name,
		PhoneNumber:   kpi.FormatPhone(r.Phone),
		PictureURL:    pic,
		MissionID:     missionID,
		MissionDetail: r.MissionDetail,
		RewardAmount:  r.Reward,
		CreatedAt:     kpi.FormatThai(r.CreatedAt),
		WaitingTime:   kpi.Elapsed(r.CreatedAt, now),
		Status:        "pending",
	}
}
