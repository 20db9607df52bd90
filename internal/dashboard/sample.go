package dashboard

import (
	"context"
	"strconv"

	"dashboard-backend/internal/models"
)

// Sample serves the fixed demonstration dataset. It is built once and never
// mutated; every accessor hands out a deep copy, so callers may modify what
// they receive. Since and Until are ignored because the sample timestamps
// are relative labels.
//
// The pending queue holds only the newest few of the 45 claims counted by
// the reward summary.
type Sample struct {
	stats      []models.StatCard
	tiers      []models.TierPerformance
	levels     map[int]map[int]int
	alerts     []models.UrgentAlert
	summary    models.RewardManagementSummary
	activities []models.RecentActivity
	pending    []models.PendingReward
}

// NewSample returns the sample provider.
func NewSample() *Sample {
	return &Sample{
		stats:      sampleStats(),
		tiers:      sampleTiers(),
		levels:     sampleLevels(),
		alerts:     sampleAlerts(),
		summary:    sampleSummary(),
		activities: sampleActivities(),
		pending:    samplePending(),
	}
}

var _ Provider = (*Sample)(nil)

// Stats returns the four KPI cards.
func (s *Sample) Stats(_ context.Context, f Filter) ([]models.StatCard, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return append([]models.StatCard(nil), s.stats...), nil
}

// TierPerformance returns the tiers in ascending order.
func (s *Sample) TierPerformance(_ context.Context, f Filter) ([]models.TierPerformance, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return cloneTiers(filterTiers(s.tiers, f)), nil
}

// UrgentAlerts returns alerts ordered by severity.
func (s *Sample) UrgentAlerts(_ context.Context, f Filter) ([]models.UrgentAlert, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return filterAlerts(s.alerts, f), nil
}

// RewardSummary returns the single summary record.
func (s *Sample) RewardSummary(_ context.Context, f Filter) (models.RewardManagementSummary, error) {
	if err := f.Validate(); err != nil {
		return models.RewardManagementSummary{}, err
	}
	return s.summary, nil
}

// RecentActivities returns the feed, most recent first.
func (s *Sample) RecentActivities(_ context.Context, f Filter) ([]models.RecentActivity, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return cloneActivities(filterActivities(s.activities, f)), nil
}

// PendingRewards returns the sample approval queue, newest first.
func (s *Sample) PendingRewards(_ context.Context, f Filter) ([]models.PendingReward, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := s.pending
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return append([]models.PendingReward{}, rows...), nil
}

// Overview derives the mission distribution from the sample tiers.
func (s *Sample) Overview(_ context.Context, f Filter) (models.Overview, error) {
	if err := f.Validate(); err != nil {
		return models.Overview{}, err
	}
	o := models.Overview{Tiers: []models.TierOverview{}}
	for _, t := range filterTiers(s.tiers, f) {
		levels := make(map[int]int, len(s.levels[t.Tier]))
		for l, n := range s.levels[t.Tier] {
			levels[l] = n
		}
		o.Tiers = append(o.Tiers, models.TierOverview{
			Tier:            t.Tier,
			Name:            t.Name,
			TotalUsers:      t.TotalUsers,
			CompletedUsers:  t.CompletedUsers,
			ProcessingUsers: t.ProcessingUsers,
			FailedUsers:     t.FailedUsers,
			LevelCounts:     levels,
		})
		o.TotalMissions += t.TotalUsers
	}
	return o, nil
}

// ── Copies ───────────────────────────────────────────────────────

func cloneTiers(in []models.TierPerformance) []models.TierPerformance {
	out := make([]models.TierPerformance, len(in))
	for i, t := range in {
		t.ActiveUsers = append([]models.ActiveUser(nil), t.ActiveUsers...)
		if t.ActiveUsers == nil {
			t.ActiveUsers = []models.ActiveUser{}
		}
		out[i] = t
	}
	return out
}

func cloneActivities(in []models.RecentActivity) []models.RecentActivity {
	out := make([]models.RecentActivity, len(in))
	for i, a := range in {
		if mc, ok := a.Detail.(models.MissionComplete); ok && mc.Reward != nil {
			mc.Reward = models.RewardAmount(*mc.Reward)
			a.Detail = mc
		}
		out[i] = a
	}
	return out
}

// ── Data ─────────────────────────────────────────────────────────

func sampleStats() []models.StatCard {
	return []models.StatCard{
		newStatCard(statUsers, 1234, 12),
		newStatCard(statProcessing, 456, 8),
		newStatCard(statCompleted, 789, 15),
		newStatCard(statPendingRewards, 45, -5),
	}
}

func sampleUser(id, userID, name string, img int, phone string, level int, updated string) models.ActiveUser {
	return models.ActiveUser{
		ID:           id,
		UserID:       userID,
		DisplayName:  name,
		PictureURL:   "https://i.pravatar.cc/150?img=" + strconv.Itoa(img),
		PhoneNumber:  phone,
		CurrentLevel: level,
		Status:       models.UserProcessing,
		UpdatedAt:    updated,
	}
}

func sampleTiers() []models.TierPerformance {
	return []models.TierPerformance{
		{
			Tier: 1, Name: "TIER 1",
			TotalUsers: 900, CompletedUsers: 702, ProcessingUsers: 150, FailedUsers: 48,
			SuccessRate: 78,
			Color:       "#22c55e",
			ActiveUsers: []models.ActiveUser{
				sampleUser("1", "U1234567890", "สมชาย ใจดี", 12, "089-123-4567", 3, "5 นาทีที่แล้ว"),
				sampleUser("2", "U0987654321", "สมหญิง รักสวย", 23, "081-987-6543", 2, "12 นาทีที่แล้ว"),
				sampleUser("3", "U1122334455", "วิชัย มั่นคง", 33, "092-345-6789", 4, "25 นาทีที่แล้ว"),
				sampleUser("4", "U5566778899", "มาลี สวยงาม", 44, "086-789-0123", 1, "1 ชั่วโมงที่แล้ว"),
			},
		},
		{
			Tier: 2, Name: "TIER 2",
			TotalUsers: 400, CompletedUsers: 284, ProcessingUsers: 80, FailedUsers: 36,
			SuccessRate: 71,
			Color:       "#3b82f6",
			ActiveUsers: []models.ActiveUser{
				sampleUser("5", "U2233445566", "ประยุทธ์ ชนะเลิศ", 55, "095-234-5678", 2, "8 นาทีที่แล้ว"),
				sampleUser("6", "U6677889900", "วารี น้ำใส", 26, "088-456-7890", 3, "18 นาทีที่แล้ว"),
				sampleUser("7", "U3344556677", "สุรชัย ดีมาก", 67, "091-567-8901", 1, "42 นาทีที่แล้ว"),
			},
		},
		{
			Tier: 3, Name: "TIER 3",
			TotalUsers: 165, CompletedUsers: 122, ProcessingUsers: 28, FailedUsers: 15,
			SuccessRate: 74,
			Color:       "#a855f7",
			ActiveUsers: []models.ActiveUser{
				sampleUser("8", "U7788990011", "ธนากร เศรษฐี", 8, "087-678-9012", 2, "15 นาทีที่แล้ว"),
				sampleUser("9", "U4455667788", "นิภา สุขสันต์", 29, "093-789-0123", 1, "32 นาทีที่แล้ว"),
			},
		},
	}
}

// sampleLevels spreads each sample tier's missions over its levels.
func sampleLevels() map[int]map[int]int {
	return map[int]map[int]int{
		1: {1: 320, 2: 240, 3: 180, 4: 100, 5: 60},
		2: {1: 150, 2: 110, 3: 80, 4: 40, 5: 20},
		3: {1: 70, 2: 45, 3: 30, 4: 20},
	}
}

func sampleAlerts() []models.UrgentAlert {
	return []models.UrgentAlert{
		newAlert(models.AlertRewardExpiring, 5),
		newAlert(models.AlertApprovalPending, 12),
		newAlert(models.AlertLevelExpiring, 8),
	}
}

func sampleSummary() models.RewardManagementSummary {
	return models.RewardManagementSummary{
		PendingApproval: 45,
		PendingAmount:   234500,
		ApprovedCount:   890,
		ApprovedAmount:  4567800,
		RejectedCount:   23,
		TotalAmount:     4802300,
		ApprovalRate:    97.5,
	}
}

func sampleActivities() []models.RecentActivity {
	return []models.RecentActivity{
		{
			ID: "1", UserPhone: "089-xxx-1234", Description: "ทำ Tier 2 สำเร็จ", Timestamp: "2 นาที",
			Detail: models.MissionComplete{Tier: 2, Level: 5, Reward: models.RewardAmount(5000)},
		},
		{
			ID: "2", UserPhone: "081-xxx-5678", Description: "รับรางวัลสำเร็จ", Timestamp: "5 นาที",
			Detail: models.RewardClaim{Reward: 3000},
		},
		{
			ID: "3", UserPhone: "092-xxx-9012", Description: "ผ่าน Level 3 ของ Tier 1", Timestamp: "12 นาที",
			Detail: models.LevelComplete{Tier: 1, Level: 3},
		},
		{
			ID: "4", UserPhone: "086-xxx-3456", Description: "ผู้ใช้ใหม่ลงทะเบียน", Timestamp: "18 นาที",
			Detail: models.NewUser{},
		},
		{
			ID: "5", UserPhone: "095-xxx-7890", Description: "Tier 1 Level 2 หมดเวลา", Timestamp: "25 นาที",
			Detail: models.MissionFail{Tier: 1, Level: 2},
		},
		{
			ID: "6", UserPhone: "088-xxx-2345", Description: "ผ่าน Level 1 ของ Tier 3", Timestamp: "32 นาที",
			Detail: models.LevelComplete{Tier: 3, Level: 1},
		},
		{
			ID: "7", UserPhone: "091-xxx-6789", Description: "รับรางวัลสำเร็จ", Timestamp: "45 นาที",
			Detail: models.RewardClaim{Reward: 8000},
		},
		{
			ID: "8", UserPhone: "087-xxx-0123", Description: "ผู้ใช้ใหม่ลงทะเบียน", Timestamp: "1 ชั่วโมง",
			Detail: models.NewUser{},
		},
	}
}

func samplePending() []models.PendingReward {
	row := func(logID, userID, name string, img int, phone, missionID, detail string, amount int64, created, waiting string) models.PendingReward {
		return models.PendingReward{
			LogID:         logID,
			UserID:        userID,
			DisplayName:   name,
			PhoneNumber:   phone,
			PictureURL:    "https://i.pravatar.cc/150?img=" + strconv.Itoa(img),
			MissionID:     missionID,
			MissionDetail: detail,
			RewardAmount:  amount,
			CreatedAt:     created,
			WaitingTime:   waiting,
			Status:        "pending",
		}
	}
	return []models.PendingReward{
		row("101", "U2233445566", "ประยุทธ์ ชนะเลิศ", 55, "095-234-5678", "12", "Tier 2 Level 5", 5000, "10/03/2025 14:52", "8 นาที"),
		row("100", "U0987654321", "สมหญิง รักสวย", 23, "081-987-6543", "7", "Tier 1 Level 5", 3000, "10/03/2025 14:35", "25 นาที"),
		row("99", "U7788990011", "ธนากร เศรษฐี", 8, "087-678-9012", "31", "Tier 3 Level 4", 8000, "10/03/2025 13:10", "1 ชั่วโมง"),
		row("98", "U1122334455", "วิชัย มั่นคง", 33, "092-345-6789", "9", "Tier 1 Level 5", 3000, "10/03/2025 11:02", "3 ชั่วโมง"),
		row("97", "U6677889900", "วารี น้ำใส", 26, "088-456-7890", "15", "Tier 2 Level 5", 5000, "09/03/2025 16:40", "1 วัน"),
	}
}
