package models

import "time"

// ── KPI Stat Cards ───────────────────────────────────────────────

// StatCard is one KPI tile on the dashboard.
type StatCard struct {
	Title string `json:"title"`
	Value int    `json:"value"`
	Icon  string `json:"icon"`
	Color Color  `json:"color"`
	Trend Trend  `json:"trend"`
}

// Trend is the change of a KPI against a previous window.
// Value is negative for a regression.
type Trend struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// ── Tier Performance ─────────────────────────────────────────────

// TierPerformance aggregates user progress for one mission tier.
type TierPerformance struct {
	Tier            int          `json:"tier"`
	Name            string       `json:"name"`
	TotalUsers      int          `json:"totalUsers"`
	CompletedUsers  int          `json:"completedUsers"`
	ProcessingUsers int          `json:"processingUsers"`
	FailedUsers     int          `json:"failedUsers"`
	SuccessRate     int          `json:"successRate"` // percent, 0..100
	Color           string       `json:"color"`       // e.g. "#22c55e"
	ActiveUsers     []ActiveUser `json:"activeUsers"` // most recently updated first
}

// ActiveUser is a user currently working through a tier.
type ActiveUser struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"` // LINE user id
	DisplayName  string     `json:"displayName"`
	PictureURL   string     `json:"pictureUrl"`
	PhoneNumber  string     `json:"phoneNumber"` // "089-123-4567"
	CurrentLevel int        `json:"currentLevel"`
	Status       UserStatus `json:"status"`
	UpdatedAt    string     `json:"updatedAt"` // relative label, "5 นาทีที่แล้ว"
}

// ── Overview ─────────────────────────────────────────────────────

// Overview counts every mission by tier, status and current level.
type Overview struct {
	TotalMissions int            `json:"totalMissions"`
	Tiers         []TierOverview `json:"tiers"` // ascending tier
}

// TierOverview is the mission distribution of one tier. LevelCounts maps a
// level to the number of missions currently at it.
type TierOverview struct {
	Tier            int         `json:"tier"`
	Name            string      `json:"name"`
	TotalUsers      int         `json:"totalUsers"`
	CompletedUsers  int         `json:"completedUsers"`
	ProcessingUsers int         `json:"processingUsers"`
	FailedUsers     int         `json:"failedUsers"`
	LevelCounts     map[int]int `json:"levelCounts"`
}

// ── Urgent Alerts ────────────────────────────────────────────────

// UrgentAlert is an item that needs operator attention.
type UrgentAlert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Count       int       `json:"count"`
	Severity    Severity  `json:"severity"`
	Icon        string    `json:"icon"`
	ActionLabel string    `json:"actionLabel"`
}

// ── Reward Management ────────────────────────────────────────────

// RewardManagementSummary aggregates reward claims by approval state.
// Amounts are whole baht.
type RewardManagementSummary struct {
	PendingApproval int     `json:"pendingApproval"`
	PendingAmount   int64   `json:"pendingAmount"`
	ApprovedCount   int     `json:"approvedCount"`
	ApprovedAmount  int64   `json:"approvedAmount"`
	RejectedCount   int     `json:"rejectedCount"`
	TotalAmount     int64   `json:"totalAmount"`  // pendingAmount + approvedAmount
	ApprovalRate    float64 `json:"approvalRate"` // percent, one decimal
}

// PendingReward is a reward claim waiting for approval.
type PendingReward struct {
	LogID         string `json:"logId"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PhoneNumber   string `json:"phoneNumber"`
	PictureURL    string `json:"pictureUrl"`
	MissionID     string `json:"missionId"`
	MissionDetail string `json:"missionDetail"`
	RewardAmount  int64  `json:"rewardAmount"`
	CreatedAt     string `json:"createdAt"`   // "02/01/2006 15:04", Asia/Bangkok
	WaitingTime   string `json:"waitingTime"` // "3 ชั่วโมง"
	Status        string `json:"status"`      // always "pending"
}

// ── Snapshot ─────────────────────────────────────────────────────

// Snapshot is the whole dashboard at one instant, as archived by the
// snapshot job.
type Snapshot struct {
	GeneratedAt      time.Time               `json:"generatedAt"`
	Stats            []StatCard              `json:"stats"`
	TierPerformance  []TierPerformance       `json:"tierPerformance"`
	UrgentAlerts     []UrgentAlert           `json:"urgentAlerts"`
	RewardSummary    RewardManagementSummary `json:"rewardSummary"`
	RecentActivities []RecentActivity        `json:"recentActivities"`
}
