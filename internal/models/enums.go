package models

// ── Closed enumerations ──────────────────────────────────────────
// Consumers pattern-match on these values, so the string forms are part
// of the wire contract and must never change.

// Color is the accent color of a KPI stat card.
type Color string

const (
	ColorPrimary Color = "primary"
	ColorInfo    Color = "info"
	ColorSuccess Color = "success"
	ColorWarning Color = "warning"
	ColorError   Color = "error"
)

// Valid reports whether c is one of the known card colors.
func (c Color) Valid() bool {
	switch c {
	case ColorPrimary, ColorInfo, ColorSuccess, ColorWarning, ColorError:
		return true
	}
	return false
}

// Severity ranks an urgent alert.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Priority() > 0
}

// Priority orders severities: error > warning > info. Unknown values are 0.
func (s Severity) Priority() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// AlertType identifies the source of an urgent alert.
type AlertType string

const (
	AlertRewardExpiring  AlertType = "reward_expiring"
	AlertApprovalPending AlertType = "approval_pending"
	AlertLevelExpiring   AlertType = "level_expiring"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertRewardExpiring, AlertApprovalPending, AlertLevelExpiring:
		return true
	}
	return false
}

// UserStatus is the progress state of a user inside a tier.
type UserStatus string

const (
	UserProcessing UserStatus = "processing"
	UserCompleted  UserStatus = "completed"
	UserFailed     UserStatus = "failed"
	UserPending    UserStatus = "pending"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserProcessing, UserCompleted, UserFailed, UserPending:
		return true
	}
	return false
}

// ActivityType discriminates the RecentActivity variants.
type ActivityType string

const (
	ActivityMissionComplete ActivityType = "mission_complete"
	ActivityRewardClaim     ActivityType = "reward_claim"
	ActivityLevelComplete   ActivityType = "level_complete"
	ActivityNewUser         ActivityType = "new_user"
	ActivityMissionFail     ActivityType = "mission_fail"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityMissionComplete, ActivityRewardClaim, ActivityLevelComplete,
		ActivityNewUser, ActivityMissionFail:
		return true
	}
	return false
}
