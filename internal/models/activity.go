package models

import (
	"encoding/json"
	"fmt"
)

// ── Recent Activity ──────────────────────────────────────────────
// A feed entry is a tagged union keyed by its type. Each variant carries
// exactly the fields valid for it, so a new_user entry can never hold a
// reward and a reward_claim always does.

// RecentActivity is one entry of the recent-activity feed.
type RecentActivity struct {
	ID          string
	UserPhone   string // masked, "089-xxx-1234"
	Description string
	Timestamp   string // relative label, "2 นาที"
	Detail      ActivityDetail
}

// ActivityDetail is implemented only by the variant types in this file.
type ActivityDetail interface {
	Type() ActivityType
	isActivityDetail()
}

// MissionComplete: the user finished a whole tier.
type MissionComplete struct {
	Tier   int
	Level  int
	Reward *int64
}

// RewardClaim: the user collected a reward.
type RewardClaim struct {
	Reward int64
}

// LevelComplete: the user passed one level of a tier.
type LevelComplete struct {
	Tier  int
	Level int
}

// MissionFail: a level expired before the user finished it.
type MissionFail struct {
	Tier  int
	Level int
}

// NewUser: a user registered.
type NewUser struct{}

func (MissionComplete) Type() ActivityType { return ActivityMissionComplete }
func (RewardClaim) Type() ActivityType     { return ActivityRewardClaim }
func (LevelComplete) Type() ActivityType   { return ActivityLevelComplete }
func (MissionFail) Type() ActivityType     { return ActivityMissionFail }
func (NewUser) Type() ActivityType         { return ActivityNewUser }

func (MissionComplete) isActivityDetail() {}
func (RewardClaim) isActivityDetail()     {}
func (LevelComplete) isActivityDetail()   {}
func (MissionFail) isActivityDetail()     {}
func (NewUser) isActivityDetail()         {}

// RewardAmount returns a pointer to v, for optional reward fields.
func RewardAmount(v int64) *int64 {
	return &v
}

// Type returns the discriminator, or "" when Detail is unset.
func (a RecentActivity) Type() ActivityType {
	if a.Detail == nil {
		return ""
	}
	return a.Detail.Type()
}

// Tier returns the tier number for variants that carry one.
func (a RecentActivity) Tier() (int, bool) {
	switch d := a.Detail.(type) {
	case MissionComplete:
		return d.Tier, true
	case LevelComplete:
		return d.Tier, true
	case MissionFail:
		return d.Tier, true
	}
	return 0, false
}

// Reward returns the reward amount for variants that carry one.
func (a RecentActivity) Reward() (int64, bool) {
	switch d := a.Detail.(type) {
	case RewardClaim:
		return d.Reward, true
	case MissionComplete:
		if d.Reward != nil {
			return *d.Reward, true
		}
	}
	return 0, false
}

// activityWire is the flat JSON form consumed by the dashboard UI.
type activityWire struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	UserPhone   string       `json:"userPhone"`
	Description string       `json:"description"`
	Timestamp   string       `json:"timestamp"`
	Tier        *int         `json:"tier,omitempty"`
	Level       *int         `json:"level,omitempty"`
	Reward      *int64       `json:"reward,omitempty"`
}

// MarshalJSON flattens the variant into the wire form.
func (a RecentActivity) MarshalJSON() ([]byte, error) {
	w := activityWire{
		ID:          a.ID,
		UserPhone:   a.UserPhone,
		Description: a.Description,
		Timestamp:   a.Timestamp,
	}

	switch d := a.Detail.(type) {
	case MissionComplete:
		w.Type = d.Type()
		w.Tier, w.Level = intPtr(d.Tier), intPtr(d.Level)
		if d.Reward != nil {
			w.Reward = RewardAmount(*d.Reward)
		}
	case RewardClaim:
		w.Type = d.Type()
		w.Reward = RewardAmount(d.Reward)
	case LevelComplete:
		w.Type = d.Type()
		w.Tier, w.Level = intPtr(d.Tier), intPtr(d.Level)
	case MissionFail:
		w.Type = d.Type()
		w.Tier, w.Level = intPtr(d.Tier), intPtr(d.Level)
	case NewUser:
		w.Type = d.Type()
	default:
		return nil, invalid("activity %q has no detail", a.ID)
	}

	return json.Marshal(w)
}

// NewActivityDetail builds the variant for t from optional flat fields.
// Fields that are not valid for the type are rejected rather than dropped.
func NewActivityDetail(t ActivityType, tier, level *int, reward *int64) (ActivityDetail, error) {
	switch t {
	case ActivityMissionComplete:
		if tier == nil || level == nil {
			return nil, invalid("mission_complete needs tier and level")
		}
		mc := MissionComplete{Tier: *tier, Level: *level}
		if reward != nil {
			mc.Reward = RewardAmount(*reward)
		}
		return mc, nil
	case ActivityRewardClaim:
		if reward == nil {
			return nil, invalid("reward_claim needs reward")
		}
		if tier != nil || level != nil {
			return nil, invalid("reward_claim carries no tier or level")
		}
		return RewardClaim{Reward: *reward}, nil
	case ActivityLevelComplete, ActivityMissionFail:
		if tier == nil || level == nil {
			return nil, invalid("%s needs tier and level", t)
		}
		if reward != nil {
			return nil, invalid("%s carries no reward", t)
		}
		if t == ActivityLevelComplete {
			return LevelComplete{Tier: *tier, Level: *level}, nil
		}
		return MissionFail{Tier: *tier, Level: *level}, nil
	case ActivityNewUser:
		if tier != nil || level != nil || reward != nil {
			return nil, invalid("new_user carries no tier, level or reward")
		}
		return NewUser{}, nil
	}
	return nil, invalid("unknown activity type %q", t)
}

// UnmarshalJSON rebuilds the variant from the wire form.
func (a *RecentActivity) UnmarshalJSON(data []byte) error {
	var w activityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	detail, err := NewActivityDetail(w.Type, w.Tier, w.Level, w.Reward)
	if err != nil {
		return fmt.Errorf("activity %q: %w", w.ID, err)
	}

	*a = RecentActivity{
		ID:          w.ID,
		UserPhone:   w.UserPhone,
		Description: w.Description,
		Timestamp:   w.Timestamp,
		Detail:      detail,
	}
	return nil
}

// Validate checks the per-variant invariants.
func (a RecentActivity) Validate() error {
	if a.ID == "" {
		return invalid("activity without id")
	}
	if a.Detail == nil {
		return invalid("activity %q has no detail", a.ID)
	}

	checkTierLevel := func(tier, level int) error {
		if tier < 1 || level < 1 {
			return invalid("activity %q: tier %d level %d must be positive", a.ID, tier, level)
		}
		return nil
	}

	switch d := a.Detail.(type) {
	case MissionComplete:
		if err := checkTierLevel(d.Tier, d.Level); err != nil {
			return err
		}
		if d.Reward != nil && *d.Reward < 0 {
			return invalid("activity %q: negative reward %d", a.ID, *d.Reward)
		}
	case RewardClaim:
		if d.Reward < 0 {
			return invalid("activity %q: negative reward %d", a.ID, d.Reward)
		}
	case LevelComplete:
		return checkTierLevel(d.Tier, d.Level)
	case MissionFail:
		return checkTierLevel(d.Tier, d.Level)
	case NewUser:
	default:
		return invalid("activity %q: unsupported detail %T", a.ID, d)
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}

// String is used in log lines.
func (a RecentActivity) String() string {
	return fmt.Sprintf("%s(%s)", a.Type(), a.ID)
}
