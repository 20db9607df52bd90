package models

import (
	"errors"
	"fmt"
	"math"
	"regexp"
)

// ErrInvalidData marks a record that violates the dashboard data contract.
// Such records are rejected, never coerced.
var ErrInvalidData = errors.New("invalid dashboard data")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks a stat card.
func (c StatCard) Validate() error {
	if c.Title == "" {
		return invalid("stat card without title")
	}
	if c.Value < 0 {
		return invalid("stat card %q: negative value %d", c.Title, c.Value)
	}
	if !c.Color.Valid() {
		return invalid("stat card %q: unknown color %q", c.Title, c.Color)
	}
	return nil
}

// Validate checks a tier and its active users.
func (t TierPerformance) Validate() error {
	if t.Tier < 1 {
		return invalid("tier %d must be positive", t.Tier)
	}
	if t.TotalUsers < 0 || t.CompletedUsers < 0 || t.ProcessingUsers < 0 || t.FailedUsers < 0 {
		return invalid("tier %d: negative user count", t.Tier)
	}
	if t.CompletedUsers+t.ProcessingUsers+t.FailedUsers > t.TotalUsers {
		return invalid("tier %d: %d completed + %d processing + %d failed exceeds total %d",
			t.Tier, t.CompletedUsers, t.ProcessingUsers, t.FailedUsers, t.TotalUsers)
	}
	if t.SuccessRate < 0 || t.SuccessRate > 100 {
		return invalid("tier %d: success rate %d out of range", t.Tier, t.SuccessRate)
	}
	want := 0.0
	if t.TotalUsers > 0 {
		want = float64(t.CompletedUsers) / float64(t.TotalUsers) * 100
	}
	if math.Abs(float64(t.SuccessRate)-want) > 1 {
		return invalid("tier %d: success rate %d does not match %d/%d",
			t.Tier, t.SuccessRate, t.CompletedUsers, t.TotalUsers)
	}
	if !hexColor.MatchString(t.Color) {
		return invalid("tier %d: bad color %q", t.Tier, t.Color)
	}

	seen := make(map[string]struct{}, len(t.ActiveUsers))
	for _, u := range t.ActiveUsers {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("tier %d: %w", t.Tier, err)
		}
		if _, dup := seen[u.ID]; dup {
			return invalid("tier %d: duplicate active user id %q", t.Tier, u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}

// Validate checks an active user.
func (u ActiveUser) Validate() error {
	if u.ID == "" {
		return invalid("active user without id")
	}
	if u.CurrentLevel < 1 {
		return invalid("active user %q: level %d must be positive", u.ID, u.CurrentLevel)
	}
	if !u.Status.Valid() {
		return invalid("active user %q: unknown status %q", u.ID, u.Status)
	}
	return nil
}

// ValidateTiers checks each tier and that tier numbers strictly increase.
func ValidateTiers(tiers []TierPerformance) error {
	for i, t := range tiers {
		if err := t.Validate(); err != nil {
			return err
		}
		if i > 0 && t.Tier <= tiers[i-1].Tier {
			return invalid("tier %d follows tier %d", t.Tier, tiers[i-1].Tier)
		}
	}
	return nil
}

// Validate checks one tier of the overview.
func (t TierOverview) Validate() error {
	if t.Tier < 1 {
		return invalid("overview tier %d must be positive", t.Tier)
	}
	if t.TotalUsers < 0 || t.CompletedUsers < 0 || t.ProcessingUsers < 0 || t.FailedUsers < 0 {
		return invalid("overview tier %d: negative user count", t.Tier)
	}
	if t.CompletedUsers+t.ProcessingUsers+t.FailedUsers > t.TotalUsers {
		return invalid("overview tier %d: status counts exceed total %d", t.Tier, t.TotalUsers)
	}
	sum := 0
	for level, n := range t.LevelCounts {
		if level < 1 || n < 0 {
			return invalid("overview tier %d: bad level count %d:%d", t.Tier, level, n)
		}
		sum += n
	}
	if sum != t.TotalUsers {
		return invalid("overview tier %d: level counts sum to %d, total is %d", t.Tier, sum, t.TotalUsers)
	}
	return nil
}

// Validate checks the tiers and that they add up to the mission total.
func (o Overview) Validate() error {
	if o.TotalMissions < 0 {
		return invalid("negative mission total %d", o.TotalMissions)
	}
	sum := 0
	for i, t := range o.Tiers {
		if err := t.Validate(); err != nil {
			return err
		}
		if i > 0 && t.Tier <= o.Tiers[i-1].Tier {
			return invalid("overview tier %d follows tier %d", t.Tier, o.Tiers[i-1].Tier)
		}
		sum += t.TotalUsers
	}
	if sum != o.TotalMissions {
		return invalid("overview tiers hold %d missions, total is %d", sum, o.TotalMissions)
	}
	return nil
}

// Validate checks an urgent alert.
func (a UrgentAlert) Validate() error {
	if a.ID == "" {
		return invalid("alert without id")
	}
	if !a.Type.Valid() {
		return invalid("alert %q: unknown type %q", a.ID, a.Type)
	}
	if !a.Severity.Valid() {
		return invalid("alert %q: unknown severity %q", a.ID, a.Severity)
	}
	if a.Count < 0 {
		return invalid("alert %q: negative count %d", a.ID, a.Count)
	}
	return nil
}

// Validate checks the reward summary, including its derived fields.
func (s RewardManagementSummary) Validate() error {
	if s.PendingApproval < 0 || s.ApprovedCount < 0 || s.RejectedCount < 0 {
		return invalid("reward summary: negative count")
	}
	if s.PendingAmount < 0 || s.ApprovedAmount < 0 || s.TotalAmount < 0 {
		return invalid("reward summary: negative amount")
	}
	if s.TotalAmount != s.PendingAmount+s.ApprovedAmount {
		return invalid("reward summary: total %d != pending %d + approved %d",
			s.TotalAmount, s.PendingAmount, s.ApprovedAmount)
	}
	if s.ApprovalRate < 0 || s.ApprovalRate > 100 {
		return invalid("reward summary: approval rate %.1f out of range", s.ApprovalRate)
	}
	want := 0.0
	if decided := s.ApprovedCount + s.RejectedCount; decided > 0 {
		want = float64(s.ApprovedCount) / float64(decided) * 100
	}
	if math.Abs(s.ApprovalRate-want) > 0.1 {
		return invalid("reward summary: approval rate %.1f does not match %d/%d",
			s.ApprovalRate, s.ApprovedCount, s.ApprovedCount+s.RejectedCount)
	}
	return nil
}

// Validate checks a pending reward row.
func (p PendingReward) Validate() error {
	if p.LogID == "" {
		return invalid("pending reward without log id")
	}
	if p.RewardAmount < 0 {
		return invalid("pending reward %q: negative amount %d", p.LogID, p.RewardAmount)
	}
	if p.Status != "pending" {
		return invalid("pending reward %q: status %q", p.LogID, p.Status)
	}
	return nil
}

// Validate checks every record set of the snapshot.
func (s Snapshot) Validate() error {
	for _, c := range s.Stats {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if err := ValidateTiers(s.TierPerformance); err != nil {
		return err
	}
	for _, a := range s.UrgentAlerts {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	if err := s.RewardSummary.Validate(); err != nil {
		return err
	}
	for _, a := range s.RecentActivities {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
