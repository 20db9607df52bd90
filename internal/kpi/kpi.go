// Package kpi provides the pure computations behind the dashboard figures:
// rates, trends, relative-time labels and display helpers. Nothing here
// touches HTTP or the database, and "now" is always passed in.
package kpi

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bangkok is the display time zone. Thailand has no daylight saving time.
var Bangkok = time.FixedZone("ICT", 7*60*60)

// ── Rates ────────────────────────────────────────────────────────

// SuccessRate returns completed/total as a whole percent, rounded half up.
// A tier without users has a rate of 0.
func SuccessRate(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// ApprovalRate returns approved/(approved+rejected) as a percent with one
// decimal. Returns 0 when nothing has been decided yet.
func ApprovalRate(approved, rejected int) float64 {
	decided := approved + rejected
	if decided <= 0 || approved <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(approved)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(decided))).
		Round(1)
	f, _ := rate.Float64()
	return f
}

// TrendPercent returns the change from previous to current as a whole
// percent, negative for a drop. An empty previous window yields 0.
func TrendPercent(current, previous int) int {
	if previous <= 0 {
		return 0
	}
	return int(math.Round(float64(current-previous) * 100 / float64(previous)))
}

// ── Relative time ────────────────────────────────────────────────

// Ago renders how long ago t was, e.g. "5 นาทีที่แล้ว".
// Used for the updatedAt field of active users.
func Ago(t, now time.Time) string {
	return Elapsed(t, now) + "ที่แล้ว"
}

// Elapsed renders the time between t and now without the "ago" suffix,
// e.g. "2 นาที". Used for feed timestamps and reward waiting times.
// Future times count as zero seconds.
func Elapsed(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%d วัน", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%d ชั่วโมง", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%d นาที", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d วินาที", int(d.Seconds()))
	}
}

// FormatThai formats t as "02/01/2006 15:04" in Bangkok time.
func FormatThai(t time.Time) string {
	return t.In(Bangkok).Format("02/01/2006 15:04")
}

// StartOfDay returns midnight of t's calendar day in Bangkok time.
func StartOfDay(t time.Time) time.Time {
	b := t.In(Bangkok)
	return time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, Bangkok)
}

// ── Display helpers ──────────────────────────────────────────────

// FormatPhone renders a 10-digit Thai mobile number as "089-123-4567".
// Anything else is returned unchanged.
func FormatPhone(raw string) string {
	d := digits(raw)
	if len(d) != 10 {
		return raw
	}
	return d[:3] + "-" + d[3:6] + "-" + d[6:]
}

// MaskPhone hides the middle digits: "0891231234" becomes "089-xxx-1234".
// Numbers too short to mask are fully hidden.
func MaskPhone(raw string) string {
	d := digits(raw)
	if len(d) < 7 {
		return "xxx"
	}
	return d[:3] + "-xxx-" + d[len(d)-4:]
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var tierColors = map[string]string{
	"TIER 1": "#22c55e",
	"TIER 2": "#3b82f6",
	"TIER 3": "#a855f7",
}

// DefaultTierColor is used for tiers without an assigned color.
const DefaultTierColor = "#6b7280"

// TierName returns the display name of a tier number.
func TierName(tier int) string {
	return fmt.Sprintf("TIER %d", tier)
}

// TierColor returns the accent color for a tier name.
func TierColor(name string) string {
	if c, ok := tierColors[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return c
	}
	return DefaultTierColor
}

// AvatarURL returns the placeholder picture for the i-th user without one.
func AvatarURL(i int) string {
	if i < 0 {
		i = -i
	}
	return fmt.Sprintf("https://i.pravatar.cc/150?img=%d", (i%50)+1)
}
