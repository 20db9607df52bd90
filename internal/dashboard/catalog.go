package dashboard

import "dashboard-backend/internal/models"

// Fixed presentation of each KPI card and alert. Only the figures vary
// between data sources.

type statKind int

const (
	statUsers statKind = iota
	statProcessing
	statCompleted
	statPendingRewards
)

type statTemplate struct {
	title      string
	icon       string
	color      models.Color
	trendLabel string
}

var statCatalog = [...]statTemplate{
	statUsers:          {"ผู้ใช้ทั้งหมด", "tabler-users", models.ColorPrimary, "จากเดือนที่แล้ว"},
	statProcessing:     {"มิชชันกำลังทำ", "tabler-rocket", models.ColorInfo, "จากสัปดาห์ที่แล้ว"},
	statCompleted:      {"สำเร็จแล้ว", "tabler-circle-check", models.ColorSuccess, "จากสัปดาห์ที่แล้ว"},
	statPendingRewards: {"รางวัลรอแจก", "tabler-gift", models.ColorWarning, "จากเมื่อวาน"},
}

func newStatCard(kind statKind, value, trend int) models.StatCard {
	t := statCatalog[kind]
	return models.StatCard{
		Title: t.title,
		Value: value,
		Icon:  t.icon,
		Color: t.color,
		Trend: models.Trend{Value: trend, Label: t.trendLabel},
	}
}

type alertTemplate struct {
	id          string
	title       string
	description string
	severity    models.Severity
	icon        string
	actionLabel string
}

var alertCatalog = map[models.AlertType]alertTemplate{
	models.AlertRewardExpiring: {
		id:          "1",
		title:       "รางวัลใกล้หมดอายุ",
		description: "มีรางวัลที่จะหมดอายุภายใน 24 ชั่วโมง",
		severity:    models.SeverityError,
		icon:        "tabler-alarm",
		actionLabel: "ดูรายละเอียด",
	},
	models.AlertApprovalPending: {
		id:          "2",
		title:       "รอการอนุมัติ",
		description: "มีรางวัลรอการอนุมัติจากระบบ",
		severity:    models.SeverityWarning,
		icon:        "tabler-hourglass",
		actionLabel: "ดำเนินการ",
	},
	models.AlertLevelExpiring: {
		id:          "3",
		title:       "Level หมดอายุวันนี้",
		description: "มี Level ที่จะหมดอายุวันนี้",
		severity:    models.SeverityInfo,
		icon:        "tabler-calendar-event",
		actionLabel: "ดูรายชื่อ",
	},
}

func newAlert(typ models.AlertType, count int) models.UrgentAlert {
	t := alertCatalog[typ]
	return models.UrgentAlert{
		ID:          t.id,
		Type:        typ,
		Title:       t.title,
		Description: t.description,
		Count:       count,
		Severity:    t.severity,
		Icon:        t.icon,
		ActionLabel: t.actionLabel,
	}
}
