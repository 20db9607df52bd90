package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dashboard-backend/internal/models"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"zero", Filter{}, false},
		{"full", Filter{Tier: 2, Severity: models.SeverityInfo, Type: models.ActivityNewUser, Limit: 5,
			Since: fixedNow.Add(-time.Hour), Until: fixedNow}, false},
		{"negative tier", Filter{Tier: -1}, true},
		{"negative limit", Filter{Limit: -3}, true},
		{"unknown severity", Filter{Severity: "critical"}, true},
		{"unknown type", Filter{Type: "login"}, true},
		{"inverted window", Filter{Since: fixedNow, Until: fixedNow.Add(-time.Minute)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadFilter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterKey(t *testing.T) {
	assert.Equal(t, Filter{}.Key(), Filter{}.Key())
	assert.NotEqual(t, Filter{}.Key(), Filter{Tier: 1}.Key())
	assert.NotEqual(t, Filter{Limit: 5}.Key(), Filter{Limit: 6}.Key())
	assert.NotEqual(t, Filter{Since: fixedNow}.Key(), Filter{Until: fixedNow}.Key())
}

func TestFilterLimitOr(t *testing.T) {
	assert.Equal(t, 10, Filter{}.limitOr(10, 100))
	assert.Equal(t, 7, Filter{Limit: 7}.limitOr(10, 100))
	assert.Equal(t, 100, Filter{Limit: 5000}.limitOr(10, 100))
}

func TestSortAlertsIsStable(t *testing.T) {
	alerts := []models.UrgentAlert{
		{ID: "a", Severity: models.SeverityInfo},
		{ID: "b", Severity: models.SeverityError},
		{ID: "c", Severity: models.SeverityWarning},
		{ID: "d", Severity: models.SeverityError},
	}
	sortAlerts(alerts)

	var ids []string
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids)
}
