package engine

import (
	"errors"
	"testing"
	"time"

	"alertengine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAlerts_ExpirationTimeInvariant(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := models.Trigger{ID: "t1", Name: "trig", Severity: models.SeverityWarn, ExpireDurationMinutes: 5}
	monitor := models.Monitor{ID: "m1", Name: "mon", Version: 1}
	slices := []models.ResultSlice{{Total: 1, Size: 1}}

	alerts, err := BuildAlerts(trigger, monitor, "source=logs", slices, "exec1", now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, now.Add(5*time.Minute), alert.ExpirationTime)
	assert.NoError(t, alert.Validate(trigger))
	assert.Equal(t, "m1", alert.RoutingKey)
	assert.Equal(t, models.SeverityWarn, alert.Severity)
}

func TestBuildErrorAlert_ObfuscatesIP(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := models.Trigger{ID: "t1", ExpireDurationMinutes: 5}
	monitor := models.Monitor{ID: "m1", Version: 1}

	execErr := errors.New("connection to 10.0.0.5 refused")
	alert := BuildErrorAlert(trigger, monitor, "source=logs", execErr, "exec1", now)

	require.NotNil(t, alert.ErrorMessage)
	assert.NotContains(t, *alert.ErrorMessage, "10.0.0.5")
	assert.Contains(t, *alert.ErrorMessage, "<redacted-ip>")
	assert.Equal(t, models.SeverityError, alert.Severity)
	assert.Empty(t, alert.QueryResults)
}

func TestObfuscateIPs(t *testing.T) {
	got := ObfuscateIPs("peer 192.168.1.100 and 10.0.0.1 timed out")
	assert.Equal(t, "peer <redacted-ip> and <redacted-ip> timed out", got)
}
