package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func validTrigger() Trigger {
	return Trigger{
		ID:                    "t1",
		Name:                  "errors seen",
		Severity:              SeverityWarn,
		Mode:                  ModeResultSet,
		ConditionType:         ConditionNumberOfResults,
		Op:                    CompGT,
		Value:                 intPtr(0),
		ExpireDurationMinutes: 60,
	}
}

func validMonitor() Monitor {
	enabledAt := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	return Monitor{
		ID:          "m1",
		Version:     1,
		Type:        MonitorTypePQL,
		Name:        "log errors",
		Enabled:     true,
		EnabledTime: &enabledAt,
		Query:       "source=logs",
		Triggers:    []Trigger{validTrigger()},
	}
}

func TestMonitorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Monitor)
		wantErr bool
	}{
		{"valid", func(m *Monitor) {}, false},
		{"missing id", func(m *Monitor) { m.ID = "" }, true},
		{"invalid type", func(m *Monitor) { m.Type = "prometheus" }, true},
		{"enabled without enabledTime", func(m *Monitor) { m.EnabledTime = nil }, true},
		{"disabled with enabledTime", func(m *Monitor) { m.Enabled = false }, true},
		{"disabled without enabledTime", func(m *Monitor) { m.Enabled = false; m.EnabledTime = nil }, false},
		{"zero triggers", func(m *Monitor) { m.Triggers = nil }, true},
		{"eleven triggers", func(m *Monitor) {
			m.Triggers = nil
			for i := 0; i < 11; i++ {
				tr := validTrigger()
				tr.ID = string(rune('a' + i))
				m.Triggers = append(m.Triggers, tr)
			}
		}, true},
		{"duplicate trigger ids", func(m *Monitor) {
			m.Triggers = []Trigger{validTrigger(), validTrigger()}
		}, true},
		{"lookback without timestamp field", func(m *Monitor) {
			m.LookBackWindowMinutes = intPtr(15)
			m.TimestampField = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMonitor()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTriggerValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Trigger)
		wantErr bool
	}{
		{"valid", func(tr *Trigger) {}, false},
		{"negative value", func(tr *Trigger) { tr.Value = intPtr(-1) }, true},
		{"missing value", func(tr *Trigger) { tr.Value = nil }, true},
		{"invalid comparator", func(tr *Trigger) { tr.Op = "~" }, true},
		{"custom without fragment", func(tr *Trigger) {
			tr.ConditionType = ConditionCustom
			tr.CustomFragment = ""
		}, true},
		{"custom with fragment", func(tr *Trigger) {
			tr.ConditionType = ConditionCustom
			tr.CustomFragment = "eval flag = number > 7"
		}, false},
		{"zero expire duration", func(tr *Trigger) { tr.ExpireDurationMinutes = 0 }, true},
		{"invalid severity", func(tr *Trigger) { tr.Severity = "FATAL" }, true},
		{"invalid mode", func(tr *Trigger) { tr.Mode = "BATCH" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrigger()
			tt.mutate(&tr)
			err := tr.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComparatorApply(t *testing.T) {
	tests := []struct {
		op    Comparator
		total int
		value int
		want  bool
	}{
		{CompGT, 3, 0, true},
		{CompGT, 0, 0, false},
		{CompGTE, 3, 3, true},
		{CompLT, 2, 3, true},
		{CompLTE, 3, 3, true},
		{CompEQ, 3, 3, true},
		{CompEQ, 3, 2, false},
		{CompNEQ, 3, 2, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.Apply(tt.total, tt.value), "%d %s %d", tt.total, tt.op, tt.value)
	}
}

func TestAlertWireFormat(t *testing.T) {
	triggered := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alert := Alert{
		ID:             "a1",
		MonitorID:      "m1",
		MonitorName:    "log errors",
		MonitorVersion: 2,
		TriggerID:      "t1",
		TriggerName:    "errors seen",
		Query:          "source=logs",
		QueryResults:   JSONB{"total": float64(3)},
		TriggeredTime:  triggered,
		ExpirationTime: triggered.Add(time.Hour),
		Severity:       SeverityWarn,
		ExecutionID:    "exec-1",
	}

	encoded, err := json.Marshal(alert)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Equal(t, float64(triggered.UnixMilli()), raw["triggered_time"])
	assert.Equal(t, float64(triggered.Add(time.Hour).UnixMilli()), raw["expiration_time"])
	assert.Equal(t, "m1", raw["monitor_id"])
	assert.Equal(t, float64(2), raw["monitor_version"])
	assert.Equal(t, "exec-1", raw["execution_id"])
	_, hasErrMsg := raw["error_message"]
	assert.False(t, hasErrMsg)

	var decoded Alert
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, decoded.TriggeredTime.Equal(triggered))
	assert.True(t, decoded.ExpirationTime.Equal(triggered.Add(time.Hour)))
}

func TestAlertValidate(t *testing.T) {
	triggered := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := Trigger{ID: "t1", ExpireDurationMinutes: 30}

	good := Alert{ID: "a1", TriggeredTime: triggered, ExpirationTime: triggered.Add(30 * time.Minute)}
	assert.NoError(t, good.Validate(trigger))

	bad := Alert{ID: "a2", TriggeredTime: triggered, ExpirationTime: triggered.Add(time.Minute)}
	assert.Error(t, bad.Validate(trigger))
}
