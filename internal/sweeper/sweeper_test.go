package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"alertengine/internal/clock"
	"alertengine/internal/leader"
	"alertengine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertStore struct {
	active   []models.Alert
	deleted  []models.Alert
	copied   []models.Alert
	failCopy map[string]bool
	notReady bool
}

func (f *fakeAlertStore) CollectionsReady() bool { return !f.notReady }

func (f *fakeAlertStore) ListActive(ctx context.Context, maxDocs int) ([]models.Alert, error) {
	return f.active, nil
}

func (f *fakeAlertStore) CopyToHistory(ctx context.Context, alerts []models.Alert) (copied, failed []models.Alert, firstErr error) {
	for _, a := range alerts {
		if f.failCopy != nil && f.failCopy[a.ID] {
			if firstErr == nil {
				firstErr = fmt.Errorf("history write throttled for alert %s", a.ID)
			}
			failed = append(failed, a)
			continue
		}
		f.copied = append(f.copied, a)
		copied = append(copied, a)
	}
	return copied, failed, firstErr
}

func (f *fakeAlertStore) DeleteActive(ctx context.Context, alerts []models.Alert) error {
	f.deleted = append(f.deleted, alerts...)
	return nil
}

type fakeMonitorStore struct {
	monitors []models.Monitor
	notReady bool
}

func (f *fakeMonitorStore) MappingReady() bool { return !f.notReady }

func (f *fakeMonitorStore) List(ctx context.Context, maxDocs int) ([]models.Monitor, error) {
	return f.monitors, nil
}

func trigger(id string, expireMinutes int) models.Trigger {
	return models.Trigger{ID: id, ExpireDurationMinutes: expireMinutes}
}

func TestSweep_OrphanedMonitorExpires(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alerts := &fakeAlertStore{active: []models.Alert{
		{ID: "a1", MonitorID: "missing-monitor", TriggerID: "t1", TriggeredTime: now},
	}}
	monitors := &fakeMonitorStore{}

	s := New(alerts, monitors, leader.NewStatic(true), clock.NewFake(now), nil, nil)
	require.NoError(t, s.Sweep(context.Background()))

	assert.Len(t, alerts.deleted, 1)
	assert.Len(t, alerts.copied, 1)
}

func TestSweep_SkipsWhenCollectionsNotInitialized(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alerts := &fakeAlertStore{
		active:   []models.Alert{{ID: "a1", MonitorID: "gone", TriggerID: "t1", TriggeredTime: now}},
		notReady: true,
	}
	monitors := &fakeMonitorStore{}

	s := New(alerts, monitors, leader.NewStatic(true), clock.NewFake(now), nil, nil)
	require.NoError(t, s.Sweep(context.Background()))

	assert.Empty(t, alerts.deleted)
	assert.Empty(t, alerts.copied)

	alerts.notReady = false
	monitors.notReady = true
	require.NoError(t, s.Sweep(context.Background()))
	assert.Empty(t, alerts.deleted)
}

func TestSweep_ReshapedTriggerExpires(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alerts := &fakeAlertStore{active: []models.Alert{
		{ID: "a1", MonitorID: "m1", TriggerID: "gone", TriggeredTime: now},
	}}
	monitors := &fakeMonitorStore{monitors: []models.Monitor{
		{ID: "m1", Triggers: []models.Trigger{trigger("t1", 60)}},
	}}

	s := New(alerts, monitors, leader.NewStatic(true), clock.NewFake(now), nil, nil)
	require.NoError(t, s.Sweep(context.Background()))

	assert.Len(t, alerts.deleted, 1)
}

func TestSweep_NotYetExpiredSurvives(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	triggeredAt := now.Add(-30 * time.Minute)
	alerts := &fakeAlertStore{active: []models.Alert{
		{ID: "a1", MonitorID: "m1", TriggerID: "t1", TriggeredTime: triggeredAt},
	}}
	monitors := &fakeMonitorStore{monitors: []models.Monitor{
		{ID: "m1", Triggers: []models.Trigger{trigger("t1", 60)}},
	}}

	s := New(alerts, monitors, leader.NewStatic(true), clock.NewFake(now), nil, nil)
	require.NoError(t, s.Sweep(context.Background()))

	assert.Empty(t, alerts.deleted)
}

type staticSettings struct{ s Settings }

func (s staticSettings) Current() Settings { return s.s }

func TestSweep_HistoryDisabledHardDeletes(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alerts := &fakeAlertStore{active: []models.Alert{
		{ID: "a1", MonitorID: "gone", TriggerID: "t1", TriggeredTime: now},
	}}
	monitors := &fakeMonitorStore{}

	s := New(alerts, monitors, leader.NewStatic(true), clock.NewFake(now), staticSettings{Settings{HistoryEnabled: false}}, nil)
	require.NoError(t, s.Sweep(context.Background()))

	assert.Len(t, alerts.deleted, 1)
	assert.Empty(t, alerts.copied)
}

func TestSweep_FailedCopySkipsDelete(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alerts := &fakeAlertStore{
		active: []models.Alert{
			{ID: "a1", MonitorID: "gone", TriggerID: "t1", TriggeredTime: now},
		},
		failCopy: map[string]bool{"a1": true},
	}
	monitors := &fakeMonitorStore{}

	s := New(alerts, monitors, leader.NewStatic(true), clock.NewFake(now), nil, nil)
	err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Empty(t, alerts.deleted)
}

func TestSweeper_StartStopGatesOnLeadership(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alerts := &fakeAlertStore{}
	monitors := &fakeMonitorStore{}
	elector := leader.NewStatic(false)

	s := New(alerts, monitors, elector, clock.NewFake(now), nil, nil)
	s.Start()
	assert.False(t, s.IsRunning())

	elector.SetLeader(true)
	assert.True(t, s.IsRunning())

	elector.SetLeader(false)
	assert.False(t, s.IsRunning())
}
