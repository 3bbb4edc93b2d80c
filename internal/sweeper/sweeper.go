// Package sweeper implements the cluster-singleton Alert Lifecycle
// Sweeper: a leader-gated background task that expires orphaned or
// time-expired alerts and, when history is enabled, archives them first.
// Sweeps are leader-gated and scheduled with a fixed delay (not a fixed
// rate), so no two sweeps ever overlap.
package sweeper

import (
	"context"
	"sync"
	"time"

	"alertengine/internal/clock"
	"alertengine/internal/errors"
	"alertengine/internal/leader"
	"alertengine/internal/metrics"
	"alertengine/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	sweepInterval       = time.Minute
	maxAlertsPerSweep   = 10000
	maxMonitorsPerSweep = 10000
)

// Settings carries the hot-reloadable history-related cluster settings.
type Settings struct {
	HistoryEnabled bool
}

// SettingsSource supplies the current Settings at the start of every sweep,
// so a hot-reload takes effect on the next tick without restarting the
// sweeper.
type SettingsSource interface {
	Current() Settings
}

// AlertStore is the subset of internal/alertstore the sweeper needs.
type AlertStore interface {
	CollectionsReady() bool
	ListActive(ctx context.Context, maxDocs int) ([]models.Alert, error)
	CopyToHistory(ctx context.Context, alerts []models.Alert) (copied, failed []models.Alert, firstErr error)
	DeleteActive(ctx context.Context, alerts []models.Alert) error
}

// MonitorStore is the subset of internal/monitorstore the sweeper needs.
type MonitorStore interface {
	MappingReady() bool
	List(ctx context.Context, maxDocs int) ([]models.Monitor, error)
}

// Sweeper is the leader-gated background task.
type Sweeper struct {
	Alerts   AlertStore
	Monitors MonitorStore
	Elector  leader.Elector
	Clock    clock.Clock
	Settings SettingsSource
	Log      *logrus.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func New(alerts AlertStore, monitors MonitorStore, elector leader.Elector, c clock.Clock, settings SettingsSource, log *logrus.Logger) *Sweeper {
	if c == nil {
		c = clock.RealClock{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Sweeper{Alerts: alerts, Monitors: monitors, Elector: elector, Clock: c, Settings: settings, Log: log}
	elector.OnChange(s.onLeadershipChange)
	return s
}

// Start begins watching leadership transitions. If already the leader, it
// starts sweeping immediately.
func (s *Sweeper) Start() {
	if s.Elector.IsLeader() {
		s.onLeadershipChange(true)
	}
}

// Stop cancels the schedule; an in-flight sweep is allowed to complete.
func (s *Sweeper) Stop() {
	s.onLeadershipChange(false)
}

// IsRunning reports whether this process currently holds the sweep
// schedule (i.e. it is the leader and Start/OnChange has fired).
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) onLeadershipChange(isLeader bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isLeader {
		if s.running {
			return
		}
		s.running = true
		metrics.SweeperLeader.Set(1)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.loop(s.stopCh)
		return
	}

	if !s.running {
		return
	}
	s.running = false
	metrics.SweeperLeader.Set(0)
	close(s.stopCh)
}

// loop runs one sweep immediately on becoming leader, then every
// sweepInterval thereafter on a fixed delay (not fixed rate): the next
// sweep is scheduled only after the previous one finishes, so sweeps never
// overlap.
func (s *Sweeper) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	s.runSweep()

	timer := time.NewTimer(sweepInterval)
	defer timer.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			s.runSweep()
			timer.Reset(sweepInterval)
		}
	}
}

// runSweep runs one sweep with a context that losing leadership does not
// cancel, so an in-flight sweep completes before the loop observes stopCh.
func (s *Sweeper) runSweep() {
	ctx := context.Background()

	if err := s.Sweep(ctx); err != nil {
		s.Log.WithError(err).Error("alert lifecycle sweep failed")
	}
}

// Sweep runs exactly one pass: loads active alerts and monitors, computes
// expiry, and branches on history-enabled to either hard-delete or
// copy-then-delete.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.Alerts.CollectionsReady() || !s.Monitors.MappingReady() {
		s.Log.Debug("skipping sweep: alert or monitor collections not yet initialized")
		return nil
	}

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	alerts, err := s.Alerts.ListActive(ctx, maxAlertsPerSweep)
	if err != nil {
		return errors.WrapKind(err, errors.KindFatal, "sweep: loading active alerts")
	}
	monitors, err := s.Monitors.List(ctx, maxMonitorsPerSweep)
	if err != nil {
		return errors.WrapKind(err, errors.KindFatal, "sweep: loading monitors")
	}

	byID := make(map[string]models.Monitor, len(monitors))
	for _, m := range monitors {
		byID[m.ID] = m
	}

	now := s.Clock.Now()
	var expired []models.Alert
	for _, a := range alerts {
		if isExpired(a, byID, now) {
			expired = append(expired, a)
		}
	}
	if len(expired) == 0 {
		return nil
	}

	settings := Settings{HistoryEnabled: true}
	if s.Settings != nil {
		settings = s.Settings.Current()
	}

	if !settings.HistoryEnabled {
		if err := s.Alerts.DeleteActive(ctx, expired); err != nil {
			return err
		}
		metrics.AlertsExpiredTotal.Add(float64(len(expired)))
		return nil
	}

	copied, failed, copyErr := s.Alerts.CopyToHistory(ctx, expired)
	if err := s.Alerts.DeleteActive(ctx, copied); err != nil {
		return err
	}
	metrics.AlertsExpiredTotal.Add(float64(len(copied)))
	metrics.AlertsArchivedTotal.Add(float64(len(copied)))
	if len(failed) > 0 {
		metrics.AlertsArchiveFailuresTotal.Add(float64(len(failed)))
		// copyErr is the first failing copy's cause, the caller's retry hint.
		return errors.WrapKind(copyErr, errors.KindTransient, "sweep: failed to archive one or more expired alerts before deletion").
			WithField("failed_count", len(failed))
	}
	return nil
}

// isExpired applies the three-way expiry test: unknown monitor, unknown
// trigger (monitor reshaped), or elapsed expireDuration.
func isExpired(a models.Alert, monitors map[string]models.Monitor, now time.Time) bool {
	monitor, ok := monitors[a.MonitorID]
	if !ok {
		return true
	}
	trigger, ok := monitor.TriggerByID(a.TriggerID)
	if !ok {
		return true
	}
	return now.Sub(a.TriggeredTime) >= time.Duration(trigger.ExpireDurationMinutes)*time.Minute
}
