// Package scheduler runs each enabled monitor on its own independent
// schedule, reconciling the live monitor set periodically so a newly
// enabled or disabled monitor takes effect without a process restart. A
// monitor that is already scheduled keeps the document (including its
// interval) it was first scheduled with; later edits to it are not picked
// up until it is disabled and re-enabled or the process restarts.
package scheduler

import (
	"context"
	"time"

	"alertengine/internal/config"
	"alertengine/internal/engine"
	"alertengine/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const reloadInterval = 5 * time.Minute

// MonitorStore is the subset of internal/monitorstore the scheduler needs to
// discover and reload the live monitor set.
type MonitorStore interface {
	List(ctx context.Context, maxDocs int) ([]models.Monitor, error)
}

// monitorTask owns one monitor's independent ticker loop.
type monitorTask struct {
	monitor models.Monitor
	stopCh  chan struct{}
}

// Scheduler fans one goroutine per enabled monitor, each firing the
// runner registry on that monitor's own Schedule. The registry picks the
// concrete runner by the monitor's variant tag.
type Scheduler struct {
	Monitors MonitorStore
	Runner   engine.Runner
	Settings *config.Store
	Log      *logrus.Logger

	tasks  map[string]*monitorTask
	stopCh chan struct{}
}

func New(monitors MonitorStore, runner engine.Runner, settings *config.Store, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Monitors: monitors,
		Runner:   runner,
		Settings: settings,
		Log:      log,
		tasks:    make(map[string]*monitorTask),
		stopCh:   make(chan struct{}),
	}
}

// Start loads the current monitor set and begins periodic reconciliation.
func (s *Scheduler) Start(ctx context.Context) {
	s.reload(ctx)

	ticker := time.NewTicker(reloadInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.reload(ctx)
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts every monitor's ticker loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	for _, task := range s.tasks {
		close(task.stopCh)
	}
	s.tasks = make(map[string]*monitorTask)
}

func (s *Scheduler) reload(ctx context.Context) {
	monitors, err := s.Monitors.List(ctx, 10000)
	if err != nil {
		s.Log.WithError(err).Error("scheduler: failed to load monitors")
		return
	}

	live := make(map[string]bool, len(monitors))
	for _, m := range monitors {
		if !m.Enabled {
			continue
		}
		live[m.ID] = true
		if _, exists := s.tasks[m.ID]; exists {
			continue
		}

		task := &monitorTask{monitor: m, stopCh: make(chan struct{})}
		s.tasks[m.ID] = task
		go s.runTask(task)
		s.Log.WithField("monitor_id", m.ID).WithField("monitor_name", m.Name).Info("scheduler: monitor scheduled")
	}

	for id, task := range s.tasks {
		if !live[id] {
			close(task.stopCh)
			delete(s.tasks, id)
			s.Log.WithField("monitor_id", id).Info("scheduler: monitor unscheduled")
		}
	}
}

// runTask drives one monitor's schedule with a drift-corrected fixed-rate
// timer: nextRun always advances by a whole number of intervals from its
// previous value, so a slow run doesn't permanently skew the cadence.
func (s *Scheduler) runTask(task *monitorTask) {
	interval := scheduleInterval(task.monitor.Schedule)

	s.runOnce(task.monitor)
	nextRun := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		wait := time.Until(nextRun)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
			nextRun = nextRun.Add(interval)
			for time.Now().After(nextRun) {
				nextRun = nextRun.Add(interval)
			}
			s.runOnce(task.monitor)
		case <-task.stopCh:
			return
		}
	}
}

// runOnce carries no deadline of its own: there is deliberately no global
// monitor-run timeout, since a slow PQL call is a stuck trigger, not a
// stuck runner. Query execution is bounded by the PQL executor's own HTTP
// client timeout; bulk alert writes and the lastFiredTime update run under
// this context and have no deadline.
func (s *Scheduler) runOnce(monitor models.Monitor) {
	ctx := context.Background()

	settings := engine.RunSettings{}
	if s.Settings != nil {
		cs := s.Settings.Current()
		settings = engine.RunSettings{
			QueryResultsMaxDatarows:   cs.QueryResultsMaxDatarows,
			QueryResultsMaxSizeBytes:  cs.QueryResultsMaxSizeBytes,
			PerResultTriggerMaxAlerts: cs.PerResultTriggerMaxAlerts,
		}
	}

	periodEnd := time.Now()
	periodStart := periodEnd.Add(-scheduleInterval(monitor.Schedule))
	executionID := uuid.New().String()

	result := s.Runner.Run(ctx, monitor, periodStart, periodEnd, false, false, executionID, settings)
	if result.Error != nil {
		s.Log.WithError(result.Error).WithField("monitor_id", monitor.ID).Error("scheduler: monitor run failed")
	}
}

func scheduleInterval(schedule models.Schedule) time.Duration {
	unit := time.Minute
	switch schedule.Unit {
	case "SECONDS":
		unit = time.Second
	case "HOURS":
		unit = time.Hour
	case "DAYS":
		unit = 24 * time.Hour
	}
	if schedule.Interval <= 0 {
		return time.Minute
	}
	return time.Duration(schedule.Interval) * unit
}
