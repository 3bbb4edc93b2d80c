package engine

import (
	"context"
	"time"

	"alertengine/internal/clock"
	"alertengine/internal/errors"
	"alertengine/internal/metrics"
	"alertengine/internal/models"
	"alertengine/internal/notifier"
	"alertengine/internal/pql"
	"alertengine/internal/principal"
	"alertengine/internal/query"

	"github.com/sirupsen/logrus"
)

// AlertStore is the subset of internal/alertstore the runner needs.
type AlertStore interface {
	EnsureCollections(ctx context.Context) error
	SaveAlerts(ctx context.Context, alerts []models.Alert, monitor models.Monitor) error
}

// MonitorStore is the subset of internal/monitorstore the runner needs.
type MonitorStore interface {
	UpdateLastFiredTimes(ctx context.Context, monitor *models.Monitor) error
}

// RunSettings carries the hot-reloadable cluster settings the runner and
// its collaborators consult each run.
type RunSettings struct {
	QueryResultsMaxDatarows   int
	QueryResultsMaxSizeBytes  int
	PerResultTriggerMaxAlerts int
}

// TriggerResult is the per-trigger outcome recorded in a RunResult.
type TriggerResult struct {
	Fired     bool
	Throttled bool
	Error     error
}

// RunResult is what MonitorRunner.Run returns to the API caller.
type RunResult struct {
	MonitorName    string
	Error          error
	TriggerResults map[string]TriggerResult
	TriggerRawData map[string]*models.QueryResponse
}

// MonitorRunner executes one pql monitor run: throttle check, query
// composition, execution under the monitor's principal, evaluation, alert
// materialization and persistence, notification dispatch, and a final
// lastFiredTime write when anything fired.
type MonitorRunner struct {
	Executor   pql.Executor
	Notifier   notifier.Notifier
	AlertStore AlertStore
	Monitors   MonitorStore
	Clock      clock.Clock
	Log        *logrus.Logger
}

func NewMonitorRunner(executor pql.Executor, notify notifier.Notifier, alerts AlertStore, monitors MonitorStore, c clock.Clock, log *logrus.Logger) *MonitorRunner {
	if c == nil {
		c = clock.RealClock{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MonitorRunner{Executor: executor, Notifier: notify, AlertStore: alerts, Monitors: monitors, Clock: c, Log: log}
}

// Run executes monitor over [periodStart, periodEnd]. manual bypasses
// throttling; dryRun suppresses notification dispatch. executionID links
// every alert this run produces back to the run itself.
func (r *MonitorRunner) Run(ctx context.Context, monitor models.Monitor, periodStart, periodEnd time.Time, manual, dryRun bool, executionID string, settings RunSettings) RunResult {
	start := time.Now()
	result := RunResult{
		MonitorName:    monitor.Name,
		TriggerResults: make(map[string]TriggerResult, len(monitor.Triggers)),
		TriggerRawData: make(map[string]*models.QueryResponse, len(monitor.Triggers)),
	}
	defer func() {
		metrics.MonitorRunDuration.WithLabelValues(monitor.Name).Observe(time.Since(start).Seconds())
		status := "ok"
		if result.Error != nil {
			status = "error"
		}
		metrics.MonitorRunsTotal.WithLabelValues(monitor.Name, status).Inc()
	}()

	if monitor.ID == "" {
		result.Error = errors.NewKind(errors.KindValidation, "monitor identity is not set")
		return result
	}
	if monitor.Type != models.MonitorTypePQL {
		result.Error = errors.NewKind(errors.KindValidation, "monitor "+monitor.ID+" is not a pql monitor; no runner for type "+string(monitor.Type))
		return result
	}

	if err := r.AlertStore.EnsureCollections(ctx); err != nil {
		result.Error = err
		return result
	}

	now := r.Clock.Now()

	timeFilteredQuery := monitor.Query
	if monitor.LookBackWindowMinutes != nil && *monitor.LookBackWindowMinutes > 0 {
		lookbackStart := periodEnd.Add(-time.Duration(*monitor.LookBackWindowMinutes) * time.Minute)
		timeFilteredQuery = query.ComposeTimeFiltered(monitor.Query, lookbackStart, periodEnd, monitor.TimestampField)
	}

	anyFired := false

	for _, trigger := range monitor.Triggers {
		triggerResult, raw := r.runTrigger(ctx, monitor, trigger, timeFilteredQuery, manual, dryRun, executionID, now, settings)
		result.TriggerResults[trigger.ID] = triggerResult
		if raw != nil {
			result.TriggerRawData[trigger.ID] = raw
		}
		if triggerResult.Fired {
			anyFired = true
		}
	}

	if anyFired {
		if err := r.Monitors.UpdateLastFiredTimes(ctx, &monitor); err != nil {
			r.Log.WithError(err).WithField("monitor_id", monitor.ID).Error("failed to persist trigger lastFiredTime")
			result.Error = err
		}
	}

	return result
}

func (r *MonitorRunner) runTrigger(ctx context.Context, monitor models.Monitor, trigger models.Trigger, timeFilteredQuery string, manual, dryRun bool, executionID string, now time.Time, settings RunSettings) (TriggerResult, *models.QueryResponse) {
	evalStart := time.Now()
	defer func() {
		metrics.TriggerEvaluationDuration.WithLabelValues(monitor.Name, trigger.Name).Observe(time.Since(evalStart).Seconds())
	}()

	if IsThrottled(trigger, now, manual) {
		metrics.TriggersThrottledTotal.WithLabelValues(monitor.Name, trigger.Name).Inc()
		return TriggerResult{Throttled: true}, nil
	}

	finalQuery := timeFilteredQuery
	if trigger.ConditionType == models.ConditionCustom {
		finalQuery = query.ComposeWithCustomCondition(finalQuery, trigger.CustomFragment)
	}
	finalQuery = query.Cap(finalQuery, maxDatarows(settings))

	var response *models.QueryResponse
	execErr := principal.WithMonitorPrincipal(ctx, monitor.Owner, func(scoped context.Context) error {
		var err error
		response, err = r.Executor.Execute(scoped, finalQuery, nil)
		return err
	})

	if execErr != nil {
		r.persistErrorAlert(ctx, trigger, monitor, monitor.Query, execErr, executionID, now)
		return TriggerResult{Error: execErr}, nil
	}

	fired, evalErr := Evaluate(trigger, response)
	if evalErr != nil {
		r.persistErrorAlert(ctx, trigger, monitor, monitor.Query, evalErr, executionID, now)
		return TriggerResult{Error: evalErr}, response
	}
	if !fired {
		return TriggerResult{Fired: false}, response
	}

	slices, sliceErr := MaterializeResultSlices(trigger, response, settings.QueryResultsMaxSizeBytes, settings.PerResultTriggerMaxAlerts)
	if sliceErr != nil {
		r.persistErrorAlert(ctx, trigger, monitor, monitor.Query, sliceErr, executionID, now)
		return TriggerResult{Error: sliceErr}, response
	}

	// Alerts record the monitor's original, unrewritten query; the
	// time-filtered/capped finalQuery is only what the executor ran.
	alerts, buildErr := BuildAlerts(trigger, monitor, monitor.Query, slices, executionID, now)
	if buildErr != nil {
		r.persistErrorAlert(ctx, trigger, monitor, monitor.Query, buildErr, executionID, now)
		return TriggerResult{Error: buildErr}, response
	}

	metrics.TriggersFiredTotal.WithLabelValues(monitor.Name, trigger.Name).Inc()

	if !dryRun {
		r.dispatch(ctx, monitor, trigger, slices)
	}

	trigger.LastFiredTime = &now
	for i := range monitor.Triggers {
		if monitor.Triggers[i].ID == trigger.ID {
			monitor.Triggers[i].LastFiredTime = &now
		}
	}

	if err := r.AlertStore.SaveAlerts(ctx, alerts, monitor); err != nil {
		return TriggerResult{Fired: true, Error: err}, response
	}
	for _, a := range alerts {
		metrics.AlertsWrittenTotal.WithLabelValues(monitor.Name, string(a.Severity)).Inc()
	}

	return TriggerResult{Fired: true}, response
}

func (r *MonitorRunner) persistErrorAlert(ctx context.Context, trigger models.Trigger, monitor models.Monitor, query string, cause error, executionID string, now time.Time) {
	alert := BuildErrorAlert(trigger, monitor, query, cause, executionID, now)
	if err := r.AlertStore.SaveAlerts(ctx, []models.Alert{alert}, monitor); err != nil {
		r.Log.WithError(err).WithField("monitor_id", monitor.ID).WithField("trigger_id", trigger.ID).Error("failed to persist error alert")
	}
}

func (r *MonitorRunner) dispatch(ctx context.Context, monitor models.Monitor, trigger models.Trigger, slices []models.ResultSlice) {
	for _, slice := range slices {
		tplCtx := notifier.TriggerExecutionContext{Monitor: monitor, Trigger: trigger, Slice: slice}
		for _, action := range trigger.Actions {
			subject, err := notifier.RenderTemplate(action.SubjectTemplate, tplCtx)
			if err != nil {
				r.Log.WithError(err).WithField("action_id", action.ID).Error("failed to render action subject")
				continue
			}
			body, err := notifier.RenderTemplate(action.MessageTemplate, tplCtx)
			if err != nil {
				r.Log.WithError(err).WithField("action_id", action.ID).Error("failed to render action message")
				continue
			}
			if body == "" {
				actionErr := errors.NewKind(errors.KindValidation, "action "+action.ID+": rendered message is empty")
				metrics.NotificationsSentTotal.WithLabelValues(monitor.Name, "error").Inc()
				r.Log.WithError(actionErr).WithField("action_id", action.ID).Error("notification action failed")
				continue
			}

			err = principal.WithMonitorPrincipal(ctx, monitor.Owner, func(scoped context.Context) error {
				return r.Notifier.Notify(scoped, action.ID, subject, body, action.DestinationID, monitor.Owner)
			})
			if err != nil {
				metrics.NotificationsSentTotal.WithLabelValues(monitor.Name, "error").Inc()
				r.Log.WithError(err).WithField("action_id", action.ID).Error("notification dispatch failed")
				continue
			}
			metrics.NotificationsSentTotal.WithLabelValues(monitor.Name, "ok").Inc()
		}
	}
}

func maxDatarows(settings RunSettings) int {
	if settings.QueryResultsMaxDatarows <= 0 {
		return 10000
	}
	return settings.QueryResultsMaxDatarows
}
