package engine

import (
	"context"
	"time"

	"alertengine/internal/errors"
	"alertengine/internal/models"
)

// Runner executes one monitor run. Each monitor variant has its own
// implementation; MonitorRunner is the pql one.
type Runner interface {
	Run(ctx context.Context, monitor models.Monitor, periodStart, periodEnd time.Time, manual, dryRun bool, executionID string, settings RunSettings) RunResult
}

// Registry maps a monitor's variant tag to the Runner that executes it.
// Monitor variants are siblings, not subclasses: the scheduler hands every
// monitor to the registry and the registry picks the runner by tag.
type Registry struct {
	runners map[models.MonitorType]Runner
}

func NewRegistry() *Registry {
	return &Registry{runners: make(map[models.MonitorType]Runner)}
}

func (r *Registry) Register(t models.MonitorType, runner Runner) {
	r.runners[t] = runner
}

// Run dispatches to the runner registered for monitor.Type. A monitor
// whose tag has no registered runner gets a RunResult carrying a
// validation error rather than a panic, so one misfiled document can't
// take down the scheduler.
func (r *Registry) Run(ctx context.Context, monitor models.Monitor, periodStart, periodEnd time.Time, manual, dryRun bool, executionID string, settings RunSettings) RunResult {
	runner, ok := r.runners[monitor.Type]
	if !ok {
		return RunResult{
			MonitorName: monitor.Name,
			Error:       errors.NewKind(errors.KindValidation, "no runner registered for monitor type "+string(monitor.Type)),
		}
	}
	return runner.Run(ctx, monitor, periodStart, periodEnd, manual, dryRun, executionID, settings)
}
