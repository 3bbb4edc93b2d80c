package notifier

import (
	"testing"

	"alertengine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_ConvertsDollarBraceDelimiters(t *testing.T) {
	ctx := TriggerExecutionContext{
		Monitor: models.Monitor{ID: "m1", Name: "disk usage"},
		Trigger: models.Trigger{ID: "t1", Name: "high usage", Severity: models.SeverityCritical},
		Slice:   models.ResultSlice{Total: 3},
	}

	got, err := RenderTemplate("Monitor ${monitor_name} trigger ${trigger_name} fired ${total} times at ${severity}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Monitor disk usage trigger high usage fired 3 times at CRITICAL", got)
}

func TestRenderTemplate_EmptyOutput(t *testing.T) {
	ctx := TriggerExecutionContext{}
	got, err := RenderTemplate("", ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
