package notifier

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"

	"alertengine/internal/models"
)

// templateVarRegex matches the `${var}` placeholder syntax actions are
// authored with; renderTemplate rewrites it to Go's `{{.var}}` before
// handing the string to text/template.
var templateVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// TriggerExecutionContext is the data a fired trigger's subject/message
// templates render against.
type TriggerExecutionContext struct {
	Monitor models.Monitor
	Trigger models.Trigger
	Error   error
	Slice   models.ResultSlice
}

// ToMap flattens the context into the field names templates reference.
func (c TriggerExecutionContext) ToMap() map[string]interface{} {
	errMsg := ""
	if c.Error != nil {
		errMsg = c.Error.Error()
	}
	return map[string]interface{}{
		"monitor_name": c.Monitor.Name,
		"monitor_id":   c.Monitor.ID,
		"trigger_name": c.Trigger.Name,
		"trigger_id":   c.Trigger.ID,
		"severity":     string(c.Trigger.Severity),
		"error":        errMsg,
		"total":        c.Slice.Total,
	}
}

func convertTemplateDelimiters(tpl string) string {
	return templateVarRegex.ReplaceAllString(tpl, "{{.$1}}")
}

// RenderTemplate converts `${var}` delimiters to `{{.var}}` and executes
// the result against ctx. An empty rendered output is the caller's cue to
// fail the action with a structured error; the dispatch call site enforces
// that, not this function.
func RenderTemplate(tpl string, ctx TriggerExecutionContext) (string, error) {
	converted := convertTemplateDelimiters(tpl)
	t, err := template.New("action").Parse(converted)
	if err != nil {
		return "", fmt.Errorf("parsing action template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx.ToMap()); err != nil {
		return "", fmt.Errorf("rendering action template: %w", err)
	}
	return buf.String(), nil
}
