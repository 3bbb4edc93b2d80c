package engine

import (
	"encoding/json"
	"fmt"
	"regexp"

	"alertengine/internal/errors"
	"alertengine/internal/models"
)

// evalColumnRegex locates the identifier on the left side of an
// `eval <name> = <bool-expr>` stage in a CUSTOM trigger's fragment.
var evalColumnRegex = regexp.MustCompile(`\beval\s+([A-Za-z_]\w*)\s*=`)

const defaultPerResultMaxAlerts = 10

// Evaluate decides whether a trigger fired against a query response.
func Evaluate(trigger models.Trigger, response *models.QueryResponse) (bool, error) {
	switch trigger.ConditionType {
	case models.ConditionNumberOfResults:
		value := 0
		if trigger.Value != nil {
			value = *trigger.Value
		}
		return trigger.Op.Apply(response.Total, value), nil
	case models.ConditionCustom:
		return evaluateCustom(trigger, response)
	default:
		return false, errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: unknown condition type %q", trigger.ID, trigger.ConditionType))
	}
}

func evaluateCustom(trigger models.Trigger, response *models.QueryResponse) (bool, error) {
	match := evalColumnRegex.FindStringSubmatch(trigger.CustomFragment)
	if match == nil {
		return false, errors.NewKind(errors.KindQueryFailed, fmt.Sprintf("trigger %s: custom fragment does not produce an eval column", trigger.ID))
	}
	column := match[1]

	colIdx := -1
	for i, c := range response.Schema {
		if c.Name == column {
			colIdx = i
			break
		}
	}
	if colIdx == -1 {
		return false, errors.NewKind(errors.KindQueryFailed, fmt.Sprintf("trigger %s: eval column %q not found in response schema", trigger.ID, column))
	}

	for _, row := range response.Datarows {
		if colIdx >= len(row) {
			continue
		}
		if truthy(row[colIdx]) {
			return true, nil
		}
	}
	return false, nil
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}

// MaterializeResultSlices returns the per-alert payloads for a fired
// trigger: one slice for RESULT_SET mode, or one slice per satisfying row
// (capped at maxAlerts) for PER_RESULT mode. Oversized slices are replaced
// with a single explanatory row while schema/total/size are preserved.
func MaterializeResultSlices(trigger models.Trigger, response *models.QueryResponse, maxResultBytes int, maxAlerts int) ([]models.ResultSlice, error) {
	if maxAlerts <= 0 {
		maxAlerts = defaultPerResultMaxAlerts
	}

	switch trigger.Mode {
	case models.ModeResultSet:
		slice := models.ResultSlice{
			Schema:   response.Schema,
			Datarows: response.Datarows,
			Total:    response.Total,
			Size:     response.Size,
		}
		return []models.ResultSlice{capSize(slice, maxResultBytes)}, nil

	case models.ModePerResult:
		match, err := customMatchRows(trigger, response)
		if err != nil {
			return nil, err
		}
		slices := make([]models.ResultSlice, 0, len(match))
		for _, row := range match {
			if len(slices) >= maxAlerts {
				break
			}
			slice := models.ResultSlice{
				Schema:   response.Schema,
				Datarows: [][]interface{}{row},
				Total:    1,
				Size:     1,
			}
			slices = append(slices, capSize(slice, maxResultBytes))
		}
		return slices, nil

	default:
		return nil, errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: unknown mode %q", trigger.ID, trigger.Mode))
	}
}

// customMatchRows returns the rows whose eval column is truthy. For
// NUMBER_OF_RESULTS triggers in PER_RESULT mode every row qualifies, since
// the condition is evaluated over the aggregate total, not per row.
func customMatchRows(trigger models.Trigger, response *models.QueryResponse) ([][]interface{}, error) {
	if trigger.ConditionType != models.ConditionCustom {
		return response.Datarows, nil
	}

	match := evalColumnRegex.FindStringSubmatch(trigger.CustomFragment)
	if match == nil {
		return nil, errors.NewKind(errors.KindQueryFailed, fmt.Sprintf("trigger %s: custom fragment does not produce an eval column", trigger.ID))
	}
	column := match[1]

	colIdx := -1
	for i, c := range response.Schema {
		if c.Name == column {
			colIdx = i
			break
		}
	}
	if colIdx == -1 {
		return nil, errors.NewKind(errors.KindQueryFailed, fmt.Sprintf("trigger %s: eval column %q not found in response schema", trigger.ID, column))
	}

	var rows [][]interface{}
	for _, row := range response.Datarows {
		if colIdx < len(row) && truthy(row[colIdx]) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func capSize(slice models.ResultSlice, maxBytes int) models.ResultSlice {
	if maxBytes <= 0 {
		return slice
	}
	encoded, err := json.Marshal(slice.Datarows)
	if err != nil || len(encoded) <= maxBytes {
		return slice
	}
	slice.Datarows = [][]interface{}{
		{"The query results were too large and thus excluded"},
	}
	return slice
}
