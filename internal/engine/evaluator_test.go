package engine

import (
	"strings"
	"testing"

	"alertengine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestEvaluate_NumberOfResults(t *testing.T) {
	trigger := models.Trigger{
		ID:            "t1",
		ConditionType: models.ConditionNumberOfResults,
		Op:            models.CompGT,
		Value:         intPtr(0),
	}

	fired, err := Evaluate(trigger, &models.QueryResponse{Total: 3})
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = Evaluate(trigger, &models.QueryResponse{Total: 0})
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEvaluate_Custom(t *testing.T) {
	trigger := models.Trigger{
		ID:             "t2",
		ConditionType:  models.ConditionCustom,
		CustomFragment: "eval flag = number > 7",
	}

	response := &models.QueryResponse{
		Schema: []models.Column{{Name: "name", Type: "string"}, {Name: "flag", Type: "boolean"}},
		Datarows: [][]interface{}{
			{"abc", false},
			{"def", true},
			{"ghi", false},
		},
		Total: 3,
	}

	fired, err := Evaluate(trigger, response)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEvaluate_CustomColumnMissing(t *testing.T) {
	trigger := models.Trigger{
		ID:             "t3",
		ConditionType:  models.ConditionCustom,
		CustomFragment: "eval flag = number > 7",
	}
	response := &models.QueryResponse{
		Schema: []models.Column{{Name: "name", Type: "string"}},
	}

	_, err := Evaluate(trigger, response)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "eval column"))
}

func TestMaterializeResultSlices_ResultSet(t *testing.T) {
	trigger := models.Trigger{ID: "t1", Mode: models.ModeResultSet}
	response := &models.QueryResponse{
		Schema:   []models.Column{{Name: "name", Type: "string"}},
		Datarows: [][]interface{}{{"abc"}, {"def"}, {"ghi"}},
		Total:    3,
	}

	slices, err := MaterializeResultSlices(trigger, response, 0, 10)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, 3, slices[0].Total)
	assert.Len(t, slices[0].Datarows, 3)
}

func TestMaterializeResultSlices_PerResult(t *testing.T) {
	trigger := models.Trigger{
		ID:             "t2",
		Mode:           models.ModePerResult,
		ConditionType:  models.ConditionCustom,
		CustomFragment: "eval flag = number > 7",
	}
	response := &models.QueryResponse{
		Schema: []models.Column{{Name: "name", Type: "string"}, {Name: "flag", Type: "boolean"}},
		Datarows: [][]interface{}{
			{"abc", false},
			{"def", true},
			{"ghi", false},
		},
		Total: 3,
	}

	slices, err := MaterializeResultSlices(trigger, response, 0, 10)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, 1, slices[0].Total)
	assert.Equal(t, 1, slices[0].Size)
	assert.Equal(t, "def", slices[0].Datarows[0][0])
}

func TestMaterializeResultSlices_PerResultCapsAtMaxAlerts(t *testing.T) {
	trigger := models.Trigger{
		ID:             "t3",
		Mode:           models.ModePerResult,
		ConditionType:  models.ConditionCustom,
		CustomFragment: "eval flag = number > 0",
	}
	rows := make([][]interface{}, 0, 15)
	for i := 0; i < 15; i++ {
		rows = append(rows, []interface{}{i, true})
	}
	response := &models.QueryResponse{
		Schema:   []models.Column{{Name: "n", Type: "int"}, {Name: "flag", Type: "boolean"}},
		Datarows: rows,
		Total:    15,
	}

	slices, err := MaterializeResultSlices(trigger, response, 0, 10)
	require.NoError(t, err)
	assert.Len(t, slices, 10)
}

func TestMaterializeResultSlices_SizeCapped(t *testing.T) {
	trigger := models.Trigger{ID: "t4", Mode: models.ModeResultSet}
	response := &models.QueryResponse{
		Schema:   []models.Column{{Name: "name", Type: "string"}},
		Datarows: [][]interface{}{{"a very long string that pushes the serialized size over a tiny cap"}},
		Total:    1,
	}

	slices, err := MaterializeResultSlices(trigger, response, 10, 10)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, 1, slices[0].Total)
	require.Len(t, slices[0].Datarows, 1)
	assert.Contains(t, slices[0].Datarows[0][0].(string), "too large")
}
