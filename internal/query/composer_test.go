package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComposeTimeFiltered_InsertsAfterFirstPipe(t *testing.T) {
	start := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 31, 11, 0, 0, 0, time.UTC)

	got := ComposeTimeFiltered("source=logs | stats count()", start, end, "@timestamp")

	assert.Equal(t, "source=logs | where @timestamp > TIMESTAMP('2026-07-31 10:00:00') and @timestamp < TIMESTAMP('2026-07-31 11:00:00') | stats count()", got)
}

func TestComposeTimeFiltered_AppendsWhenNoPipe(t *testing.T) {
	start := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 31, 11, 0, 0, 0, time.UTC)

	got := ComposeTimeFiltered("source=logs", start, end, "@timestamp")

	assert.Equal(t, "source=logs | where @timestamp > TIMESTAMP('2026-07-31 10:00:00') and @timestamp < TIMESTAMP('2026-07-31 11:00:00')", got)
}

func TestComposeWithCustomCondition(t *testing.T) {
	got := ComposeWithCustomCondition("source=logs", "eval flag = number > 7")
	assert.Equal(t, "source=logs | eval flag = number > 7", got)
}

func TestCap(t *testing.T) {
	got := Cap("source=logs", 100)
	assert.Equal(t, "source=logs | head 100", got)
}

// TestOrdering checks that applying all three stages never rewrites a
// substring of the original query, only extends it.
func TestOrdering(t *testing.T) {
	start := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 31, 11, 0, 0, 0, time.UTC)

	original := "source=logs"
	q := ComposeTimeFiltered(original, start, end, "@timestamp")
	q = ComposeWithCustomCondition(q, "eval flag = number > 7")
	q = Cap(q, 50)

	assert.Contains(t, q, "source=logs")
	assert.True(t, len(q) > len(original))
	assert.Contains(t, q, "eval flag = number > 7")
	assert.Contains(t, q, "head 50")
}
