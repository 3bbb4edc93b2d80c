// Package query composes the final PQL string a monitor's triggers execute.
// It never parses PQL; it only performs the three strictly-ordered
// string rewrites the engine needs: a time filter, an optional custom
// condition, and a row cap.
package query

import (
	"fmt"
	"strings"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05"

// ComposeTimeFiltered injects a time-range predicate as the first pipeline
// stage after `source = …` when a lookback window is configured. If the
// query contains at least one pipe, the predicate is inserted immediately
// after the first pipe; otherwise it is appended. Timestamps render in UTC
// using the fixed `yyyy-MM-dd HH:mm:ss` format.
//
// Passing through unchanged when no lookback window is configured is the
// caller's responsibility (the runner only calls this when lookBackWindow is set).
func ComposeTimeFiltered(q string, lookbackStart, periodEnd time.Time, timestampField string) string {
	lower := lookbackStart.UTC().Format(timestampFormat)
	upper := periodEnd.UTC().Format(timestampFormat)
	predicate := fmt.Sprintf("where %s > TIMESTAMP('%s') and %s < TIMESTAMP('%s')", timestampField, lower, timestampField, upper)

	if idx := strings.Index(q, "|"); idx >= 0 {
		return q[:idx+1] + " " + predicate + " |" + q[idx+1:]
	}
	return q + " | " + predicate
}

// ComposeWithCustomCondition appends a trigger's custom PQL fragment
// verbatim as a new pipeline stage.
func ComposeWithCustomCondition(q, fragment string) string {
	return q + " | " + fragment
}

// Cap appends a `head <maxRows>` stage, bounding the final output row count.
func Cap(q string, maxRows int) string {
	return fmt.Sprintf("%s | head %d", q, maxRows)
}
