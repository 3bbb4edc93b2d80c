// Package pql declares the external PQL query executor collaborator. The
// engine never parses PQL beyond the narrow eval-column regex in
// internal/engine/evaluator.go; syntax and semantics are the executor's
// responsibility.
package pql

import (
	"context"

	"alertengine/internal/models"
)

// Executor runs a composed PQL query under the caller's principal context
// and cancellation signal.
type Executor interface {
	Execute(ctx context.Context, query string, params map[string]interface{}) (*models.QueryResponse, error)
}
