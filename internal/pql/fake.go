package pql

import (
	"context"
	"strings"

	"alertengine/internal/models"
)

// FakeExecutor is an in-memory Executor used by tests and by local
// development wiring that has no real search cluster to talk to. Responses
// and FailOn are keyed by substrings: a query matches an entry when it
// contains the key (FailOn is checked first, and an unmatched query gets an
// empty response). FailOn lets a test force matching queries to error,
// simulating an executor-side failure.
type FakeExecutor struct {
	Responses map[string]*models.QueryResponse
	FailOn    map[string]error
	Calls     []string
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		Responses: make(map[string]*models.QueryResponse),
		FailOn:    make(map[string]error),
	}
}

func (f *FakeExecutor) Execute(ctx context.Context, query string, params map[string]interface{}) (*models.QueryResponse, error) {
	f.Calls = append(f.Calls, query)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for substr, err := range f.FailOn {
		if strings.Contains(query, substr) {
			return nil, err
		}
	}
	for substr, resp := range f.Responses {
		if strings.Contains(query, substr) {
			return resp, nil
		}
	}
	return &models.QueryResponse{Schema: nil, Datarows: nil, Total: 0, Size: 0}, nil
}
