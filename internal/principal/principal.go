// Package principal implements the scoped acquisition of a monitor's
// captured owner identity for the duration of a privileged external call
// (PQL execution, notification send). It replaces calling-user identity
// with stored-owner identity, pushed onto the context before the call and
// released on every exit path.
package principal

import (
	"context"

	"alertengine/internal/models"
)

type contextKey struct{}

var activePrincipalKey = contextKey{}

// WithMonitorPrincipal pushes the monitor's stored owner onto ctx for the
// duration of fn, guaranteeing the principal is released (by virtue of
// ctx scoping) whether fn returns an error, panics, or succeeds.
func WithMonitorPrincipal(ctx context.Context, owner models.Principal, fn func(context.Context) error) error {
	scoped := context.WithValue(ctx, activePrincipalKey, owner)
	return fn(scoped)
}

// FromContext retrieves the principal pushed by WithMonitorPrincipal, if
// any. Collaborators that need to know whose identity they are acting
// under (e.g. an audit-logging Notifier) call this instead of threading an
// extra parameter through every signature.
func FromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(activePrincipalKey).(models.Principal)
	return p, ok
}
