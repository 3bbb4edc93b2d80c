// Package notifier declares the external notification collaborator and
// ships one reference webhook implementation. Notification delivery is
// at-least-once: a caller that times out waiting on Notify must assume the
// send may still land and retry idempotently at the action level.
package notifier

import (
	"context"

	"alertengine/internal/models"
)

// Notifier dispatches a rendered subject/body to a destination on behalf of
// a monitor's captured principal.
type Notifier interface {
	Notify(ctx context.Context, actionID, subject, body, destinationID string, principal models.Principal) error
}
