// Package api exposes the console's HTTP control surface over the session
// runner fleet: session creation, detail views with field-mask selection,
// notification delivery, and abort.
package api

import (
	"context"

	"github.com/omnilab/atsconsole/internal/session"
)

// SessionManager is the façade the API handlers drive; it decouples the
// HTTP layer from however the caller wires together the session registry,
// persistence, plugins, and runners.
type SessionManager interface {
	CreateSession(ctx context.Context, cfg session.Config) (session.ID, error)
	GetSession(id session.ID, mask *session.FieldMask) (session.Detail, bool)
	NotifySession(id session.ID, payload any) (accepted bool, found bool)
	AbortSession(id session.ID) bool
}
