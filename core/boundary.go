package core

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/router"
	"github.com/scoutme/client/services"
)

// ErrorBoundary turns API failures into session and navigation changes.
// Register Handle as an ApiClient error listener.
type ErrorBoundary struct {
	session *SessionStore
	nav     Navigator
	logger  *slog.Logger
}

func NewErrorBoundary(session *SessionStore, nav Navigator, logger *slog.Logger) *ErrorBoundary {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ErrorBoundary{session: session, nav: nav, logger: logger.With("component", "boundary")}
}

// Handle reacts to one failed request:
//   - authentication expired: clear the session, then go to login?expired=true
//     when the request was authenticated
//   - forbidden: go home
//   - anything else is only logged
//
// A 401 on a request sent without a token (wrong password on login) clears
// the session but stays on the current page instead of redirecting.
func (b *ErrorBoundary) Handle(ctx context.Context, err *services.APIError) {
	switch err.Kind {
	case services.KindAuthenticationExpired:
		b.session.ClearAuth()
		if !err.Authenticated {
			// Wrong credentials on /login, not an expired session.
			return
		}
		b.logger.InfoContext(ctx, "session expired", "url", err.URL)
		b.push(router.Location{Name: router.RouteLogin, Query: url.Values{"expired": {"true"}}})
	case services.KindForbidden:
		b.logger.WarnContext(ctx, "access forbidden", "url", err.URL)
		b.push(router.Location{Name: router.RouteHome})
	default:
		b.logger.DebugContext(ctx, "api error", "kind", string(err.Kind), "url", err.URL)
	}
}

func (b *ErrorBoundary) push(loc router.Location) {
	if b.nav == nil {
		return
	}
	if _, err := b.nav.Push(loc); err != nil {
		b.logger.Warn("navigation failed", "to", loc.Name, "error", err)
	}
}
