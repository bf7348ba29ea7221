package router

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/scoutme/client/internal/auth"
)

// ErrUnknownRole is returned when a signed-in user has a role outside the
// known set, so no dashboard can be chosen for them.
var ErrUnknownRole = auth.ErrUnknownRole

// SessionState is the part of the session the guard reads.
type SessionState interface {
	IsAuthenticated() bool
	CurrentRole() auth.Role
}

// TitleSetter receives the page title of every navigation attempt.
type TitleSetter interface {
	SetTitle(title string)
}

// DecisionKind is the outcome of one guard check.
type DecisionKind int

const (
	Allow DecisionKind = iota
	RedirectLogin
	RedirectDashboard
	Reject
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// Decision is what the guard tells the router to do.
type Decision struct {
	Kind DecisionKind
	// Target is set for redirects.
	Target Location
	// Err is set for Reject.
	Err error
}

// DashboardFor maps a role to its dashboard route. It is total over the
// known roles and fails on anything else.
func DashboardFor(role auth.Role) (string, error) {
	switch role {
	case auth.RoleJoueur:
		return RouteDashboardJoueur, nil
	case auth.RoleRecruteur:
		return RouteDashboardRecruteur, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	session SessionState
	titles  TitleSetter
}

// NewGuard creates a guard. titles may be nil.
func NewGuard(session SessionState, titles TitleSetter) *Guard {
	return &Guard{session: session, titles: titles}
}

// Check sets the page title for to, then returns exactly one decision:
//  1. auth required and signed out: login, with redirect=<to's full path>
//  2. auth and a role required, role differs: the user's dashboard
//  3. guest-only and signed in: the user's dashboard
//  4. otherwise allow
func (g *Guard) Check(to Resolved) Decision {
	title := to.Route.Meta.Title
	if title == "" {
		title = DefaultTitle
	}
	if g.titles != nil {
		g.titles.SetTitle(title)
	}

	meta := to.Route.Meta
	authenticated := g.session.IsAuthenticated()

	if meta.RequiresAuth {
		if !authenticated {
			return Decision{
				Kind: RedirectLogin,
				Target: Location{
					Name:  RouteLogin,
					Query: url.Values{"redirect": {to.FullPath()}},
				},
			}
		}
		if meta.RequiresRole != "" && g.session.CurrentRole() != meta.RequiresRole {
			return g.toDashboard()
		}
	}

	if meta.Guest && authenticated {
		return g.toDashboard()
	}

	return Decision{Kind: Allow}
}

func (g *Guard) toDashboard() Decision {
	role := g.session.CurrentRole()
	name, err := DashboardFor(role)
	if err != nil {
		return Decision{Kind: Reject, Err: err}
	}
	return Decision{Kind: RedirectDashboard, Target: Location{Name: name}}
}

// IsUnknownRole reports whether err comes from an unmapped role.
func IsUnknownRole(err error) bool {
	return errors.Is(err, ErrUnknownRole)
}
