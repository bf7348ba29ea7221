package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/metrics"
)

// MaxRedirects bounds the guard redirects followed by one navigation.
const MaxRedirects = 10

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrMissingParam  = errors.New("missing route parameter")
	ErrRedirectLoop  = errors.New("too many guard redirects")
	ErrNoHistory     = errors.New("no previous route")
)

// Location is a navigation target, either by route name (with Params) or by
// Path. Path may carry its own query string, merged with Query.
type Location struct {
	Name   string
	Path   string
	Params map[string]string
	Query  url.Values
}

// Resolved is a location matched against the route table.
type Resolved struct {
	Route  Route
	Path   string
	Params map[string]string
	Query  url.Values
}

// FullPath returns the path followed by the encoded query, if any.
func (r Resolved) FullPath() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// NavigationError is returned when the guard rejects a navigation.
type NavigationError struct {
	To  string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s rejected: %v", e.To, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithMetrics counts guard decisions.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Router) { r.metrics = m }
}

// Router owns the route table, the navigation history and the guard.
type Router struct {
	routes    []Route
	byName    map[string]Route
	byPattern map[string]Route
	mux       *chi.Mux
	guard     *Guard
	logger    *slog.Logger
	metrics   *metrics.Collector

	mu        sync.Mutex
	current   *Resolved
	history   []Resolved
	listeners []func(Resolved)
}

// New validates routes and builds the matcher. Names must be unique and a
// catch-all route, if any, must come last.
func New(routes []Route, guard *Guard, opts ...Option) (*Router, error) {
	r := &Router{
		routes:    append([]Route(nil), routes...),
		byName:    make(map[string]Route, len(routes)),
		byPattern: make(map[string]Route, len(routes)),
		mux:       chi.NewMux(),
		guard:     guard,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")

	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for i, route := range r.routes {
		if route.Name == "" {
			return nil, fmt.Errorf("route %d (%s) has no name", i, route.Path)
		}
		if _, dup := r.byName[route.Name]; dup {
			return nil, fmt.Errorf("duplicate route name %q", route.Name)
		}
		if !strings.HasPrefix(route.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", route.Name)
		}
		if route.Path == CatchAllPath && i != len(r.routes)-1 {
			return nil, fmt.Errorf("route %q: catch-all must be the last route", route.Name)
		}
		pattern := chiPattern(route.Path)
		if _, dup := r.byPattern[pattern]; dup {
			return nil, fmt.Errorf("route %q: duplicate path %s", route.Name, route.Path)
		}
		r.byName[route.Name] = route
		r.byPattern[pattern] = route
		r.mux.Get(pattern, noop)
	}
	return r, nil
}

// chiPattern turns "/annonces/:id/edit" into "/annonces/{id}/edit".
func chiPattern(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// Routes returns the route table in declaration order.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Lookup returns the route with the given name.
func (r *Router) Lookup(name string) (Route, bool) {
	route, ok := r.byName[name]
	return route, ok
}

// Resolve matches loc against the route table without running the guard.
func (r *Router) Resolve(loc Location) (Resolved, error) {
	query := url.Values{}
	for k, vs := range loc.Query {
		query[k] = append([]string(nil), vs...)
	}

	if loc.Name != "" {
		route, ok := r.byName[loc.Name]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: name %q", ErrRouteNotFound, loc.Name)
		}
		path, err := buildPath(route.Path, loc.Params)
		if err != nil {
			return Resolved{}, fmt.Errorf("route %q: %w", route.Name, err)
		}
		return Resolved{Route: route, Path: path, Params: copyParams(loc.Params), Query: query}, nil
	}

	u, err := url.Parse(loc.Path)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid path %q: %w", loc.Path, err)
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	rctx := chi.NewRouteContext()
	pattern := r.mux.Find(rctx, http.MethodGet, path)
	route, ok := r.byPattern[pattern]
	if pattern == "" || !ok {
		return Resolved{}, fmt.Errorf("%w: path %q", ErrRouteNotFound, path)
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		v, err := url.PathUnescape(rctx.URLParams.Values[i])
		if err != nil {
			return Resolved{}, fmt.Errorf("invalid path %q: %w", loc.Path, err)
		}
		params[key] = v
	}
	return Resolved{Route: route, Path: path, Params: params, Query: query}, nil
}

func buildPath(pattern string, params map[string]string) (string, error) {
	if pattern == CatchAllPath {
		return "/" + strings.TrimLeft(params["*"], "/"), nil
	}
	segments := strings.Split(pattern, "/")
	for i, s := range segments {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		v, ok := params[s[1:]]
		if !ok || v == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, s[1:])
		}
		segments[i] = url.PathEscape(v)
	}
	return strings.Join(segments, "/"), nil
}

func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// OnChange registers a listener called after every committed navigation.
func (r *Router) OnChange(fn func(Resolved)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Current returns the committed route, if any navigation succeeded yet.
func (r *Router) Current() (Resolved, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Resolved{}, false
	}
	return *r.current, true
}

// Push navigates to loc and records the previous route in the history.
func (r *Router) Push(loc Location) (Resolved, error) {
	return r.navigate(loc, true)
}

// Replace navigates to loc without recording a history entry.
func (r *Router) Replace(loc Location) (Resolved, error) {
	return r.navigate(loc, false)
}

// Back returns to the previous route. The guard runs again, so a page that
// is no longer reachable redirects like any other navigation.
func (r *Router) Back() (Resolved, error) {
	r.mu.Lock()
	if len(r.history) == 0 {
		r.mu.Unlock()
		return Resolved{}, ErrNoHistory
	}
	prev := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	r.mu.Unlock()

	return r.navigate(Location{Path: prev.FullPath()}, false)
}

func (r *Router) navigate(loc Location, push bool) (Resolved, error) {
	target, err := r.Resolve(loc)
	if err != nil {
		return Resolved{}, err
	}

	if cur, ok := r.Current(); ok && cur.FullPath() == target.FullPath() {
		return cur, nil
	}

	requested := target.FullPath()
	for hops := 0; ; hops++ {
		if hops > MaxRedirects {
			r.logger.Error("navigation aborted", "to", requested, "error", ErrRedirectLoop)
			return Resolved{}, fmt.Errorf("%w: from %s", ErrRedirectLoop, requested)
		}

		d := r.guard.Check(target)
		r.metrics.Navigation(d.Kind.String())

		switch d.Kind {
		case Allow:
			if cur, ok := r.Current(); ok && cur.FullPath() == target.FullPath() {
				return cur, nil
			}
			r.commit(target, push)
			return target, nil
		case Reject:
			r.logger.Warn("navigation rejected", "to", target.FullPath(), "error", d.Err)
			return Resolved{}, &NavigationError{To: target.FullPath(), Err: d.Err}
		default:
			next, err := r.Resolve(d.Target)
			if err != nil {
				return Resolved{}, err
			}
			r.logger.Info("navigation redirected", "from", target.FullPath(), "to", next.FullPath(), "decision", d.Kind.String())
			target = next
		}
	}
}

func (r *Router) commit(target Resolved, push bool) {
	r.mu.Lock()
	if push && r.current != nil {
		r.history = append(r.history, *r.current)
	}
	r.current = &target
	listeners := make([]func(Resolved), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	r.logger.Debug("navigated", "route", target.Route.Name, "path", target.FullPath())
	for _, fn := range listeners {
		fn(target)
	}
}
