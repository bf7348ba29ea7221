package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/metrics"
	"github.com/scoutme/client/internal/types"
	"github.com/scoutme/client/router"
	"github.com/scoutme/client/services"
)

// Messages shown to the user when the backend gives none.
const (
	MsgCheckFields  = "Veuillez vérifier les champs."
	MsgGenericError = "Une erreur est survenue."
	MsgUnknownRole  = "Rôle utilisateur inconnu."
)

// Session event names, as counted by metrics.
const (
	EventLogin       = "login"
	EventLoginFailed = "login_failed"
	EventRegister    = "register"
	EventRegFailed   = "register_failed"
	EventLogout      = "logout"
	EventCleared     = "cleared"
	EventRefreshed   = "refreshed"
	EventRehydrated  = "rehydrated"
)

// Navigator is the part of the router the store needs.
type Navigator interface {
	Push(loc router.Location) (router.Resolved, error)
}

// Session is a copy of the store state.
type Session struct {
	User             *auth.User
	Token            string
	Loading          bool
	Error            string
	ValidationErrors map[string][]string
}

// IsAuthenticated is true when both a token and a user are present.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *SessionStore) { s.logger = logger }
}

func WithStoreMetrics(m *metrics.Collector) StoreOption {
	return func(s *SessionStore) { s.metrics = m }
}

// WithClock overrides the time used to check token expiry at rehydration.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// SessionStore holds the authenticated user and token, persists them to
// Storage and drives navigation after login, registration and logout.
type SessionStore struct {
	service auth.Service
	storage Storage
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu               sync.Mutex
	nav              Navigator
	user             *auth.User
	token            string
	inFlight         int
	lastError        string
	validationErrors map[string][]string
	listeners        []func(Session)
}

// NewSessionStore creates the store and rehydrates it from storage.
func NewSessionStore(service auth.Service, storage Storage, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		service:          service,
		storage:          storage,
		logger:           logging.Discard(),
		now:              time.Now,
		validationErrors: map[string][]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.rehydrate()
	return s
}

func (s *SessionStore) rehydrate() {
	token, err := s.storage.Get(TokenKey)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		s.logger.Warn("failed to read stored token", "error", err)
	}
	if token != "" && tokenExpired(token, s.now()) {
		s.logger.Info("stored token expired, dropping session")
		s.removeKeys()
		return
	}

	raw, err := s.storage.Get(UserKey)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		s.logger.Warn("failed to read stored user", "error", err)
	}
	var user *auth.User
	if raw != "" {
		var u auth.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Warn("stored user is corrupt, dropping session", "error", err)
			s.removeKeys()
			return
		}
		if !u.Role.Valid() {
			s.logger.Warn("stored user has an unknown role, dropping session", "role", string(u.Role))
			s.removeKeys()
			return
		}
		user = &u
	}

	s.token = token
	s.user = user
	if s.token != "" && s.user != nil {
		s.metrics.SessionEvent(EventRehydrated)
		s.logger.Debug("session rehydrated", "user_id", user.ID, "role", string(user.Role))
	}
}

// SetNavigator connects the store to the router once the router exists.
func (s *SessionStore) SetNavigator(nav Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav = nav
}

// Subscribe registers fn to be called with a snapshot after every change.
func (s *SessionStore) Subscribe(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (s *SessionStore) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SessionStore) snapshotLocked() Session {
	var user *auth.User
	if s.user != nil {
		u := *s.user
		u.Extra = maps.Clone(s.user.Extra)
		user = &u
	}
	return Session{
		User:             user,
		Token:            s.token,
		Loading:          s.inFlight > 0,
		Error:            s.lastError,
		ValidationErrors: cloneErrors(s.validationErrors),
	}
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// CurrentRole returns the user's role, or "" when signed out.
func (s *SessionStore) CurrentRole() auth.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

func (s *SessionStore) IsJoueur() bool    { return s.CurrentRole() == auth.RoleJoueur }
func (s *SessionStore) IsRecruteur() bool { return s.CurrentRole() == auth.RoleRecruteur }

func (s *SessionStore) UserFullName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.FullName()
}

// Token implements services.TokenSource.
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Loading is true while any action is in flight.
func (s *SessionStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Login authenticates, persists the session and navigates to the user's
// dashboard. Failures are described by the returned Result.
func (s *SessionStore) Login(ctx context.Context, creds auth.Credentials) types.Result {
	return s.authenticate(ctx, EventLogin, EventLoginFailed, func(ctx context.Context) (*auth.Grant, error) {
		return s.service.Login(ctx, creds)
	})
}

// Register creates an account and behaves like Login on success.
func (s *SessionStore) Register(ctx context.Context, data auth.Registration) types.Result {
	return s.authenticate(ctx, EventRegister, EventRegFailed, func(ctx context.Context) (*auth.Grant, error) {
		return s.service.Register(ctx, data)
	})
}

func (s *SessionStore) authenticate(ctx context.Context, okEvent, failEvent string, call func(context.Context) (*auth.Grant, error)) types.Result {
	s.mu.Lock()
	s.inFlight++
	s.lastError = ""
	s.validationErrors = map[string][]string{}
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		s.notify()
	}()

	grant, err := call(ctx)
	if err != nil {
		s.metrics.SessionEvent(failEvent)
		return s.fail(err)
	}

	dashboard, err := router.DashboardFor(grant.User.Role)
	if err != nil {
		s.logger.Error("authenticated user has an unknown role", "user_id", grant.User.ID, "role", string(grant.User.Role))
		s.metrics.SessionEvent(failEvent)
		s.ClearAuth()
		s.mu.Lock()
		s.lastError = MsgUnknownRole
		s.mu.Unlock()
		return types.Result{Success: false, Errors: map[string][]string{}, Message: MsgUnknownRole}
	}

	if err := s.setUserData(grant.Token, grant.User); err != nil {
		s.logger.Error("failed to persist session", "error", err)
	}
	s.metrics.SessionEvent(okEvent)
	s.logger.Info("signed in", "user_id", grant.User.ID, "role", string(grant.User.Role), "event", okEvent)

	s.navigate(router.Location{Name: dashboard})
	return types.Result{Success: true}
}

// fail records err in the state and builds the matching Result.
func (s *SessionStore) fail(err error) types.Result {
	var fields map[string][]string
	var message string

	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == services.KindValidationFailed {
		fields = cloneErrors(apiErr.FieldErrors)
		message = apiErr.Message
		if message == "" {
			message = MsgCheckFields
		}
	} else {
		fields = map[string][]string{}
		message = oops.GetPublic(err, MsgGenericError)
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		}
	}
	if fields == nil {
		fields = map[string][]string{}
	}

	s.logger.Warn("authentication failed", "error", err)

	s.mu.Lock()
	s.lastError = message
	s.validationErrors = cloneErrors(fields)
	s.mu.Unlock()

	return types.Result{Success: false, Errors: fields, Message: message}
}

func (s *SessionStore) setUserData(token string, user *auth.User) error {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	if err := s.storage.Set(TokenKey, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return s.storeUser(user)
}

func (s *SessionStore) storeUser(user *auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.storage.Set(UserKey, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// FetchUser refreshes the user from /me. It does nothing without a token.
// A 401 or a user with an unknown role clears the session; other failures
// leave the state untouched and are only returned to the caller.
func (s *SessionStore) FetchUser(ctx context.Context) error {
	if s.Token() == "" {
		return nil
	}

	user, err := s.service.Me(ctx)
	if err != nil {
		if errors.Is(err, services.ErrAuthenticationExpired) {
			s.logger.Info("session rejected by backend, clearing")
			s.ClearAuth()
		} else {
			s.logger.Warn("failed to refresh user", "error", err)
		}
		return oops.In("session").Code("FETCH_USER_FAILED").Wrapf(err, "failed to refresh user")
	}
	if user == nil || !user.Role.Valid() {
		var role auth.Role
		if user != nil {
			role = user.Role
		}
		s.logger.Error("backend returned a user with an unknown role, clearing", "role", string(role))
		s.ClearAuth()
		return oops.In("session").Code("FETCH_USER_FAILED").Public(MsgUnknownRole).
			Wrapf(fmt.Errorf("%w: %q", auth.ErrUnknownRole, role), "failed to refresh user")
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	if err := s.storeUser(user); err != nil {
		s.logger.Error("failed to persist user", "error", err)
	}
	s.metrics.SessionEvent(EventRefreshed)
	s.notify()
	return nil
}

// Logout tells the backend, then always clears the session and goes home.
func (s *SessionStore) Logout(ctx context.Context) {
	if s.Token() != "" {
		if err := s.service.Logout(ctx); err != nil {
			s.logger.Warn("logout request failed", "error", err)
		}
	}
	s.ClearAuth()
	s.metrics.SessionEvent(EventLogout)
	s.navigate(router.Location{Name: router.RouteHome})
}

// ClearAuth resets the whole state and removes both storage keys.
func (s *SessionStore) ClearAuth() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.lastError = ""
	s.validationErrors = map[string][]string{}
	s.mu.Unlock()

	s.removeKeys()
	s.metrics.SessionEvent(EventCleared)
	s.notify()
}

func (s *SessionStore) removeKeys() {
	for _, key := range []string{TokenKey, UserKey} {
		if err := s.storage.Remove(key); err != nil {
			s.logger.Error("failed to remove stored key", "key", key, "error", err)
		}
	}
}

func (s *SessionStore) navigate(loc router.Location) {
	s.mu.Lock()
	nav := s.nav
	s.mu.Unlock()
	if nav == nil {
		return
	}
	if _, err := nav.Push(loc); err != nil {
		s.logger.Warn("navigation failed", "to", loc.Name, "error", err)
	}
}

func (s *SessionStore) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	listeners := make([]func(Session), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func cloneErrors(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
