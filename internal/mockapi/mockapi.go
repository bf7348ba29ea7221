// Package mockapi is an in-memory stand-in for the ScoutMe backend. It serves
// /login, /register, /me and /logout with the same status codes and JSON
// shapes as the real API and is used for local development and tests.
package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/types"
)

const (
	// Prefix is mounted in front of every endpoint, like the real API.
	Prefix = "/api"

	defaultTTL = time.Hour
	minPassLen = 8
)

var errInvalidToken = errors.New("invalid token")

type account struct {
	user     auth.User
	passHash []byte
}

type failure struct {
	status  int
	message string
}

// Server implements http.Handler.
type Server struct {
	router     *mux.Router
	secret     []byte
	ttl        time.Duration
	tokenField string
	logger     *slog.Logger

	mu       sync.Mutex
	nextID   int
	accounts map[string]*account // by email
	revoked  map[string]struct{} // jti
	failures map[string]failure  // by endpoint, consumed once
}

// Option configures a Server.
type Option func(*Server)

// WithTokenField names the token field of auth responses ("token" or "access_token").
func WithTokenField(name string) Option {
	return func(s *Server) { s.tokenField = name }
}

// WithTTL sets the lifetime of issued tokens. A negative TTL issues tokens
// that are already expired.
func WithTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithSecret sets the HS256 signing key.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server with no accounts.
func New(opts ...Option) *Server {
	s := &Server{
		secret:     []byte(uuid.NewString()),
		ttl:        defaultTTL,
		tokenField: "token",
		logger:     logging.Discard(),
		nextID:     1,
		accounts:   make(map[string]*account),
		revoked:    make(map[string]struct{}),
		failures:   make(map[string]failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = mux.NewRouter()
	api := s.router.PathPrefix(Prefix).Subrouter()
	api.Use(s.logRequests, s.injectFailures)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, types.ErrorBody{Message: "Not Found"})
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser creates an account and returns the stored user.
func (s *Server) AddUser(u auth.User, password string) (auth.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return auth.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[strings.ToLower(u.Email)]; exists {
		return auth.User{}, fmt.Errorf("email %s already registered", u.Email)
	}
	u.ID = s.nextID
	s.nextID++
	s.accounts[strings.ToLower(u.Email)] = &account{user: u, passHash: hash}
	return u, nil
}

// FailNext makes the next request to endpoint (e.g. "/logout") answer status.
func (s *Server) FailNext(endpoint string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = failure{status: status, message: message}
}

// IssueToken signs a token for the user with the given email.
func (s *Server) IssueToken(email string) (string, error) {
	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(email)]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown user %s", email)
	}
	return s.sign(acc.user)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("mock api request", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get("X-Request-Id"))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, Prefix)
		s.mu.Lock()
		f, ok := s.failures[endpoint]
		delete(s.failures, endpoint)
		s.mu.Unlock()
		if ok {
			writeJSON(w, f.status, types.ErrorBody{Message: f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Message: "Malformed JSON"})
		return
	}

	errs := map[string][]string{}
	if creds.Email == "" {
		errs["email"] = append(errs["email"], "Le champ email est obligatoire.")
	}
	if creds.Password == "" {
		errs["password"] = append(errs["password"], "Le champ mot de passe est obligatoire.")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(creds.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passHash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, types.ErrorBody{Message: "Identifiants incorrects"})
		return
	}
	s.writeGrant(w, http.StatusOK, acc.user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorBody{Message: "Malformed JSON"})
		return
	}

	errs := map[string][]string{}
	if strings.TrimSpace(reg.FirstName) == "" {
		errs["first_name"] = append(errs["first_name"], "Le champ prénom est obligatoire.")
	}
	if strings.TrimSpace(reg.LastName) == "" {
		errs["last_name"] = append(errs["last_name"], "Le champ nom est obligatoire.")
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		errs["email"] = append(errs["email"], "Le champ email doit être une adresse valide.")
	}
	if len(reg.Password) < minPassLen {
		errs["password"] = append(errs["password"], fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères.", minPassLen))
	}
	if reg.Password != reg.PasswordConfirmation {
		errs["password"] = append(errs["password"], "La confirmation du mot de passe ne correspond pas.")
	}
	if !reg.Role.Valid() {
		errs["role"] = append(errs["role"], "Le rôle sélectionné est invalide.")
	}
	s.mu.Lock()
	_, taken := s.accounts[strings.ToLower(reg.Email)]
	s.mu.Unlock()
	if taken {
		errs["email"] = append(errs["email"], "Cet email est déjà utilisé.")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	user, err := s.AddUser(auth.User{
		Role:      reg.Role,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Email:     reg.Email,
	}, reg.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, types.ErrorBody{Message: err.Error()})
		return
	}
	s.writeGrant(w, http.StatusCreated, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, types.ErrorBody{Message: "Unauthenticated."})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, jti, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, types.ErrorBody{Message: "Unauthenticated."})
		return
	}
	s.mu.Lock()
	s.revoked[jti] = struct{}{}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, types.ErrorBody{Message: "Déconnexion réussie"})
}

func (s *Server) authenticate(r *http.Request) (auth.User, string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return auth.User{}, "", errInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return auth.User{}, "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, revoked := s.revoked[claims.ID]; revoked {
		return auth.User{}, "", errInvalidToken
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return auth.User{}, "", errInvalidToken
	}
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc.user, claims.ID, nil
		}
	}
	return auth.User{}, "", errInvalidToken
}

func (s *Server) sign(u auth.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.Itoa(u.ID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) writeGrant(w http.ResponseWriter, status int, u auth.User) {
	token, err := s.sign(u)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, types.ErrorBody{Message: "failed to sign token"})
		return
	}
	writeJSON(w, status, map[string]any{
		s.tokenField: token,
		"token_type": "Bearer",
		"user":       u,
	})
}

func writeValidation(w http.ResponseWriter, errs map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, types.ErrorBody{
		Message: "The given data was invalid.",
		Errors:  errs,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
