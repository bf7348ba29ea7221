package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/mockapi"
)

func newAuthService(t *testing.T, opts ...mockapi.Option) (*AuthService, *mockapi.Server, *string) {
	t.Helper()
	backend := mockapi.New(opts...)
	_, err := backend.AddUser(auth.User{Role: auth.RoleRecruteur, FirstName: "Didier", LastName: "D", Email: "d@scoutme.test"}, "password123")
	require.NoError(t, err)

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	token := new(string)
	client := NewApiClient(Options{
		BaseURL: srv.URL + mockapi.Prefix,
		Timeout: 5 * time.Second,
		Tokens:  TokenFunc(func() string { return *token }),
	})
	return NewAuthService(client), backend, token
}

func TestAuthService_LoginMeLogout(t *testing.T) {
	svc, _, token := newAuthService(t)
	ctx := context.Background()

	grant, err := svc.Login(ctx, auth.Credentials{Email: "d@scoutme.test", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Token)
	assert.Equal(t, auth.RoleRecruteur, grant.User.Role)

	*token = grant.Token
	me, err := svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Didier D", me.FullName())

	require.NoError(t, svc.Logout(ctx))
	_, err = svc.Me(ctx)
	assert.ErrorIs(t, err, ErrAuthenticationExpired)
}

func TestAuthService_AccessTokenField(t *testing.T) {
	svc, _, _ := newAuthService(t, mockapi.WithTokenField("access_token"))

	grant, err := svc.Login(context.Background(), auth.Credentials{Email: "d@scoutme.test", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Token)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), auth.Registration{Email: "not-an-email", Role: auth.RoleJoueur})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidationFailed, apiErr.Kind)
	assert.Contains(t, apiErr.FieldErrors, "email")
	assert.Contains(t, apiErr.FieldErrors, "password")
}

func TestAuthService_Register(t *testing.T) {
	svc, _, _ := newAuthService(t)

	grant, err := svc.Register(context.Background(), auth.Registration{
		FirstName:            "Aya",
		LastName:             "N",
		Email:                "aya@scoutme.test",
		Password:             "password123",
		PasswordConfirmation: "password123",
		Role:                 auth.RoleJoueur,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleJoueur, grant.User.Role)
}

func TestAuthService_IncompleteGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"role":"joueur"}}`))
	}))
	t.Cleanup(srv.Close)
	svc := NewAuthService(NewApiClient(Options{BaseURL: srv.URL, Timeout: time.Second}))

	_, err := svc.Login(context.Background(), auth.Credentials{Email: "a", Password: "b"})
	assert.ErrorContains(t, err, "missing the token")
}
