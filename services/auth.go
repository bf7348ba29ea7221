package services

import (
	"context"

	"github.com/samber/oops"

	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/types"
)

// Backend endpoints, relative to the API base URL.
const (
	LoginEndpoint    = "/login"
	RegisterEndpoint = "/register"
	MeEndpoint       = "/me"
	LogoutEndpoint   = "/logout"
)

// AuthService implements auth.Service interface
type AuthService struct {
	apiClient *ApiClient
}

var _ auth.Service = (*AuthService)(nil)

// NewAuthService creates a new instance of AuthService
func NewAuthService(apiClient *ApiClient) *AuthService {
	return &AuthService{apiClient: apiClient}
}

// Login authenticates a user with their email and password
func (s *AuthService) Login(ctx context.Context, creds auth.Credentials) (*auth.Grant, error) {
	var resp types.AuthResponse
	if err := s.apiClient.Post(ctx, LoginEndpoint, creds, &resp); err != nil {
		return nil, err
	}
	return grantFrom(&resp, LoginEndpoint)
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, data auth.Registration) (*auth.Grant, error) {
	var resp types.AuthResponse
	if err := s.apiClient.Post(ctx, RegisterEndpoint, data, &resp); err != nil {
		return nil, err
	}
	return grantFrom(&resp, RegisterEndpoint)
}

// Me fetches the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context) (*auth.User, error) {
	var resp types.MeResponse
	if err := s.apiClient.Get(ctx, MeEndpoint, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, oops.In("auth").Code("INVALID_ME_RESPONSE").Errorf("empty user in %s response", MeEndpoint)
	}
	return resp.User, nil
}

// Logout invalidates the token server side.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.apiClient.Post(ctx, LogoutEndpoint, nil, nil)
}

func grantFrom(resp *types.AuthResponse, endpoint string) (*auth.Grant, error) {
	token := resp.BearerToken()
	if token == "" || resp.User == nil {
		return nil, oops.In("auth").Code("INVALID_AUTH_RESPONSE").
			With("endpoint", endpoint, "has_token", token != "", "has_user", resp.User != nil).
			Errorf("%s response is missing the token or the user", endpoint)
	}
	return &auth.Grant{Token: token, User: resp.User}, nil
}
