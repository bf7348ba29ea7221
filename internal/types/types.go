package types

import (
	"encoding/json"

	"github.com/scoutme/client/internal/auth"
)

// AuthResponse is the body returned by /login and /register. The backend
// names the token either "token" or "access_token".
type AuthResponse struct {
	Token       string          `json:"token,omitempty"`
	AccessToken string          `json:"access_token,omitempty"`
	TokenType   string          `json:"token_type,omitempty"`
	User        *auth.User      `json:"user"`
	Raw         json.RawMessage `json:"-"`
}

// BearerToken returns whichever token field the backend filled in.
func (r *AuthResponse) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// ErrorBody is the JSON shape of a failed response. Errors is only present
// on validation failures (422).
type ErrorBody struct {
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// MeResponse accepts both a bare user object and one wrapped in {"user": ...}.
type MeResponse struct {
	User *auth.User
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *MeResponse) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		User *auth.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.User != nil {
		m.User = wrapped.User
		return nil
	}
	var u auth.User
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	m.User = &u
	return nil
}

// Result is what the session store hands back to forms after login or
// registration. It never carries a Go error: failures are described by
// Message and the per-field Errors map.
type Result struct {
	Success bool                `json:"success"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Message string              `json:"message,omitempty"`
}
