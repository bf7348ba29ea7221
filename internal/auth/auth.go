package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the account type of a ScoutMe user.
type Role string

const (
	RoleJoueur    Role = "joueur"
	RoleRecruteur Role = "recruteur"
)

// ErrUnknownRole is returned for any role outside the closed set above.
var ErrUnknownRole = errors.New("unknown role")

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleJoueur, RoleRecruteur}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleJoueur, RoleRecruteur:
		return true
	default:
		return false
	}
}

// ParseRole converts s into a Role, failing on anything unknown.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Service defines the authentication operations offered by the backend.
type Service interface {
	Login(ctx context.Context, creds Credentials) (*Grant, error)
	Register(ctx context.Context, data Registration) (*Grant, error)
	Me(ctx context.Context) (*User, error)
	Logout(ctx context.Context) error
}

// User represents authenticated user data. Only Role drives routing; the rest is
// display data, and unknown fields returned by the backend are kept in Extra.
type User struct {
	ID        int                        `json:"id,omitempty"`
	Role      Role                       `json:"role"`
	FirstName string                     `json:"first_name"`
	LastName  string                     `json:"last_name"`
	Email     string                     `json:"email,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// FullName returns "first last", or an empty string for a nil user.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type userAlias User

var userFields = map[string]struct{}{
	"id": {}, "role": {}, "first_name": {}, "last_name": {}, "email": {},
}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (u *User) UnmarshalJSON(data []byte) error {
	var known userAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*u = User(known)
	for k, v := range all {
		if _, ok := userFields[k]; ok {
			continue
		}
		if u.Extra == nil {
			u.Extra = make(map[string]json.RawMessage)
		}
		u.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes the known fields followed by Extra.
func (u User) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(userAlias(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]json.RawMessage, len(u.Extra)+len(userFields))
	for k, v := range u.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Credentials contains login request data
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration contains sign-up request data.
type Registration struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 Role   `json:"role"`
}

// Grant is what a successful login or registration yields.
type Grant struct {
	Token string
	User  *User
}
