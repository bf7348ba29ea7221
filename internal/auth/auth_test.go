package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"joueur", RoleJoueur, false},
		{" recruteur ", RoleRecruteur, false},
		{"admin", "", true},
		{"", "", true},
		{"Joueur", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoles_AllValid(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("coach").Valid())
}

func TestUser_FullName(t *testing.T) {
	var nilUser *User
	assert.Equal(t, "", nilUser.FullName())
	assert.Equal(t, "Kylian Mbappé", (&User{FirstName: "Kylian", LastName: "Mbappé"}).FullName())
	assert.Equal(t, "Kylian", (&User{FirstName: "Kylian"}).FullName())
}

func TestUser_KeepsUnknownFields(t *testing.T) {
	raw := `{"id":7,"role":"joueur","first_name":"Aya","last_name":"N","poste":"milieu","age":19}`

	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, RoleJoueur, u.Role)
	assert.JSONEq(t, `"milieu"`, string(u.Extra["poste"]))

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}
