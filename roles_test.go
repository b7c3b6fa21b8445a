package authsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestGetAllRoles(t *testing.T) {
	roles := GetAllRoles()
	assert.Equal(t, []UserRole{RoleGuest, RoleMember, RoleAdmin, RoleOwner}, roles)
	for _, role := range roles {
		assert.True(t, role.IsValid())
	}
	assert.False(t, UserRole("root").IsValid())
}

func TestProfileGrants(t *testing.T) {
	tests := []struct {
		name    string
		profile *Profile
		role    UserRole
		want    bool
	}{
		{name: "admin profile", profile: &Profile{Role: RoleAdmin}, role: RoleAdmin, want: true},
		{name: "member profile", profile: &Profile{Role: RoleMember}, role: RoleAdmin, want: false},
		{name: "owner is not admin", profile: &Profile{Role: RoleOwner}, role: RoleAdmin, want: false},
		{name: "case sensitive", profile: &Profile{Role: "Admin"}, role: RoleAdmin, want: false},
		{name: "nil profile", profile: nil, role: RoleAdmin, want: false},
		{name: "empty admin role", profile: &Profile{Role: ""}, role: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, profileGrants(tt.profile, tt.role))
		})
	}
}
