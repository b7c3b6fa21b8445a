package authsession

import "strings"

// UserRole is the role stored on a profile record
type UserRole string

const (
	// RoleGuest can view
	RoleGuest UserRole = "guest"
	// RoleMember can view and edit
	RoleMember UserRole = "member"
	// RoleAdmin can view, edit and create
	RoleAdmin UserRole = "admin"
	// RoleOwner can view, edit, create and delete
	RoleOwner UserRole = "owner"
)

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	for _, role := range GetAllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// GetAllRoles returns all predefined roles, least privileged first
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleGuest,
		RoleMember,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a UserRole
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// profileGrants reports whether the profile role equals the configured
// admin role. Only an exact match grants; owner does not imply admin.
func profileGrants(profile *Profile, adminRole UserRole) bool {
	if profile == nil || adminRole == "" {
		return false
	}
	return profile.Role == adminRole
}
