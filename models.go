package authsession

import (
	"time"

	"github.com/uptrace/bun"
)

// ChangeEvent names the reason a provider pushed a session change
type ChangeEvent = string

const (
	EventInitialSession   ChangeEvent = "INITIAL_SESSION"
	EventSignedIn         ChangeEvent = "SIGNED_IN"
	EventSignedOut        ChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed   ChangeEvent = "TOKEN_REFRESHED"
	EventUserUpdated      ChangeEvent = "USER_UPDATED"
	EventPasswordRecovery ChangeEvent = "PASSWORD_RECOVERY"
)

// MetadataFullName is the sign-up metadata key holding the display name
const MetadataFullName = "full_name"

// User is the identity record carried by a session
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email,omitempty"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// FullName returns the full_name sign-up metadata, if any
func (u *User) FullName() string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	name, _ := u.Metadata[MetadataFullName].(string)
	return name
}

// Session is the provider issued token bundle. The provider treats it
// as opaque; only its presence matters to the session state.
type Session struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	User         *User      `json:"user,omitempty"`
}

// UserID returns the id of the session user or an empty string
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Expired reports whether the session carries an expiry in the past
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// Profile holds authorization metadata keyed by user id
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            string     `bun:"id,pk" json:"id"`
	Role          UserRole   `bun:"role,notnull" json:"role,omitempty"`
	FullName      string     `bun:"full_name" json:"full_name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Credentials is the password sign-in/sign-up payload
type Credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SignUpOptions configures a registration call
type SignUpOptions struct {
	// RedirectTarget is where the provider sends the user after confirming
	// their email address.
	RedirectTarget string
	// Data is attached to the new user as profile metadata
	Data map[string]any
}
