package gotrue

import (
	"errors"
	"time"

	authsession "github.com/goliatone/go-auth-session"
)

var errMissingSession = errors.New("response carries no session")

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    *time.Time     `json:"created_at"`
}

func (u *userResponse) toUser() *authsession.User {
	if u == nil || u.ID == "" {
		return nil
	}
	return &authsession.User{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

func (r sessionResponse) toSession(now time.Time) (*authsession.Session, error) {
	user := r.User.toUser()
	if r.AccessToken == "" || user == nil {
		return nil, errMissingSession
	}

	session := &authsession.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User:         user,
	}

	switch {
	case r.ExpiresAt > 0:
		expiresAt := time.Unix(r.ExpiresAt, 0)
		session.ExpiresAt = &expiresAt
	case r.ExpiresIn > 0:
		expiresAt := now.Add(time.Duration(r.ExpiresIn) * time.Second)
		session.ExpiresAt = &expiresAt
	}

	return session, nil
}
