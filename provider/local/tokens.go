package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by locally issued access tokens
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type tokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

func (ts *tokenService) issue(user *authsession.User) (*authsession.Session, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("user is required to issue a session", errors.CategoryInternal)
	}

	now := ts.now()
	expiresAt := now.Add(ts.ttl)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return &authsession.Session{
		AccessToken:  signed,
		RefreshToken: uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    &expiresAt,
		User:         user,
	}, nil
}

func (ts *tokenService) validate(raw string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "invalid session token").
			WithTextCode(TextCodeInvalidToken).
			WithCode(errors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token", errors.CategoryAuth).
			WithTextCode(TextCodeInvalidToken).
			WithCode(errors.CodeUnauthorized)
	}

	return claims, nil
}
