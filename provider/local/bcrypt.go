package local

import (
	"errors"

	authsession "github.com/goliatone/go-auth-session"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// comparePasswordAndHash maps a mismatch onto the credential error so that
// unknown emails and bad passwords are indistinguishable to callers.
func comparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
			return authsession.ErrInvalidCredentials
		}
		return err
	}
	return nil
}
