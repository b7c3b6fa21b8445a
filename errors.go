package authsession

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeUserAlreadyExists   = "USER_ALREADY_EXISTS"
	TextCodeEmailNotConfirmed   = "EMAIL_NOT_CONFIRMED"
	TextCodeInvalidInput        = "INVALID_INPUT"
	TextCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	TextCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	TextCodeNoProvider          = "NO_SESSION_PROVIDER"
	TextCodeNotMounted          = "SESSION_PROVIDER_NOT_MOUNTED"
)

// ErrInvalidCredentials is returned when the provider rejects an email/password pair
var ErrInvalidCredentials = goerrors.New("invalid login credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserAlreadyExists is returned when signing up an email that is registered
var ErrUserAlreadyExists = goerrors.New("user already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyExists).
	WithCode(goerrors.CodeConflict)

// ErrEmailNotConfirmed is returned when signing in before confirming the email
var ErrEmailNotConfirmed = goerrors.New("email not confirmed", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotConfirmed).
	WithCode(goerrors.CodeForbidden)

// ErrProviderUnavailable is returned when the identity provider cannot be reached
var ErrProviderUnavailable = goerrors.New("identity provider unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeProviderUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrProfileNotFound is the lookup error for users without a profile record
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoProvider is raised when session state is read outside a mounted provider
var ErrNoProvider = goerrors.New("authsession: session state must be accessed within a Provider", goerrors.CategoryInternal).
	WithTextCode(TextCodeNoProvider)

// ErrNotMounted is returned by actions invoked on an unmounted provider
var ErrNotMounted = goerrors.New("authsession: provider is not mounted", goerrors.CategoryOperation).
	WithTextCode(TextCodeNotMounted)

// IsCredentialError reports whether err is a credential rejection
func IsCredentialError(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials, TextCodeEmailNotConfirmed)
}

// IsValidationError reports whether err was raised while validating input
func IsValidationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryValidation || richErr.TextCode == TextCodeInvalidInput
}

func hasTextCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if !errors.As(err, &richErr) {
		return false
	}

	for _, code := range codes {
		if richErr.TextCode == code {
			return true
		}
	}
	return false
}

// asAuthError normalizes anything a provider returns into a rich error so
// callers get a consistent descriptor back from SignIn and SignUp.
func asAuthError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, operation+" failed").
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{"operation": operation})
}
