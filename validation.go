package authsession

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// SignInRequest payload
type SignInRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// SignUpRequest payload
type SignUpRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	FullName string `form:"full_name" json:"full_name"`
}

// Validate will run validation rules
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
	)
}

func validationError(err error, operation string) error {
	if err == nil {
		return nil
	}

	meta := map[string]any{"operation": operation}
	if fields, ok := err.(validation.Errors); ok {
		details := map[string]string{}
		for field, ferr := range fields {
			details[field] = ferr.Error()
		}
		meta["fields"] = details
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid "+operation+" payload").
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
