package gotrue

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	authsession "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

const providerName = "gotrue"

// ProviderError captures the normalized details of a failed auth server call.
type ProviderError struct {
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "gotrue error"
	}

	scope := providerName
	if e.Operation != "" {
		scope = fmt.Sprintf("%s %s", providerName, e.Operation)
	}

	if e.Description != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return fmt.Sprintf("%s failed with status %d", scope, e.Status)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{"provider": providerName}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}
	return meta
}

// errorResponse covers both error shapes served by the auth server: the
// OAuth style error/error_description pair and the newer code/msg payload.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func parseError(body []byte) (string, string, map[string]any) {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		code := firstNonEmpty(resp.ErrorCode, resp.Error)
		desc := firstNonEmpty(resp.ErrorDesc, resp.Msg, resp.Message)
		if code != "" || desc != "" {
			raw := map[string]any{}
			_ = json.Unmarshal(body, &raw)
			return code, desc, raw
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "request failed"
	}
	return "", msg, nil
}

// normalizeError maps a provider failure onto the authsession error taxonomy.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || perr == nil {
		return wrapProviderError(authsession.ErrProviderUnavailable, err)
	}

	code := strings.ToLower(perr.Code)
	desc := strings.ToLower(perr.Description)

	switch {
	case code == "email_not_confirmed" || strings.Contains(desc, "email not confirmed"):
		return wrapProviderError(authsession.ErrEmailNotConfirmed, err)
	case code == "user_already_exists" || code == "email_exists" || strings.Contains(desc, "already registered"):
		return wrapProviderError(authsession.ErrUserAlreadyExists, err)
	case code == "invalid_grant" || code == "invalid_credentials" || strings.Contains(desc, "invalid login credentials"):
		return wrapProviderError(authsession.ErrInvalidCredentials, err)
	case perr.Status == http.StatusBadRequest || perr.Status == http.StatusUnprocessableEntity:
		return goerrors.Wrap(err, goerrors.CategoryValidation, perr.Error()).
			WithTextCode(authsession.TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(perr.Metadata())
	case perr.Status == http.StatusUnauthorized || perr.Status == http.StatusForbidden:
		return goerrors.Wrap(err, goerrors.CategoryAuth, perr.Error()).
			WithCode(perr.Status).
			WithMetadata(perr.Metadata())
	}

	return wrapProviderError(authsession.ErrProviderUnavailable, err)
}

func wrapProviderError(base *goerrors.Error, err error) error {
	meta := map[string]any{"provider": providerName}

	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	clone.WithMetadata(meta)

	return clone
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *ProviderError {
	return &ProviderError{
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
