package gotrue

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	authsession "github.com/goliatone/go-auth-session"
)

type profileRow struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

// LookupProfile implements authsession.ProfileLookup by querying the
// profiles table through PostgREST with the current access token, so row
// level security applies as it would for the signed in user.
func (c *Client) LookupProfile(ctx context.Context, userID string) (*authsession.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, profileNotFound(userID)
	}

	query := url.Values{
		"id":     {"eq." + userID},
		"select": {"id,role,full_name"},
		"limit":  {"1"},
	}
	path := restPath + "/" + url.PathEscape(c.config.ProfileTable) + "?" + query.Encode()

	var rows []profileRow
	if err := c.doJSON(ctx, "lookup_profile", http.MethodGet, path, c.bearer(), nil, &rows); err != nil {
		return nil, wrapProviderError(authsession.ErrProviderUnavailable, err)
	}

	if len(rows) == 0 {
		return nil, profileNotFound(userID)
	}

	row := rows[0]
	return &authsession.Profile{
		ID:       row.ID,
		Role:     authsession.UserRole(row.Role),
		FullName: row.FullName,
	}, nil
}

func profileNotFound(userID string) error {
	return authsession.ErrProfileNotFound.Clone().WithMetadata(map[string]any{
		"user_id":  userID,
		"provider": providerName,
	})
}
