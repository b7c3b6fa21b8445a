package gotrue

import (
	"context"
	"net/http"
	"testing"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			writeJSON(w, http.StatusOK, sessionPayload("token-1", "u1"))
		case "/rest/v1/profiles":
			assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			assert.Equal(t, "id,role,full_name", r.URL.Query().Get("select"))

			switch r.URL.Query().Get("id") {
			case "eq.u1":
				writeJSON(w, http.StatusOK, []map[string]any{{"id": "u1", "role": "admin", "full_name": "Ada"}})
			default:
				writeJSON(w, http.StatusOK, []map[string]any{})
			}
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	require.NoError(t, client.SignInWithPassword(ctx, authsession.Credentials{Email: "u1@example.com", Password: "secret1"}))

	profile, err := client.LookupProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, authsession.RoleAdmin, profile.Role)
	assert.Equal(t, "Ada", profile.FullName)

	_, err = client.LookupProfile(ctx, "u9")
	require.Error(t, err)
	assert.Equal(t, authsession.TextCodeProfileNotFound, textCode(t, err))
}

func TestLookupProfile_UsesAnonKeyWithoutSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "permission denied for table profiles"})
	})

	_, err := client.LookupProfile(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, authsession.TextCodeProviderUnavailable, textCode(t, err))
}

func TestLookupProfile_CustomTable(t *testing.T) {
	var path string
	server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "u1", "role": "member"}})
	})
	server.config.ProfileTable = "user_profiles"

	profile, err := server.LookupProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/user_profiles", path)
	assert.Equal(t, authsession.RoleMember, profile.Role)
}
