package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	authsession "github.com/goliatone/go-auth-session"
)

const sessionFileName = "session.json"

// sessionFile keeps the gotrue session between CLI runs. The hosted backend
// only knows about a session through the tokens the client presents.
type sessionFile struct {
	path string
}

func newSessionFile(path string) *sessionFile {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		path = filepath.Join(dir, "authsession", sessionFileName)
	}
	return &sessionFile{path: path}
}

// load returns nil without error when no session was saved.
func (f *sessionFile) load() (*authsession.Session, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	session := &authsession.Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", f.path, err)
	}

	if session.AccessToken == "" || session.User == nil {
		return nil, nil
	}
	return session, nil
}

func (f *sessionFile) save(session *authsession.Session) error {
	if session == nil {
		return f.remove()
	}

	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	return os.WriteFile(f.path, raw, 0o600)
}

func (f *sessionFile) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// track writes every session change pushed by the identity provider.
func (f *sessionFile) track(idp authsession.IdentityProvider, logger authsession.Logger) authsession.Subscription {
	return idp.OnSessionChange(func(event authsession.ChangeEvent, session *authsession.Session) {
		if err := f.save(session); err != nil {
			logger.Error("failed to persist session after %s: %v", event, err)
		}
	})
}
