package local

import (
	"context"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/uptrace/bun"
)

// currentSlot keys the single session a local provider mirrors.
const currentSlot = "current"

// SessionRecord is the Bun model for the persisted client session, so a
// session outlives the process that started it.
type SessionRecord struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:ase"`

	Slot         string     `bun:"slot,pk"`
	UserID       string     `bun:"user_id,notnull"`
	AccessToken  string     `bun:"access_token,notnull"`
	RefreshToken string     `bun:"refresh_token"`
	TokenType    string     `bun:"token_type"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

func (r *SessionRecord) toSession(user *authsession.User) *authsession.Session {
	return &authsession.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    r.ExpiresAt,
		User:         user,
	}
}

type sessionStore struct {
	db bun.IDB
}

func (s *sessionStore) createTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*SessionRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *sessionStore) save(ctx context.Context, session *authsession.Session, at time.Time) error {
	record := &SessionRecord{
		Slot:         currentSlot,
		UserID:       session.UserID(),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    session.TokenType,
		ExpiresAt:    session.ExpiresAt,
		CreatedAt:    &at,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (slot) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_type = EXCLUDED.token_type").
		Set("expires_at = EXCLUDED.expires_at").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	return err
}

// load returns the stored session record, or sql.ErrNoRows.
func (s *sessionStore) load(ctx context.Context) (*SessionRecord, error) {
	record := &SessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.slot = ?", currentSlot).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *sessionStore) delete(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("?TableAlias.slot = ?", currentSlot).
		Exec(ctx)
	return err
}
