package local

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/uptrace/bun"
)

// UserRecord is the Bun model for locally registered users.
type UserRecord struct {
	bun.BaseModel `bun:"table:auth_users,alias:au"`

	ID           string         `bun:"id,pk"`
	Email        string         `bun:"email,notnull,unique"`
	PasswordHash string         `bun:"password_hash,notnull"`
	Metadata     map[string]any `bun:"metadata,type:jsonb"`
	RedirectTo   string         `bun:"redirect_to"`
	ConfirmedAt  *time.Time     `bun:"confirmed_at,nullzero"`
	LastSignInAt *time.Time     `bun:"last_sign_in_at,nullzero"`
	CreatedAt    *time.Time     `bun:"created_at,nullzero,default:current_timestamp"`
}

func (u *UserRecord) toUser() *authsession.User {
	if u == nil {
		return nil
	}

	metadata := map[string]any{}
	for k, v := range u.Metadata {
		metadata[k] = v
	}

	return &authsession.User{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  metadata,
		CreatedAt: u.CreatedAt,
	}
}

type userStore struct {
	db bun.IDB
}

func (s *userStore) createTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*UserRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *userStore) getByEmail(ctx context.Context, email string) (*UserRecord, error) {
	record := &UserRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *userStore) getByID(ctx context.Context, id string) (*UserRecord, error) {
	record := &UserRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *userStore) create(ctx context.Context, record *UserRecord) error {
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	return err
}

func (s *userStore) markConfirmed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("confirmed_at = ?", at).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

func (s *userStore) trackSignIn(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("last_sign_in_at = ?", at).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
