package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/uptrace/bun"
)

// ProfileStore implements authsession.ProfileLookup using Bun.
type ProfileStore struct {
	db    bun.IDB
	table string
}

var _ authsession.ProfileLookup = (*ProfileStore)(nil)

type ProfileStoreOption func(*ProfileStore)

// WithTable overrides the profiles table name
func WithTable(table string) ProfileStoreOption {
	return func(s *ProfileStore) {
		if table = strings.TrimSpace(table); table != "" {
			s.table = table
		}
	}
}

// NewProfileStore creates a new store.
func NewProfileStore(db bun.IDB, opts ...ProfileStoreOption) *ProfileStore {
	s := &ProfileStore{
		db:    db,
		table: authsession.DefaultProfileTable,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewProfileStoreFromConfig creates a store reading the table name from cfg
func NewProfileStoreFromConfig(db bun.IDB, cfg authsession.Config) *ProfileStore {
	if cfg == nil {
		return NewProfileStore(db)
	}
	return NewProfileStore(db, WithTable(cfg.GetProfileTable()))
}

// Table returns the table the store reads from
func (s *ProfileStore) Table() string {
	return s.table
}

// CreateTable creates the profiles table if it does not exist.
func (s *ProfileStore) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*authsession.Profile)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists().
		Exec(ctx)
	return err
}

// LookupProfile implements authsession.ProfileLookup.
func (s *ProfileStore) LookupProfile(ctx context.Context, userID string) (*authsession.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, notFound(userID)
	}

	profile := &authsession.Profile{}
	err := s.db.NewSelect().
		Model(profile).
		ModelTableExpr("? AS prf", bun.Ident(s.table)).
		Where("prf.id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(userID)
		}
		return nil, err
	}

	return profile, nil
}

// Upsert inserts the profile or updates role and full name on conflict.
func (s *ProfileStore) Upsert(ctx context.Context, profile *authsession.Profile) error {
	if profile == nil || strings.TrimSpace(profile.ID) == "" {
		return errors.New("profile id is required")
	}

	if profile.Role == "" {
		profile.Role = authsession.RoleMember
	}

	now := time.Now()
	profile.UpdatedAt = &now

	_, err := s.db.NewInsert().
		Model(profile).
		ModelTableExpr("?", bun.Ident(s.table)).
		On("CONFLICT (id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("full_name = EXCLUDED.full_name").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// SetRole updates the role of an existing profile.
func (s *ProfileStore) SetRole(ctx context.Context, userID string, role authsession.UserRole) error {
	if _, ok := authsession.ParseRole(string(role)); !ok {
		return errors.New("unknown role: " + string(role))
	}

	res, err := s.db.NewUpdate().
		Model((*authsession.Profile)(nil)).
		ModelTableExpr("? AS prf", bun.Ident(s.table)).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now()).
		Where("prf.id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(userID)
	}

	return nil
}

func notFound(userID string) error {
	return authsession.ErrProfileNotFound.Clone().WithMetadata(map[string]any{
		"user_id": userID,
	})
}
