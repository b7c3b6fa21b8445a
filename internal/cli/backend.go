package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/provider/gotrue"
	"github.com/goliatone/go-auth-session/provider/local"
	"github.com/goliatone/go-auth-session/repository"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

const localIssuer = "authsession"

// backend wires a session Provider to the configured identity provider.
// local and profiles are only set for the local backend.
type backend struct {
	provider *authsession.Provider
	local    *local.Provider
	profiles *repository.ProfileStore
	logger   authsession.Logger
	closers  []func() error
}

func openBackend(ctx context.Context, cfg *Config) (*backend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	b := &backend{logger: newLogger(cfg.Debug)}

	switch strings.ToLower(cfg.Backend) {
	case backendGoTrue:
		if err := b.openGoTrue(cfg); err != nil {
			_ = b.Close()
			return nil, err
		}
	default:
		if err := b.openLocal(ctx, cfg); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	return b, nil
}

func (b *backend) openLocal(ctx context.Context, cfg *Config) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	b.closers = append(b.closers, db.Close)

	profiles := repository.NewProfileStoreFromConfig(db, cfg.session)
	if err := profiles.CreateTable(ctx); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}

	idp, err := local.New(db, local.Config{
		SigningKey:  cfg.SigningKey,
		Issuer:      localIssuer,
		AutoConfirm: cfg.AutoConfirm,
	}, local.WithProfileWriter(profiles), local.WithLogger(b.logger))
	if err != nil {
		return err
	}

	if err := idp.CreateTables(ctx); err != nil {
		return fmt.Errorf("create identity tables: %w", err)
	}

	b.local = idp
	b.profiles = profiles
	b.provider = authsession.NewProvider(idp, profiles, cfg.session).
		WithLogger(b.logger).
		WithActivitySink(b.activitySink())
	return nil
}

func (b *backend) openGoTrue(cfg *Config) error {
	client, err := gotrue.New(gotrue.Config{
		URL:          cfg.GoTrueURL,
		AnonKey:      cfg.AnonKey,
		ProfileTable: cfg.session.GetProfileTable(),
	}, gotrue.WithLogger(b.logger))
	if err != nil {
		return err
	}

	store := newSessionFile(cfg.SessionFile)
	saved, err := store.load()
	if err != nil {
		return err
	}
	if saved != nil {
		client.SetSession(saved)
	}

	sub := store.track(client, b.logger)
	b.closers = append(b.closers, func() error {
		sub.Unsubscribe()
		return nil
	})

	b.provider = authsession.NewProvider(client, client, cfg.session).
		WithLogger(b.logger).
		WithActivitySink(b.activitySink())
	return nil
}

func (b *backend) activitySink() authsession.ActivitySink {
	return activitymap.Sink(func(_ context.Context, record activitymap.Record) error {
		b.logger.Info("activity %s actor=%s object=%s metadata=%v", record.Verb, record.ActorID, record.ObjectID, record.Metadata)
		return nil
	}, activitymap.WithChannel("cli"))
}

// mount mounts the provider and waits for the first resolution, including
// the admin lookup, so that commands print a settled state.
func (b *backend) mount(ctx context.Context) error {
	if err := b.provider.Mount(ctx); err != nil {
		return err
	}
	return b.provider.AwaitLookup(ctx)
}

func (b *backend) Close() error {
	if b.provider != nil {
		b.provider.Unmount()
	}

	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newLogger(debug bool) authsession.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return authsession.NewZapLogger(logger)
}
