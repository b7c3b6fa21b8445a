package cli

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	authsession "github.com/goliatone/go-auth-session"
)

const envPrefix = "AUTH_SESSION_"

const (
	backendLocal  = "local"
	backendGoTrue = "gotrue"
)

// Config is the CLI configuration. Every field can be set from the
// environment (AUTH_SESSION_*) and most can be overridden by flags.
type Config struct {
	Backend     string `env:"BACKEND" envDefault:"local"`
	DSN         string `env:"DSN" envDefault:"file:authsession.db?cache=shared"`
	SigningKey  string `env:"SIGNING_KEY"`
	AutoConfirm bool   `env:"AUTO_CONFIRM"`
	GoTrueURL   string `env:"GOTRUE_URL"`
	AnonKey     string `env:"ANON_KEY"`
	SessionFile string `env:"SESSION_FILE"`
	Addr        string `env:"ADDR" envDefault:":8572"`
	Debug       bool   `env:"DEBUG"`

	session authsession.Options
}

func loadConfig() (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: envPrefix})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	session, err := authsession.LoadOptions(envPrefix)
	if err != nil {
		return nil, err
	}
	cfg.session = session

	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Backend) {
	case backendLocal:
		if c.SigningKey == "" {
			return fmt.Errorf("local backend requires a signing key (--signing-key or %sSIGNING_KEY)", envPrefix)
		}
	case backendGoTrue:
		if c.GoTrueURL == "" {
			return fmt.Errorf("gotrue backend requires a url (--gotrue-url or %sGOTRUE_URL)", envPrefix)
		}
	default:
		return fmt.Errorf("unknown backend %q, expected %q or %q", c.Backend, backendLocal, backendGoTrue)
	}
	return nil
}
