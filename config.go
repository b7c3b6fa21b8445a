package authsession

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultProfileTable  = "profiles"
	DefaultRedirectPath  = "/"
	DefaultLookupTimeout = 10 * time.Second
)

// Options is the default Config implementation. Values can be read from the
// environment with LoadOptions.
type Options struct {
	SiteURL       string        `env:"SITE_URL"`
	RedirectPath  string        `env:"REDIRECT_PATH" envDefault:"/"`
	ProfileTable  string        `env:"PROFILE_TABLE" envDefault:"profiles"`
	AdminRole     string        `env:"ADMIN_ROLE" envDefault:"admin"`
	LookupTimeout time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"10s"`
}

var _ Config = Options{}

// DefaultOptions returns options with every default applied
func DefaultOptions() Options {
	return Options{
		RedirectPath:  DefaultRedirectPath,
		ProfileTable:  DefaultProfileTable,
		AdminRole:     string(RoleAdmin),
		LookupTimeout: DefaultLookupTimeout,
	}
}

// LoadOptions parses options from environment variables using prefix,
// e.g. prefix "AUTH_SESSION_" reads AUTH_SESSION_SITE_URL.
func LoadOptions(prefix string) (Options, error) {
	opts, err := env.ParseAsWithOptions[Options](env.Options{Prefix: prefix})
	if err != nil {
		return Options{}, fmt.Errorf("parse env: %w", err)
	}
	return opts, nil
}

func (o Options) GetSiteURL() string {
	return o.SiteURL
}

func (o Options) GetRedirectPath() string {
	if o.RedirectPath == "" {
		return DefaultRedirectPath
	}
	return o.RedirectPath
}

func (o Options) GetProfileTable() string {
	if o.ProfileTable == "" {
		return DefaultProfileTable
	}
	return o.ProfileTable
}

func (o Options) GetAdminRole() string {
	if o.AdminRole == "" {
		return string(RoleAdmin)
	}
	return o.AdminRole
}

func (o Options) GetLookupTimeout() time.Duration {
	if o.LookupTimeout <= 0 {
		return DefaultLookupTimeout
	}
	return o.LookupTimeout
}

// RedirectTarget joins the site url (the application's own origin) with the
// redirect path. It returns an empty string when no site url is configured.
func RedirectTarget(cfg Config) string {
	if cfg == nil {
		return ""
	}

	origin := strings.TrimRight(strings.TrimSpace(cfg.GetSiteURL()), "/")
	if origin == "" {
		return ""
	}

	path := cfg.GetRedirectPath()
	if path == "" {
		path = DefaultRedirectPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return origin + path
}
