package authsession

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type SessionControllerRoutes struct {
	State   string
	SignIn  string
	SignUp  string
	SignOut string
}

// SessionController exposes the provider state and actions as JSON routes
type SessionController struct {
	Debug    bool
	Logger   Logger
	Provider *Provider
	Routes   *SessionControllerRoutes
}

type SessionControllerOption func(*SessionController) *SessionController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerRoutes overrides the default route paths
func WithControllerRoutes(routes SessionControllerRoutes) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Routes = &routes
		return c
	}
}

func NewSessionController(p *Provider, opts ...SessionControllerOption) *SessionController {
	c := &SessionController{
		Logger:   defLogger{},
		Provider: p,
		Routes: &SessionControllerRoutes{
			State:   "/session",
			SignIn:  "/session/sign-in",
			SignUp:  "/session/sign-up",
			SignOut: "/session/sign-out",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Provider == nil {
		panic("Missing Provider in session controller...")
	}

	return c
}

// RegisterRoutes registers the session routes.
func (c *SessionController) RegisterRoutes(app RouteRegistrar) {
	app.Get(c.Routes.State, c.ShowState)
	app.Post(c.Routes.SignIn, c.SignIn)
	app.Post(c.Routes.SignUp, c.SignUp)
	app.Post(c.Routes.SignOut, c.SignOut)
}

// StateView is the JSON rendering of an AuthState. Tokens are not exposed.
type StateView struct {
	User          *User      `json:"user"`
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsLoading     bool       `json:"is_loading"`
	Loading       bool       `json:"loading"`
	IsAdmin       bool       `json:"is_admin"`
}

// NewStateView renders state for clients
func NewStateView(state AuthState) StateView {
	view := StateView{
		User:          state.User,
		Authenticated: state.SignedIn(),
		IsLoading:     state.IsLoading,
		Loading:       state.Loading(),
		IsAdmin:       state.IsAdmin,
	}
	if state.Session != nil {
		view.ExpiresAt = state.Session.ExpiresAt
	}
	return view
}

func (c *SessionController) ShowState(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, NewStateView(c.Provider.State()))
}

func (c *SessionController) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, validationError(err, "sign_in"))
	}

	if c.Debug {
		c.Logger.Debug("sign in payload for %s", payload.Email)
	}

	if err := c.Provider.SignIn(ctx.Context(), payload.Email, payload.Password); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, NewStateView(c.Provider.State()))
}

func (c *SessionController) SignUp(ctx router.Context) error {
	payload := new(SignUpRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, validationError(err, "sign_up"))
	}

	if err := c.Provider.SignUp(ctx.Context(), payload.Email, payload.Password, payload.FullName); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status":  "pending_confirmation",
		"session": NewStateView(c.Provider.State()),
	})
}

func (c *SessionController) SignOut(ctx router.Context) error {
	c.Provider.SignOut(ctx.Context())
	return ctx.JSON(router.StatusOK, NewStateView(c.Provider.State()))
}

func (c *SessionController) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	c.Logger.Info(
		"session controller error: %s category=%s text_code=%s details=%s",
		richErr.Message,
		richErr.Category,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	return ctx.JSON(statusForError(richErr), map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func statusForError(richErr *goerrors.Error) int {
	if richErr == nil {
		return router.StatusInternalServerError
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	}

	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	return router.StatusInternalServerError
}
