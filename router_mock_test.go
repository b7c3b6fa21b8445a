package authsession

import (
	"context"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockContext implements router.Context. Reads of Locals are served from
// LocalsMock; writes, Bind, JSON and the request context go through the mock.
type MockContext struct {
	mock.Mock
	LocalsMock map[any]any
	ParamsM    map[string]string
	QueriesM   map[string]string
	HeadersM   map[string]string
	StoreM     map[string]any
	statusCode int
}

var _ router.Context = (*MockContext)(nil)

func newMockContext() *MockContext {
	return &MockContext{
		LocalsMock: map[any]any{},
		ParamsM:    map[string]string{},
		QueriesM:   map[string]string{},
		HeadersM:   map[string]string{},
		StoreM:     map[string]any{},
	}
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) == 0 {
		return m.LocalsMock[key]
	}
	args := m.Called(key, value[0])
	m.LocalsMock[key] = value[0]
	return args.Get(0)
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	ctx, _ := args.Get(0).(context.Context)
	return ctx
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Bind(v any) error {
	return m.Called(v).Error(0)
}

func (m *MockContext) JSON(code int, v any) error {
	return m.Called(code, v).Error(0)
}

func (m *MockContext) Method() string { return "GET" }
func (m *MockContext) Path() string   { return "/" }

func (m *MockContext) Param(name string, defaultValue ...string) string {
	if v, ok := m.ParamsM[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int { return defaultValue }

func (m *MockContext) Query(name string, defaultValue string) string {
	if v, ok := m.QueriesM[name]; ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) QueryInt(name string, defaultValue int) int { return defaultValue }
func (m *MockContext) Queries() map[string]string                 { return m.QueriesM }
func (m *MockContext) Body() []byte                               { return nil }

func (m *MockContext) Render(name string, bind any, layouts ...string) error { return nil }

func (m *MockContext) Cookie(cookie *router.Cookie)                      {}
func (m *MockContext) Cookies(key string, defaultValue ...string) string { return "" }
func (m *MockContext) CookieParser(out any) error                        { return nil }
func (m *MockContext) Redirect(location string, status ...int) error     { return nil }

func (m *MockContext) RedirectToRoute(routeName string, params router.ViewContext, status ...int) error {
	return nil
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error { return nil }

func (m *MockContext) Header(key string) string { return m.HeadersM[key] }
func (m *MockContext) Referer() string          { return "" }
func (m *MockContext) OriginalURL() string      { return "/" }

func (m *MockContext) Status(code int) router.Context {
	m.statusCode = code
	return m
}

func (m *MockContext) Send(body []byte) error       { return nil }
func (m *MockContext) SendString(body string) error { return nil }
func (m *MockContext) NoContent(code int) error     { return nil }

func (m *MockContext) SetHeader(key string, value string) router.Context {
	m.HeadersM[key] = value
	return m
}

func (m *MockContext) Set(key string, value any) { m.StoreM[key] = value }

func (m *MockContext) Get(key string, def any) any {
	if v, ok := m.StoreM[key]; ok {
		return v
	}
	return def
}

func (m *MockContext) GetString(key string, def string) string {
	if s, ok := m.Get(key, def).(string); ok {
		return s
	}
	return def
}

func (m *MockContext) GetInt(key string, def int) int {
	if i, ok := m.Get(key, def).(int); ok {
		return i
	}
	return def
}

func (m *MockContext) GetBool(key string, def bool) bool {
	if b, ok := m.Get(key, def).(bool); ok {
		return b
	}
	return def
}

func (m *MockContext) Next() error { return nil }
