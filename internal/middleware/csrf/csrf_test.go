package csrf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedEcho(cfg Config) *echo.Echo {
	e := echo.New()
	e.Use(Middleware(cfg))
	e.GET("/csrf", Issue(cfg))
	e.POST("/orders", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	e.GET("/orders", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	e.POST("/webhooks/payment", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	return e
}

func TestMiddleware_RejectsBeforeHandlerRuns(t *testing.T) {
	t.Parallel()

	e := newProtectedEcho(Config{})

	tests := []struct {
		name   string
		cookie string
		header string
	}{
		{name: "no cookie no header"},
		{name: "cookie without header", cookie: "tok-1"},
		{name: "header without cookie", header: "tok-1"},
		{name: "mismatch", cookie: "tok-1", header: "tok-2"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/orders", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"error": "csrf"}`, rec.Body.String())
		})
	}
}

func TestMiddleware_MatchingTokenPasses(t *testing.T) {
	t.Parallel()

	e := newProtectedEcho(Config{})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok-1"})
	req.Header.Set("X-CSRF-Token", "tok-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_SafeMethodsPass(t *testing.T) {
	t.Parallel()

	e := newProtectedEcho(Config{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_SkipPaths(t *testing.T) {
	t.Parallel()

	e := newProtectedEcho(Config{SkipPaths: []string{"/webhooks/payment"}})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssue_TokenRoundTrip(t *testing.T) {
	t.Parallel()

	e := newProtectedEcho(Config{})

	req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	var issued *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "XSRF-TOKEN" {
			issued = ck
		}
	}
	require.NotNil(t, issued)
	assert.Equal(t, body.Token, issued.Value)
	assert.False(t, issued.HttpOnly) // the page script must read it to echo it

	// The issued pair passes the guard.
	req = httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.AddCookie(issued)
	req.Header.Set("X-CSRF-Token", body.Token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
