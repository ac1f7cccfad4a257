package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Double-submit pattern: the token lives in a cookie the browser sends
// back automatically, and the page must echo the same value in a header.
// Cross-origin attackers can trigger the cookie but cannot read it, so
// they cannot produce the header.
type Config struct {
	CookieName string
	HeaderName string

	CookiePath string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	MaxAge     time.Duration

	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName: "XSRF-TOKEN",
		HeaderName: "X-CSRF-Token",
		CookiePath: "/",
		SameSite:   http.SameSiteLaxMode,
		MaxAge:     24 * time.Hour,
	}
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	skip := map[string]struct{}{}
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if _, ok := skip[req.URL.Path]; ok {
				return next(c)
			}

			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			// Fail closed: no cookie, no header, no mismatch passes.
			// Rejections use the same {"error": code} shape as the
			// handlers so clients parse one format everywhere.
			token := readCookie(req, cfg.CookieName)
			if token == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "csrf"})
			}
			provided := req.Header.Get(cfg.HeaderName)
			if provided == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "csrf"})
			}
			if !secureCompare(token, provided) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "csrf"})
			}

			return next(c)
		}
	}
}

// Issue returns a handler that mints the token and sets the cookie. The
// client echoes the token back in the header on mutating calls.
func Issue(cfg Config) echo.HandlerFunc {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	return func(c echo.Context) error {
		token := readCookie(c.Request(), cfg.CookieName)
		if token == "" {
			var err error
			token, err = newToken(32)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
			}
		}
		setCookie(c, cfg, token)
		return c.JSON(http.StatusOK, echo.Map{"token": token})
	}
}

func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func setCookie(c echo.Context, cfg Config, token string) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     cfg.CookiePath,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: false,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		SameSite: cfg.SameSite,
	})
}

func readCookie(req *http.Request, name string) string {
	ck, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func secureCompare(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
