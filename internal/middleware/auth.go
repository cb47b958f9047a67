package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/pkg/logger"
	"github.com/storeit/backend/pkg/utils"
)

const currentUserKey = "currentUser"

// CookieCredentials persists the session credential in an HttpOnly cookie.
// The cookie has no expiry of its own; the session record decides lifetime.
type CookieCredentials struct {
	c      *fiber.Ctx
	name   string
	secure bool
}

func NewCookieCredentials(c *fiber.Ctx, name string, secure bool) *CookieCredentials {
	return &CookieCredentials{c: c, name: name, secure: secure}
}

func (cc *CookieCredentials) Credential() (string, bool) {
	value := cc.c.Cookies(cc.name)
	return value, value != ""
}

func (cc *CookieCredentials) SetCredential(credential string) {
	cc.c.Cookie(&fiber.Cookie{
		Name:     cc.name,
		Value:    credential,
		Path:     "/",
		HTTPOnly: true,
		Secure:   cc.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (cc *CookieCredentials) ClearCredential() {
	cc.c.Cookie(&fiber.Cookie{
		Name:     cc.name,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   cc.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
}

type AuthMiddleware struct {
	Sessions     *services.SessionManager
	CookieName   string
	SecureCookie bool
}

func NewAuthMiddleware(sessions *services.SessionManager, cookieName string, secureCookie bool) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions, CookieName: cookieName, SecureCookie: secureCookie}
}

// Credentials returns the cookie-backed credential store for this request.
func (a *AuthMiddleware) Credentials(c *fiber.Ctx) *CookieCredentials {
	return NewCookieCredentials(c, a.CookieName, a.SecureCookie)
}

func CORS(allowOrigins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Request-Seq",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders:    "X-View-Version, X-Request-Seq",
		AllowCredentials: true,
	})
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	user, err := a.Sessions.ResolveCurrentUser(c.UserContext(), a.Credentials(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Warn("session_user_not_found", map[string]interface{}{
				"ip":   c.IP(),
				"path": c.Path(),
			})
			return utils.Error(c, fiber.StatusUnauthorized, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed to resolve session")
	}
	if user == nil {
		logger.Warn("session_missing", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	c.Locals(currentUserKey, user)
	c.Locals("userID", user.ID)
	return c.Next()
}

// OptionalAuth attaches the current user when the session resolves and
// otherwise continues anonymously.
func (a *AuthMiddleware) OptionalAuth(c *fiber.Ctx) error {
	user, err := a.Sessions.ResolveCurrentUser(c.UserContext(), a.Credentials(c))
	if err == nil && user != nil {
		c.Locals(currentUserKey, user)
		c.Locals("userID", user.ID)
	}
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *services.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*services.User)
	if !ok {
		return nil
	}
	return user
}

// RequestPath is the client view a mutation should invalidate, taken from
// the X-View-Path header and defaulting to the root.
func RequestPath(c *fiber.Ctx) string {
	path := strings.TrimSpace(c.Get("X-View-Path"))
	if path == "" {
		return "/"
	}
	return path
}
