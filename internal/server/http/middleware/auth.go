package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/ordercheckout/internal/pkg/auth"
)

const (
	// UserIDContextKey holds the authenticated order owner.
	UserIDContextKey = "userID"
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "ordercheckout_token"
)

// TokenParser resolves a session token to its user.
type TokenParser interface {
	ParseToken(token string) (int64, error)
}

// AuthRequired rejects requests without a valid session token. A bearer
// header wins over the cookie.
func AuthRequired(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		userID, err := parser.ParseToken(token)
		switch {
		case errors.Is(err, pkgAuth.ErrInvalidToken):
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		case err != nil:
			_ = c.Error(err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	token, _ := c.Cookie(SessionCookie)
	return token
}

// SetAuthCookie hands the session token back as an HttpOnly cookie, marked
// Secure when the request came over TLS, and as an Authorization header.
func SetAuthCookie(c *gin.Context, token string) {
	secure := c.Request != nil && c.Request.TLS != nil
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, 0, "/", "", secure, true)
	c.Header("Authorization", "Bearer "+token)
}
