package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/repairdesk/internal/app/service/user"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/response"
)

const (
	HeaderActor = "X-Actor"
	// KeyClaims holds the verified *user.Claims on gin.Context.
	KeyClaims = "claims"
	// anonymousActor is recorded when auth is disabled and no X-Actor is sent.
	anonymousActor = "user"
)

// TokenParser verifies a session token.
type TokenParser interface {
	Parse(token string) (*user.Claims, error)
}

// SessionToken reads the session token from the cookie, falling back to a
// Bearer authorization header.
func SessionToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// AuthMiddleware resolves the actor of the request. With auth enabled a
// valid session token is required and its email becomes the actor; otherwise
// the X-Actor header (or "user") is trusted.
func AuthMiddleware(cfg config.AuthConfig, parser TokenParser, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActor))
		if cfg.Enabled {
			claims, err := parser.Parse(SessionToken(c, cfg.CookieName))
			if err != nil {
				response.Abort(c, err)
				return
			}
			c.Set(KeyClaims, claims)
			actor = claims.Email
		}
		if actor == "" {
			actor = anonymousActor
		}

		c.Set(logctx.KeyActor, actor)
		ctx := logctx.WithValue(c.Request.Context(), logctx.KeyActor, actor)
		c.Request = c.Request.WithContext(ctx)
		setLogger(c, logctx.FromGin(c, base).With("actor", actor))
		c.Next()
	}
}

// Claims returns the verified session claims, if the request carried any.
func Claims(c *gin.Context) (*user.Claims, bool) {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*user.Claims)
	return claims, ok && claims != nil
}

// RequireRole rejects requests whose session role is not one of roles. It is
// a no-op when auth is disabled.
func RequireRole(cfg config.AuthConfig, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, fmt.Errorf("%w: missing session", apperr.ErrUnauthorized))
			return
		}
		for _, r := range roles {
			if string(claims.Role) == r {
				c.Next()
				return
			}
		}
		response.Abort(c, fmt.Errorf("%w: role %s may not perform this action", apperr.ErrForbidden, claims.Role))
	}
}
