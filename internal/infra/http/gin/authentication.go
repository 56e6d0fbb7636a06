package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"marketplace/internal/app/apperr"
	domainuser "marketplace/internal/domain/user"
)

const principalContextKey = "marketplace.principal"

type principal struct {
	ID    string
	Email string
	Name  string
	Role  string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role != "" && strings.EqualFold(p.Role, role)
}

// TokenResolver maps a bearer token to the active account it belongs to.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*domainuser.User, error)
}

type AuthMiddleware struct {
	Service TokenResolver
	Logger  *slog.Logger
}

// Handle attaches the principal when a valid bearer token is present.
// Routes that need one call requireAuth; a bad token is not an error here.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	user, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal && m.Logger != nil {
			m.Logger.WarnContext(c.Request.Context(), "token resolution failed", "err", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:    string(user.ID),
		Email: user.Email,
		Name:  user.DisplayName(),
		Role:  string(user.Role),
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
	c.Set("principal_id", p.ID)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireAuth(c *gin.Context) (principal, bool) {
	return requireRole(c, "")
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(apperr.Unauthenticated("auth required", nil)))
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody(apperr.Forbidden("insufficient permissions", nil)))
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
