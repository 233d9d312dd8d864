package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"marketchat/internal/infra/config"
)

const principalContextKey = "marketchat.principal"

type principal struct {
	ID    string
	Name  string
	Token string
}

// TokenTable resolves bearer tokens to dev users.
type TokenTable map[string]config.DevUser

// AuthMiddleware attaches the principal for a known bearer token. Unknown or
// missing tokens pass through; handlers call requirePrincipal.
type AuthMiddleware struct {
	Tokens TokenTable
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.Next()
		return
	}
	user, ok := m.Tokens[token]
	if !ok {
		c.Next()
		return
	}
	setPrincipal(c, principal{ID: user.ID, Name: user.Name, Token: token})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
	c.Set("user_id", p.ID)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
