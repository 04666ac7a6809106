package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Stagnxzione/ra-userbot/pkg/util"
)

const (
	principalKey = "auth_principal"
	apiKeyHeader = "X-API-Key"
)

// Method tells how a caller authenticated.
type Method string

const (
	MethodBearer Method = "bearer"
	MethodAPIKey Method = "api_key"
)

// Principal represents the authenticated caller.
type Principal struct {
	Caller string
	Method Method
}

// AuthMiddleware accepts either a bearer JWT or the shared API key.
type AuthMiddleware struct {
	tokens     *TokenManager
	apiKeyHash string
}

// NewAuthMiddleware constructs middleware. An empty apiKeyHash disables the
// API key path.
func NewAuthMiddleware(tokens *TokenManager, apiKeyHash string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, apiKeyHash: apiKeyHash}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if key := c.Get(apiKeyHeader); key != "" {
		if err := CompareAPIKey(m.apiKeyHash, key); err != nil {
			return util.NewUnauthorized("invalid api key")
		}
		c.Locals(principalKey, &Principal{Caller: "api_key", Method: MethodAPIKey})
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}
	if m.tokens == nil {
		return util.NewUnauthorized("token authentication not configured")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{Caller: claims.Caller, Method: MethodBearer})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
