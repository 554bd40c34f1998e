package server

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles carried by inbound tokens.
const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// AuthConfig holds the inbound-token settings. Tokens are issued elsewhere;
// the engine only verifies them.
type AuthConfig struct {
	// SigningKey verifies HS256 bearer tokens. Empty disables verification:
	// the owner is taken from the X-Owner-ID header and granted admin, which
	// is only acceptable for local development.
	SigningKey string
}

// Claims is the token payload the engine understands: the subject is the
// owner id, plus an optional role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware validates the Authorization header and stores the owner
// id and role in request locals. Probe and metrics paths skip auth.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		if cfg.SigningKey == "" {
			owner := c.Get("X-Owner-ID")
			if owner == "" {
				owner = "dev"
			}
			c.Locals("owner_id", owner)
			c.Locals("role", RoleAdmin)
			return c.Next()
		}

		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(cfg.SigningKey), nil
			})
		if err != nil || !token.Valid || claims.Subject == "" {
			logger.Warn().Err(err).Str("path", path).Msg("rejected bearer token")
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_token", "Unauthorized",
				"Invalid bearer token")
		}

		role := claims.Role
		if role == "" {
			role = RoleOwner
		}
		c.Locals("owner_id", claims.Subject)
		c.Locals("role", role)
		return c.Next()
	}
}

// requireAdmin gates the admin route group.
func requireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals("role").(string); role != RoleAdmin {
			return problemResponse(c, fiber.StatusForbidden,
				"insufficient_role", "Forbidden",
				"Admin role required for this operation")
		}
		return c.Next()
	}
}

func ownerID(c *fiber.Ctx) string {
	id, _ := c.Locals("owner_id").(string)
	return id
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
