package middleware

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	config "github.com/IlyaVishnyakMuz/apgram-backend/configs"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
	"github.com/IlyaVishnyakMuz/apgram-backend/pkg/utils"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// RequesterResolver turns an incoming request into an owner identity, or
// reports it unauthenticated. Everything downstream trusts this resolution;
// handlers only ever see the resolved user id.
type RequesterResolver interface {
	Resolve(c *fiber.Ctx) (int64, error)
}

// tokenThenKeyResolver tries the JWT cookie first and falls back to the
// legacy api_key lookup. Both paths hide behind the one interface so the
// fallback never leaks into individual endpoints.
type tokenThenKeyResolver struct {
	cfg   config.Config
	users repository.UserRepository
}

func NewRequesterResolver(cfg config.Config, users repository.UserRepository) RequesterResolver {
	return &tokenThenKeyResolver{cfg: cfg, users: users}
}

func (r *tokenThenKeyResolver) Resolve(c *fiber.Ctx) (int64, error) {
	if tokenString := c.Cookies(r.cfg.CookieName); tokenString != "" {
		claims, err := utils.ValidateToken(r.cfg.SecretKey, tokenString)
		if err != nil {
			return 0, ErrUnauthenticated
		}
		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil || userID == 0 {
			return 0, ErrUnauthenticated
		}
		return userID, nil
	}

	if apiKey := c.Query("api_key"); apiKey != "" {
		userID, found, err := r.users.GetByApiKey(c.Context(), apiKey)
		if err != nil || !found {
			return 0, ErrUnauthenticated
		}
		return *userID, nil
	}

	return 0, ErrUnauthenticated
}

type AuthMiddleware struct {
	resolver RequesterResolver
}

func NewAuthMiddleware(resolver RequesterResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := m.resolver.Resolve(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid credentials",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
