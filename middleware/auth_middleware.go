package middleware

import (
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
)

const (
	// SessionCookie holds the signed session token.
	SessionCookie = "session"

	// CallerKey is the locals key of the services.Caller.
	CallerKey = "caller"

	tokenKey = "user"
)

// Protected rejects requests without a valid session cookie and stores the
// caller for handlers.
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(secret),
		SigningMethod:  jwtware.HS256,
		TokenLookup:    "cookie:" + SessionCookie,
		ContextKey:     tokenKey,
		ErrorHandler:   jwtError,
		SuccessHandler: attachCaller(true),
	})
}

// OptionalSession attaches the caller when a valid session is present and
// lets anonymous requests through.
func OptionalSession(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(secret),
		SigningMethod:  jwtware.HS256,
		TokenLookup:    "cookie:" + SessionCookie,
		ContextKey:     tokenKey,
		ErrorHandler:   func(c *fiber.Ctx, err error) error { return c.Next() },
		SuccessHandler: attachCaller(false),
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No user is logged in"})
}

func attachCaller(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(tokenKey).(*jwt.Token)
		if ok {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if caller, err := services.CallerFromClaims(claims); err == nil {
					c.Locals(CallerKey, caller)
					return c.Next()
				}
			}
		}
		if required {
			return jwtError(c, nil)
		}
		return c.Next()
	}
}

// Current returns the caller attached by Protected or OptionalSession.
func Current(c *fiber.Ctx) (services.Caller, bool) {
	caller, ok := c.Locals(CallerKey).(services.Caller)
	return caller, ok
}

// RequireRole must run after Protected.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := Current(c)
		if !ok {
			return jwtError(c, nil)
		}
		for _, r := range roles {
			if caller.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: " + string(roles[0]) + " access required",
		})
	}
}
