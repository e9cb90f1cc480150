package middleware

import (
	"context"
	"strings"

	"emojifeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const actorLocalsKey = "actorID"

// ResolveActor reads the session token minted by the upstream identity provider and,
// when it verifies, stores the subject as the request actor. It stands in for the
// upstream session verifier, so handlers only ever see a trusted actor id. Requests
// without a valid token continue anonymously; ActorRequired decides whether that is
// acceptable.
func ResolveActor(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return c.Next()
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			Logger.DebugContext(c.UserContext(), "ignoring invalid session token")
			return c.Next()
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return c.Next()
		}

		c.Locals(actorLocalsKey, sub)
		c.SetUserContext(WithActor(c.UserContext(), sub))
		return c.Next()
	}
}

// ActorRequired rejects requests that reached it without a resolved actor.
func ActorRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorID(c); !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		return c.Next()
	}
}

// ActorID returns the actor resolved for this request, if any.
func ActorID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(actorLocalsKey).(string)
	return id, ok && id != ""
}

// WithActor returns a context carrying the actor id for downstream logging.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorIDKey, actorID)
}

func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
