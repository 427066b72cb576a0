package middlewares

import (
	"crypto/subtle"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/pkg/response"
)

const (
	APIKeyHeader = "x-api-key"

	// ActorHeader lets trusted callers name the actor the rate limiter counts
	// against. Without it the client IP is used.
	ActorHeader = "x-actor-id"

	actorContextKey = "actor"
)

// secureCompare compares two strings in a way that is safer against timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func APIKeyAuth(apiKey string) echo.MiddlewareFunc {
	// If the API key is not configured, treat this as a server-side misconfiguration.
	if apiKey == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return response.InternalServerError(
					c,
					fmt.Errorf("API key is not configured for this endpoint group"),
				)
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(APIKeyHeader)
			if token == "" || !secureCompare(token, apiKey) {
				return response.Unauthorized(c)
			}

			actor := c.Request().Header.Get(ActorHeader)
			if actor == "" {
				actor = "ip:" + c.RealIP()
			}
			c.Set(actorContextKey, actor)

			return next(c)
		}
	}
}

// Actor returns the rate limit actor set by APIKeyAuth, or "anonymous".
func Actor(c echo.Context) string {
	if actor, ok := c.Get(actorContextKey).(string); ok && actor != "" {
		return actor
	}
	return "anonymous"
}
