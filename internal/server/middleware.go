package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskdeck/internal/identity"
)

// IdentityKey is the fiber Locals key holding the caller's identity.Identity.
const IdentityKey = "identity"

// AuthMiddleware validates the bearer token and stores the identity in the
// request locals. Browsers cannot set headers on websocket upgrades, so a
// token query parameter is accepted as well. onAuth, if set, is called with
// the owner id of every authenticated request.
func AuthMiddleware(auth *identity.Issuer, onAuth func(ownerID string)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			header := c.Get(fiber.HeaderAuthorization)
			if header == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Error:   "unauthorized",
					Message: "Authorization header is required",
				})
			}
			if !strings.HasPrefix(header, "Bearer ") {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid authorization header format. Use: Bearer <token>",
				})
			}
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}

		id, err := auth.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(IdentityKey, id)
		if onAuth != nil {
			onAuth(id.OwnerID)
		}
		return c.Next()
	}
}

// owner returns the authenticated owner id.
func owner(c *fiber.Ctx) string {
	id, _ := c.Locals(IdentityKey).(identity.Identity)
	return id.OwnerID
}
