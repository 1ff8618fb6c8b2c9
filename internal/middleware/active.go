package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
)

// AccountState is what the auth layer needs to know about a user on every request.
type AccountState struct {
	Role   string
	Active bool
}

// AccountChecker looks up the current state of a user.
type AccountChecker interface {
	AccountState(ctx context.Context, userID uuid.UUID) (AccountState, error)
}

// RequireActiveUser re-reads the user behind the token. Suspended or
// banned users are rejected even while their token is still valid.
func RequireActiveUser(checker AccountChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, _ := c.Locals("userId").(string)
		id, err := uuid.Parse(uid)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		st, err := checker.AccountState(c.UserContext(), id)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return fiber.ErrUnauthorized
			}
			return err
		}
		if !st.Active {
			return apperrors.ErrAccountInactive
		}

		c.Locals("role", st.Role)
		return c.Next()
	}
}
