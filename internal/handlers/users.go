package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/storeit/backend/internal/middleware"
	"github.com/storeit/backend/pkg/utils"
)

type UsersHandler struct{}

func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// Me returns the signed-in user, or null data when the request carries no
// live session.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Success(c, fiber.StatusOK, nil)
	}
	return utils.Success(c, fiber.StatusOK, user)
}
