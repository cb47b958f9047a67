package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storeit/backend/internal/middleware"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/pkg/logger"
	"github.com/storeit/backend/pkg/utils"
)

type AuthHandler struct {
	Auth     *services.AuthService
	Sessions *middleware.AuthMiddleware
}

func NewAuthHandler(auth *services.AuthService, sessions *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{Auth: auth, Sessions: sessions}
}

type signUpRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type signInRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
}

func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req signUpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "fullName is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}

	accountID, err := h.Auth.CreateAccount(c.UserContext(), req.FullName, req.Email, c.IP())
	if err != nil {
		return respondError(c, err, "failed creating account")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"accountId": accountID})
}

// SignIn answers an unknown email with a 404 that still carries a null
// account id, which the sign-in form uses to stay on the email step.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}

	accountID, err := h.Auth.SignIn(c.UserContext(), req.Email, c.IP())
	if errors.Is(err, services.ErrUserNotFound) {
		return utils.ErrorWithData(c, fiber.StatusNotFound, services.KindUserNotFound.String(), fiber.Map{"accountId": nil})
	}
	if err != nil {
		return respondError(c, err, "failed signing in")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"accountId": accountID})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.AccountID) == "" || strings.TrimSpace(req.Code) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "accountId and code are required")
	}

	sessionID, err := h.Auth.VerifyCode(c.UserContext(), h.Sessions.Credentials(c), req.AccountID, strings.TrimSpace(req.Code), clientInfo(c))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCode) {
			logger.Warn("otp_verify_rejected", map[string]interface{}{
				"account_id": req.AccountID,
				"ip":         c.IP(),
			})
		}
		return respondError(c, err, "failed verifying code")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"sessionId": sessionID})
}

func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	userID := ""
	if user := middleware.GetCurrentUser(c); user != nil {
		userID = user.ID
	}

	redirect, err := h.Auth.SignOut(c.UserContext(), h.Sessions.Credentials(c), userID, c.IP())
	if err != nil {
		return respondError(c, err, "failed signing out")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"redirect": redirect})
}
