package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/pkg/utils"
)

// ViewVersionHeader reports the version of the view a response was built
// from so clients can tell when a listing has gone stale.
const ViewVersionHeader = "X-View-Version"

var kindStatus = map[services.Kind]int{
	services.KindNotFound:          fiber.StatusNotFound,
	services.KindUserNotFound:      fiber.StatusNotFound,
	services.KindOtpDispatchFailed: fiber.StatusBadGateway,
	services.KindInvalidCode:       fiber.StatusUnauthorized,
	services.KindUploadFailed:      fiber.StatusInternalServerError,
	services.KindDeleteFailed:      fiber.StatusInternalServerError,
	services.KindPersistenceFailed: fiber.StatusInternalServerError,
	services.KindAuthRequired:      fiber.StatusUnauthorized,
}

// respondError writes the envelope for a service error. Errors without a
// kind are reported as fallback with a 500.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	kind := services.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		return utils.Error(c, fiber.StatusInternalServerError, fallback)
	}
	return utils.Error(c, status, kind.String())
}

func clientInfo(c *fiber.Ctx) identity.ClientInfo {
	return identity.ClientInfo{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}

func cleanEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		email = services.NormalizeEmail(email)
		if email != "" {
			out = append(out, email)
		}
	}
	return out
}
