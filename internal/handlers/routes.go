package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/storeit/backend/internal/middleware"
)

type Routes struct {
	Auth           *AuthHandler
	Users          *UsersHandler
	Files          *FilesHandler
	Audit          *AuditHandler
	AuthMiddleware *middleware.AuthMiddleware
	AllowOrigins   string
	BodyLimit      int
}

// NewApp builds the fiber app with the full middleware chain and API routes.
func NewApp(r Routes) *fiber.App {
	app := fiber.New(fiber.Config{BodyLimit: r.BodyLimit})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(r.AllowOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	auth := r.AuthMiddleware

	authRoutes := api.Group("/auth")
	authRoutes.Post("/sign-up", r.Auth.SignUp)
	authRoutes.Post("/sign-in", r.Auth.SignIn)
	authRoutes.Post("/verify", r.Auth.Verify)
	authRoutes.Post("/sign-out", auth.OptionalAuth, r.Auth.SignOut)
	authRoutes.Get("/me", auth.OptionalAuth, r.Users.Me)

	fileRoutes := api.Group("/files", auth.RequireAuth)
	fileRoutes.Get("/", r.Files.List)
	fileRoutes.Post("/upload", r.Files.Upload)
	fileRoutes.Get("/usage", r.Files.Usage)
	fileRoutes.Get("/:id", r.Files.Get)
	fileRoutes.Get("/:id/download", r.Files.Download)
	fileRoutes.Get("/:id/download-url", r.Files.DownloadURL)
	fileRoutes.Patch("/:id/name", r.Files.Rename)
	fileRoutes.Put("/:id/users", r.Files.UpdateCollaborators)
	fileRoutes.Delete("/:id/users", r.Files.RemoveCollaborator)
	fileRoutes.Post("/:id/actions", r.Files.Action)
	fileRoutes.Delete("/:id", r.Files.Delete)

	api.Get("/audit-log/export", auth.RequireAuth, r.Audit.ExportMyLog)

	return app
}
