package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/storeit/backend/internal/database"
	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/handlers"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/internal/mailer"
	"github.com/storeit/backend/internal/middleware"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/internal/storage"
	"github.com/storeit/backend/pkg/logger"
)

var (
	flagAuditExportInterval time.Duration
	flagPurgeInterval       time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		db, err := database.Connect(cfg.DB)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}

		blobs, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed ensuring bucket: %w", err)
		}

		mail, err := mailer.New(cfg.Mail)
		if err != nil {
			return fmt.Errorf("mailer initialization failed: %w", err)
		}

		store := docstore.NewGormStore(db)
		views := services.NewViewVersions()
		provider := identity.NewLocalProvider(db, mail, cfg.OTP)

		auditService := services.NewAuditService(db, blobs)
		defer auditService.Close()
		if flagAuditExportInterval > 0 {
			auditService.StartExporter(ctx, flagAuditExportInterval)
		}
		startPurger(ctx, provider, flagPurgeInterval)

		fileService := services.NewFileService(store, blobs, views, auditService, cfg.Usage.CapacityBytes)
		authService := services.NewAuthService(store, provider, auditService, cfg.Users.AvatarPlaceholderURL)
		authMiddleware := middleware.NewAuthMiddleware(services.NewSessionManager(provider, store), cfg.Session.CookieName, cfg.Session.SecureCookie)

		app := handlers.NewApp(handlers.Routes{
			Auth:           handlers.NewAuthHandler(authService, authMiddleware),
			Users:          handlers.NewUsersHandler(),
			Files:          handlers.NewFilesHandler(fileService, views),
			Audit:          handlers.NewAuditHandler(db),
			AuthMiddleware: authMiddleware,
			AllowOrigins:   cfg.Server.FrontendURL,
			BodyLimit:      cfg.Server.BodyLimitMB * 1024 * 1024,
		})

		listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("server_starting", map[string]interface{}{
			"port":         cfg.Server.Port,
			"address":      listenAddr,
			"storage_type": cfg.Storage.Type,
			"db_driver":    cfg.DB.Driver,
			"body_limit":   fmt.Sprintf("%dMB", cfg.Server.BodyLimitMB),
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- app.Listen(listenAddr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("server_shutting_down", map[string]interface{}{"signal": sig.String()})
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				logger.Error("server_shutdown_failed", err, nil)
			}
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}
	},
}

// startPurger periodically deletes expired one-time codes and sessions.
func startPurger(ctx context.Context, provider *identity.LocalProvider, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := provider.PurgeExpired(ctx)
				if err != nil {
					logger.Error("credential_purge_failed", err, nil)
					continue
				}
				if purged > 0 {
					logger.Info("credential_purge_completed", map[string]interface{}{"purged": purged})
				}
			}
		}
	}()
}

func init() {
	serveCmd.Flags().DurationVar(&flagAuditExportInterval, "audit-export-interval", time.Hour, "How often audit rows are shipped to blob storage (0 disables)")
	serveCmd.Flags().DurationVar(&flagPurgeInterval, "purge-interval", 15*time.Minute, "How often expired codes and sessions are deleted (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
