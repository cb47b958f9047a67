package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/storeit/backend/internal/database"
	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/internal/mailer"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/internal/storage"
)

var (
	flagDryRun bool
	flagGrace  time.Duration
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete blobs that no file record points at",
	Long: `Sweep lists every blob in the bucket and deletes the ones no file record
references and that are older than the grace period. Expired one-time codes
and sessions are purged in the same run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := database.Connect(cfg.DB)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		blobs, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}

		grace := cfg.Sweep.GracePeriod
		if cmd.Flags().Changed("grace") {
			grace = flagGrace
		}

		result, err := services.NewSweeper(docstore.NewGormStore(db), blobs, grace).Sweep(ctx, flagDryRun)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		if !flagDryRun {
			mail, err := mailer.New(cfg.Mail)
			if err != nil {
				return fmt.Errorf("mailer initialization failed: %w", err)
			}
			if _, err := identity.NewLocalProvider(db, mail, cfg.OTP).PurgeExpired(ctx); err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Report orphaned blobs without deleting them")
	sweepCmd.Flags().DurationVar(&flagGrace, "grace", 24*time.Hour, "Only delete blobs older than this (default from SWEEP_GRACE_PERIOD)")
	rootCmd.AddCommand(sweepCmd)
}
