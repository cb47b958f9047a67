package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/pkg/logger"
	"github.com/storeit/backend/pkg/utils"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "storeit",
	Short: "StoreIt backend: personal cloud storage with passwordless sign-in",
	Long: `StoreIt serves the file metadata API and runs its maintenance jobs.

Get started:
  storeit serve               Start the HTTP API
  storeit sweep --dry-run     List blobs no file record points at`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger.Init(cfg.Log.Level)
		utils.ConfigureJWT(cfg.Session.Secret, cfg.Session.ExpirationHours)
		utils.ConfigureSealing(cfg.OTP.SealingSecret)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
