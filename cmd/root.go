package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kultur",
	Short: "Berlin cultural event intelligence pipeline",
	Long:  "Verifies incoming Berlin event records against web evidence, enriches them into cultural dossiers, audits summary quality, and stores them in a vector vault with a relational mirror for analytics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
