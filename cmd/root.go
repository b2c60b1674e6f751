package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimewatch-labs/crimegeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crimegeo",
	Short: "Address resolution engine for crime report data",
	Long:  "Normalizes raw block addresses, geocodes them through a priority-ordered provider cascade backed by a local full-text index, and caches every outcome.",
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
