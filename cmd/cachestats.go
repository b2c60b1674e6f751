package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimewatch-labs/crimegeo/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the geocode result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Cache.Path == "" {
			return fmt.Errorf("cache.path is not configured")
		}
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		total, positive, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\npositive: %d\nnegative: %d\n",
			total, positive, total-positive)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
