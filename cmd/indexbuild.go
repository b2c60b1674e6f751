package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimewatch-labs/crimegeo/internal/index"
)

var (
	indexNationalPath string
	indexOSMPath      string
	indexOutPath      string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local geocoding index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the local index from address extracts",
	Long:  "Builds the full-text geocoding index from a nationwide address CSV extract and/or a regional .osm.pbf map extract. The index is rebuilt from scratch; an existing one at the same path is replaced.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if indexNationalPath == "" && indexOSMPath == "" {
			return fmt.Errorf("at least one of --national or --osm is required")
		}
		outPath := cfg.Index.Path
		if indexOutPath != "" {
			outPath = indexOutPath
		}

		stats, err := index.Build(cmd.Context(), index.BuildOptions{
			IndexPath:    outPath,
			NationalPath: indexNationalPath,
			OSMPath:      indexOSMPath,
			Workers:      cfg.Index.BuildWorkers,
			BatchSize:    cfg.Index.BuildBatchSize,
		})
		if err != nil {
			return err
		}

		zap.S().Infow("index built",
			"path", outPath,
			"national_accepted", stats.NationalAccepted,
			"national_skipped", stats.NationalSkipped,
			"osm_accepted", stats.OSMAccepted,
			"osm_skipped", stats.OSMSkipped)
		fmt.Printf("indexed %d addresses (%d skipped)\n",
			stats.NationalAccepted+stats.OSMAccepted,
			stats.NationalSkipped+stats.OSMSkipped)
		return nil
	},
}

func init() {
	indexBuildCmd.Flags().StringVar(&indexNationalPath, "national", "", "path to the nationwide address CSV extract")
	indexBuildCmd.Flags().StringVar(&indexOSMPath, "osm", "", "path to a regional .osm.pbf extract")
	indexBuildCmd.Flags().StringVar(&indexOutPath, "out", "", "output index path, defaults to index.path from config")
	indexCmd.AddCommand(indexBuildCmd)
	rootCmd.AddCommand(indexCmd)
}
