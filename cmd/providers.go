package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimewatch-labs/crimegeo/internal/index"
	"github.com/crimewatch-labs/crimegeo/pkg/geocode"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the configured provider cascade and probe availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		sorted := make([]int, 0, len(cfg.Services))
		for i := range cfg.Services {
			sorted = append(sorted, i)
		}
		sort.SliceStable(sorted, func(a, b int) bool {
			return cfg.Services[sorted[a]].Priority < cfg.Services[sorted[b]].Priority
		})

		var searcher *index.Searcher
		if cfg.Index.Path != "" {
			s, err := index.Open(cfg.Index.Path, cfg.Index.ExactThreshold)
			if err == nil {
				searcher = s
				defer s.Close() //nolint:errcheck
			} else if !eris.Is(err, index.ErrUnavailable) {
				return err
			}
		}

		availability := make(map[string]string, len(cfg.Services))
		providers, err := geocode.BuildRegistry(cfg.Services, geocode.WithSearcher(searcher))
		if err != nil && !eris.Is(err, geocode.ErrNoProviders) {
			return err
		}
		for _, p := range providers {
			state := "unavailable"
			if p.Available(cmd.Context()) {
				state = "available"
			}
			availability[p.Name()] = state
		}

		for _, i := range sorted {
			svc := cfg.Services[i]
			state, ok := availability[svc.ID]
			if !ok {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", svc.String(), state)
		}

		zap.S().Debugw("provider cascade probed", "services", len(cfg.Services), "active", len(providers))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
