package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimewatch-labs/crimegeo/internal/cache"
	"github.com/crimewatch-labs/crimegeo/internal/index"
	"github.com/crimewatch-labs/crimegeo/pkg/geocode"
)

var (
	resolveStreet string
	resolveCity   string
	resolveState  string
	resolveZip    string
	resolveIn     string
	resolveOut    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve addresses to coordinates",
	Long:  "Resolves a single address given via flags, or a CSV batch via --in/--out. Input CSV columns: id,street,city,state,zip (header required, id may be blank).",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, cleanup, err := newResolver()
		if err != nil {
			return err
		}
		defer cleanup()

		if resolveIn != "" {
			return resolveBatch(cmd, resolver)
		}
		if resolveStreet == "" {
			return fmt.Errorf("either --street or --in is required")
		}

		result, err := resolver.Resolve(cmd.Context(), geocode.AddressInput{
			Street: resolveStreet,
			City:   resolveCity,
			State:  resolveState,
			Zip:    resolveZip,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// newResolver opens the index, the cache, and the provider registry from
// the loaded configuration. A missing index is not fatal: the local
// provider just reports unavailable and the remote cascade carries on.
func newResolver() (*geocode.Resolver, func(), error) {
	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}

	var searcher *index.Searcher
	if cfg.Index.Path != "" {
		s, err := index.Open(cfg.Index.Path, cfg.Index.ExactThreshold)
		switch {
		case err == nil:
			searcher = s
			closers = append(closers, func() { _ = s.Close() })
		case eris.Is(err, index.ErrUnavailable):
			zap.S().Warnw("local index unavailable", "path", cfg.Index.Path)
		default:
			cleanup()
			return nil, nil, err
		}
	}

	var store *cache.Cache
	if cfg.Cache.Path != "" {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		store = c
		closers = append(closers, func() { _ = c.Close() })
	}

	providers, err := geocode.BuildRegistry(cfg.Services, geocode.WithSearcher(searcher))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	resolver, err := geocode.NewResolver(providers, store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return resolver, cleanup, nil
}

func resolveBatch(cmd *cobra.Command, resolver *geocode.Resolver) error {
	inputs, err := readAddressCSV(resolveIn)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no addresses in %s", resolveIn)
	}

	result, err := resolver.ResolveBatch(cmd.Context(), inputs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resolveOut != "" {
		f, err := os.Create(resolveOut)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	if err := writeResultCSV(out, result); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "resolved %d of %d addresses\n", len(result.Matched), len(inputs))
	return nil
}

// readAddressCSV parses id,street,city,state,zip rows. Blank IDs get a
// generated one so batch results stay correlatable.
func readAddressCSV(path string) ([]geocode.AddressInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open input file")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["street"]; !ok {
		return nil, fmt.Errorf("input csv missing street column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var inputs []geocode.AddressInput
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv row")
		}
		in := geocode.AddressInput{
			ID:     field(row, "id"),
			Street: field(row, "street"),
			City:   field(row, "city"),
			State:  field(row, "state"),
			Zip:    field(row, "zip"),
		}
		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func writeResultCSV(out io.Writer, result *geocode.BatchResult) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "matched", "lat", "lon", "matched_address", "source", "quality"}); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, m := range result.Matched {
		row := []string{
			m.ID, "true",
			fmt.Sprintf("%.6f", m.Result.Latitude),
			fmt.Sprintf("%.6f", m.Result.Longitude),
			m.Result.MatchedAddress,
			m.Result.Source,
			string(m.Result.Quality),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	for _, id := range result.Unmatched {
		if err := w.Write([]string{id, "false", "", "", "", "", ""}); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func init() {
	resolveCmd.Flags().StringVar(&resolveStreet, "street", "", "street line, raw block addresses accepted")
	resolveCmd.Flags().StringVar(&resolveCity, "city", "", "city")
	resolveCmd.Flags().StringVar(&resolveState, "state", "", "two-letter state code")
	resolveCmd.Flags().StringVar(&resolveZip, "zip", "", "zip code")
	resolveCmd.Flags().StringVar(&resolveIn, "in", "", "input CSV path for batch mode")
	resolveCmd.Flags().StringVar(&resolveOut, "out", "", "output CSV path, stdout when omitted")
	rootCmd.AddCommand(resolveCmd)
}
