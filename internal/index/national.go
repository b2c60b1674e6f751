package index

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/rotisserie/eris"

	"github.com/crimewatch-labs/crimegeo/internal/normalize"
)

// nationalRow is one raw record from the nationwide address extract.
// Coordinates stay as strings until mapping so parse failures count as
// skips, not stream errors.
type nationalRow struct {
	Number   string
	Street   string
	City     string
	State    string
	Postcode string
	Lat      string
	Lon      string
}

// nationalColumns maps the accepted header spellings to row fields.
var nationalColumns = map[string]func(*nationalRow, string){
	"number":    func(r *nationalRow, v string) { r.Number = v },
	"street":    func(r *nationalRow, v string) { r.Street = v },
	"city":      func(r *nationalRow, v string) { r.City = v },
	"state":     func(r *nationalRow, v string) { r.State = v },
	"region":    func(r *nationalRow, v string) { r.State = v },
	"postcode":  func(r *nationalRow, v string) { r.Postcode = v },
	"zip":       func(r *nationalRow, v string) { r.Postcode = v },
	"lat":       func(r *nationalRow, v string) { r.Lat = v },
	"latitude":  func(r *nationalRow, v string) { r.Lat = v },
	"lon":       func(r *nationalRow, v string) { r.Lon = v },
	"lng":       func(r *nationalRow, v string) { r.Lon = v },
	"longitude": func(r *nationalRow, v string) { r.Lon = v },
}

// streamNational reads the extract CSV and sends rows to a channel.
// Caller must consume the row channel; both channels close when the
// stream ends.
func streamNational(ctx context.Context, r io.Reader) (<-chan nationalRow, <-chan error) {
	rowCh := make(chan nationalRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err != nil {
			errCh <- eris.Wrap(err, "national: read header")
			return
		}
		setters := make([]func(*nationalRow, string), len(header))
		for i, name := range header {
			setters[i] = nationalColumns[strings.ToLower(strings.TrimSpace(name))]
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "national: context cancelled")
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "national: read record")
				return
			}

			var row nationalRow
			for i, v := range record {
				if i < len(setters) && setters[i] != nil {
					setters[i](&row, strings.TrimSpace(v))
				}
			}
			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "national: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// loadNational streams the national extract into the index.
func loadNational(ctx context.Context, idx bleve.Index, opts BuildOptions, stats *BuildStats) error {
	f, err := openSource(opts.NationalPath)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	rows, errs := streamNational(ctx, f)
	b := newBatcher(idx, opts.BatchSize)

	for row := range rows {
		doc, ok := mapNationalRow(row)
		if !ok {
			stats.NationalSkipped++
			continue
		}
		if err := b.add(doc); err != nil {
			return err
		}
		stats.NationalAccepted++
	}
	if err := <-errs; err != nil {
		return err
	}
	return b.flush()
}

// mapNationalRow normalizes a raw row into an index document. Rows
// without a street or with unusable coordinates are rejected.
func mapNationalRow(row nationalRow) (*Document, bool) {
	street := normalize.NormalizeStreet(row.Number, row.Street)
	if street == "" {
		return nil, false
	}
	lat, errLat := strconv.ParseFloat(row.Lat, 64)
	lon, errLon := strconv.ParseFloat(row.Lon, 64)
	if errLat != nil || errLon != nil || !validCoord(lat, lon) {
		return nil, false
	}

	city := normalize.Normalize(row.City)
	state := normalize.NormalizeState(row.State)
	return &Document{
		Street:      street,
		City:        city,
		State:       state,
		Postcode:    strings.TrimSpace(row.Postcode),
		Source:      SourceNational,
		FullAddress: normalize.BuildFullAddress(street, city, state),
		Lat:         lat,
		Lon:         lon,
	}, true
}
