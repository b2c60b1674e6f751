package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crimewatch-labs/crimegeo/internal/config"
)

const peliasSearchPath = "/v1/search/structured"

// Credentials for a gateway fronting the Pelias instance, if any.
// Taken from the environment so they stay out of config files.
const (
	peliasUserEnv = "CRIMEGEO_PELIAS_USER"
	peliasPassEnv = "CRIMEGEO_PELIAS_PASSWORD"
)

// PeliasProvider geocodes against a self-hosted Pelias instance using
// the structured search endpoint. Batches fan out over single lookups
// since Pelias has no bulk API.
type PeliasProvider struct {
	name        string
	baseURL     string
	concurrency int
	httpClient  *http.Client
	user        string
	password    string
}

// NewPeliasProvider builds the provider from its registry entry.
func NewPeliasProvider(svc config.ServiceConfig, hc *http.Client) *PeliasProvider {
	concurrency := svc.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &PeliasProvider{
		name:        svc.ID,
		baseURL:     strings.TrimSuffix(svc.BaseURL, "/"),
		concurrency: concurrency,
		httpClient:  hc,
		user:        os.Getenv(peliasUserEnv),
		password:    os.Getenv(peliasPassEnv),
	}
}

// Name implements Provider.
func (p *PeliasProvider) Name() string { return p.name }

// Available implements Provider with a short probe against the instance
// root. A self-hosted Pelias that is down should not stall the cascade.
func (p *PeliasProvider) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/v1", nil)
	if err != nil {
		return false
	}
	p.auth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		zap.S().Debugw("pelias unavailable", "provider", p.name, "error", err)
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode < http.StatusInternalServerError
}

type peliasResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
			MatchType  string  `json:"match_type"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode implements Provider.
func (p *PeliasProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if strings.TrimSpace(addr.Street) == "" {
		return &Result{Matched: false, Source: p.name}, nil
	}

	params := url.Values{
		"address": {addr.Street},
		"size":    {"1"},
	}
	if addr.City != "" {
		params.Set("locality", addr.City)
	}
	if addr.State != "" {
		params.Set("region", addr.State)
	}
	if addr.Zip != "" {
		params.Set("postalcode", addr.Zip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+peliasSearchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: pelias build request")
	}
	p.auth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: pelias request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{Provider: p.name}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: pelias returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: pelias read body")
	}

	var peliasResp peliasResponse
	if err := json.Unmarshal(body, &peliasResp); err != nil {
		return nil, eris.Wrap(err, "geocode: pelias parse response")
	}

	if len(peliasResp.Features) == 0 {
		return &Result{Matched: false, Source: p.name}, nil
	}

	feat := peliasResp.Features[0]
	if len(feat.Geometry.Coordinates) < 2 {
		return &Result{Matched: false, Source: p.name}, nil
	}
	lon, lat := feat.Geometry.Coordinates[0], feat.Geometry.Coordinates[1]
	if !validCoords(lat, lon) {
		return &Result{Matched: false, Source: p.name}, nil
	}

	quality := QualityApproximate
	if feat.Properties.MatchType == "exact" {
		quality = QualityExact
	}
	return &Result{
		Latitude:       lat,
		Longitude:      lon,
		MatchedAddress: feat.Properties.Label,
		Source:         p.name,
		Quality:        quality,
		Matched:        true,
	}, nil
}

// GeocodeBatch implements BatchGeocoder by fanning single lookups out
// over an errgroup capped at the configured concurrency.
func (p *PeliasProvider) GeocodeBatch(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	results := make([]Result, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			res, err := p.Geocode(gctx, addr)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PeliasProvider) auth(req *http.Request) {
	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}
}
