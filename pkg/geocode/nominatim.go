package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/crimewatch-labs/crimegeo/internal/config"
)

const nominatimSearchPath = "/search"

// Identify ourselves per the OSM usage policy.
const nominatimUserAgent = "crimegeo/1.0 (crime data geocoding)"

// NominatimProvider geocodes via a Nominatim instance. The public OSM
// endpoint allows at most one request per second, so requests pass a
// non-blocking limiter: when no token is available the call fails with
// RateLimitedError instead of stalling the whole cascade.
type NominatimProvider struct {
	name       string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewNominatimProvider builds the provider from its registry entry.
func NewNominatimProvider(svc config.ServiceConfig, hc *http.Client) *NominatimProvider {
	interval := time.Duration(svc.RateLimitMS) * time.Millisecond
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &NominatimProvider{
		name:       svc.ID,
		baseURL:    strings.TrimSuffix(svc.BaseURL, "/"),
		limiter:    limiter,
		httpClient: hc,
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return p.name }

// Available implements Provider.
func (p *NominatimProvider) Available(_ context.Context) bool { return true }

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	AddressType string `json:"addresstype"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if !p.limiter.Allow() {
		res := p.limiter.Reserve()
		delay := res.Delay()
		res.Cancel()
		return nil, &RateLimitedError{Provider: p.name, RetryAfter: delay}
	}

	query := formatOneLine(addr)
	if query == "" {
		return &Result{Matched: false, Source: p.name}, nil
	}

	// countrycodes is a filter, not a structured field; Nominatim rejects
	// structured parameters like country when q is present.
	params := url.Values{
		"q":            {query},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {"us"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+nominatimSearchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{Provider: p.name}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(results) == 0 {
		return &Result{Matched: false, Source: p.name}, nil
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lat")
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lon")
	}
	if !validCoords(lat, lon) {
		return &Result{Matched: false, Source: p.name}, nil
	}

	quality := QualityApproximate
	if first.AddressType == "house" {
		quality = QualityExact
	}
	return &Result{
		Latitude:       lat,
		Longitude:      lon,
		MatchedAddress: first.DisplayName,
		Source:         p.name,
		Quality:        quality,
		Matched:        true,
	}, nil
}
