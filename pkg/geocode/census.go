package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/crimewatch-labs/crimegeo/internal/config"
)

const (
	censusOneLinePath = "/geocoder/locations/onelineaddress"
	censusBatchPath   = "/geocoder/locations/addressbatch"
	censusBenchmark   = "Public_AR_Current"

	// Hard cap imposed by the batch endpoint.
	censusMaxBatch = 10000
)

// CensusProvider geocodes via the Census Bureau geocoder: structured
// single lookups plus CSV-multipart bulk lookups. No auth required. Batch
// calls match synchronously server-side, so the batch client carries a
// generous timeout.
type CensusProvider struct {
	name        string
	baseURL     string
	batchSize   int
	limiter     *rate.Limiter
	httpClient  *http.Client
	batchClient *http.Client
}

// NewCensusProvider builds the provider from its registry entry.
func NewCensusProvider(svc config.ServiceConfig, hc *http.Client) *CensusProvider {
	batchSize := svc.BatchSize
	if batchSize <= 0 || batchSize > censusMaxBatch {
		batchSize = censusMaxBatch
	}
	timeout := 5 * time.Minute
	if svc.TimeoutSecs > 0 {
		timeout = time.Duration(svc.TimeoutSecs) * time.Second
	}
	limiter := rate.NewLimiter(50, 50) // Census default: 50 req/s
	if svc.RateLimitMS > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(svc.RateLimitMS)*time.Millisecond), 1)
	}
	return &CensusProvider{
		name:        svc.ID,
		baseURL:     strings.TrimSuffix(svc.BaseURL, "/"),
		batchSize:   batchSize,
		limiter:     limiter,
		httpClient:  hc,
		batchClient: &http.Client{Timeout: timeout, Transport: hc.Transport},
	}
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return p.name }

// Available implements Provider. The census geocoder has no probe
// endpoint; failures surface per call instead.
func (p *CensusProvider) Available(_ context.Context) bool { return true }

// censusOneLineResponse is the JSON response from the single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// Geocode implements Provider using the one-line endpoint.
func (p *CensusProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	oneLine := formatOneLine(addr)
	if oneLine == "" {
		return &Result{Matched: false, Source: p.name}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit wait")
	}

	params := url.Values{
		"address":   {oneLine},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}
	reqURL := p.baseURL + censusOneLinePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{Provider: p.name}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusOneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: p.name}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	if !validCoords(match.Coordinates.Y, match.Coordinates.X) {
		return &Result{Matched: false, Source: p.name}, nil
	}
	return &Result{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		MatchedAddress: match.MatchedAddress,
		Source:         p.name,
		Quality:        QualityExact, // one-line matches are exact
		Matched:        true,
	}, nil
}

// GeocodeBatch implements BatchGeocoder via the addressbatch endpoint,
// chunking at the configured cap.
func (p *CensusProvider) GeocodeBatch(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	results := make([]Result, len(addrs))
	for start := 0; start < len(addrs); start += p.batchSize {
		end := start + p.batchSize
		if end > len(addrs) {
			end = len(addrs)
		}
		if err := p.geocodeChunk(ctx, addrs[start:end], results[start:end]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (p *CensusProvider) geocodeChunk(ctx context.Context, addrs []AddressInput, out []Result) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: census rate limit wait")
	}

	// Build CSV content: id,street,city,state,zip
	var csvBody strings.Builder
	idToIdx := make(map[string]int, len(addrs))
	for i, addr := range addrs {
		id := addr.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		idToIdx[id] = i
		fmt.Fprintf(&csvBody, "%s,%s,%s,%s,%s\n", id, csvField(addr.Street), csvField(addr.City), csvField(addr.State), csvField(addr.Zip))
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("benchmark", censusBenchmark); err != nil {
		return eris.Wrap(err, "geocode: census batch write benchmark")
	}
	part, err := writer.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return eris.Wrap(err, "geocode: census batch create form file")
	}
	if _, err := part.Write([]byte(csvBody.String())); err != nil {
		return eris.Wrap(err, "geocode: census batch write csv")
	}
	if err := writer.Close(); err != nil {
		return eris.Wrap(err, "geocode: census batch close writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+censusBatchPath, &buf)
	if err != nil {
		return eris.Wrap(err, "geocode: census batch build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.batchClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "geocode: census batch request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitedError{Provider: p.name}
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("geocode: census batch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "geocode: census batch read body")
	}

	p.parseBatchResponse(string(body), idToIdx, out)
	return nil
}

// parseBatchResponse fills out from the batch CSV response. Format:
// "id","input address","Match|No_Match|Tie","Exact|Non_Exact","matched address","lon,lat",tigerlineid,side
func (p *CensusProvider) parseBatchResponse(body string, idToIdx map[string]int, out []Result) {
	for i := range out {
		out[i] = Result{Matched: false, Source: p.name}
	}

	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := splitCSVLine(line)
		if len(fields) < 6 {
			continue
		}

		id := strings.Trim(fields[0], "\"")
		idx, ok := idToIdx[id]
		if !ok {
			continue
		}

		if !strings.EqualFold(strings.Trim(fields[2], "\""), "Match") {
			continue
		}

		lon, lat, err := parseCensusCoords(strings.Trim(fields[5], "\""))
		if err != nil || !validCoords(lat, lon) {
			continue
		}

		quality := QualityApproximate
		if strings.EqualFold(strings.Trim(fields[3], "\""), "Exact") {
			quality = QualityExact
		}

		out[idx] = Result{
			Latitude:       lat,
			Longitude:      lon,
			MatchedAddress: strings.Trim(fields[4], "\""),
			Source:         p.name,
			Quality:        quality,
			Matched:        true,
		}
	}
}

// parseCensusCoords parses "lon,lat" from the batch response.
func parseCensusCoords(coords string) (lon, lat float64, err error) {
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("geocode: invalid census coords %q", coords)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lon")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lat")
	}
	return lon, lat, nil
}

// splitCSVLine splits a CSV line handling quoted fields.
func splitCSVLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	fields = append(fields, current.String())
	return fields
}

// csvField strips the characters that would break the unquoted upload
// format the batch endpoint expects.
func csvField(s string) string {
	return strings.NewReplacer(",", " ", "\n", " ", "\"", "").Replace(s)
}

// formatOneLine formats an address as a single comma-separated line.
func formatOneLine(addr AddressInput) string {
	parts := []string{addr.Street, addr.City, addr.State, addr.Zip}
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
