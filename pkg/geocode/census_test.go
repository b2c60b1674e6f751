package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimewatch-labs/crimegeo/internal/config"
)

func censusSvc(baseURL string) config.ServiceConfig {
	return config.ServiceConfig{
		ID:        "census",
		Kind:      config.KindCensus,
		Enabled:   true,
		Priority:  2,
		BaseURL:   baseURL,
		BatchSize: 10000,
	}
}

func TestCensusGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, censusOneLinePath, r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("address"), "1600 PENNSYLVANIA")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -77.0365, "y": 38.8977},
					"matchedAddress": "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500"
				}]
			}
		}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(censusSvc(srv.URL), srv.Client())
	result, err := p.Geocode(context.Background(), AddressInput{
		Street: "1600 PENNSYLVANIA AVENUE NORTHWEST", City: "WASHINGTON", State: "DC", Zip: "20500",
	})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 38.8977, result.Latitude, 0.0001)
	assert.InDelta(t, -77.0365, result.Longitude, 0.0001)
	assert.Equal(t, "census", result.Source)
	assert.Equal(t, QualityExact, result.Quality)
}

func TestCensusGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(censusSvc(srv.URL), srv.Client())
	result, err := p.Geocode(context.Background(), AddressInput{
		Street: "123 NOWHERE STREET", City: "FAKETOWN", State: "ZZ",
	})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "census", result.Source)
}

func TestCensusGeocode_EmptyAddress(t *testing.T) {
	p := NewCensusProvider(censusSvc("http://unused.invalid"), http.DefaultClient)
	result, err := p.Geocode(context.Background(), AddressInput{})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestCensusGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewCensusProvider(censusSvc(srv.URL), srv.Client())
	_, err := p.Geocode(context.Background(), AddressInput{Street: "100 MAIN STREET"})
	require.Error(t, err)
}

func TestCensusGeocode_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCensusProvider(censusSvc(srv.URL), srv.Client())
	_, err := p.Geocode(context.Background(), AddressInput{Street: "100 MAIN STREET"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestCensusGeocodeBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, censusBatchPath, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, censusBenchmark, r.FormValue("benchmark"))

		_, _ = io.WriteString(w, `"a","300 CEDARLEAF AVE, SAINT PAUL, MN","Match","Exact","300 CEDARLEAF AVE, SAINT PAUL, MN, 55119","-93.0277,44.9433",123,"L"
"b","999 NOWHERE ST, FAKETOWN, ZZ","No_Match"
"c","742 EVERGREEN TER, SPRINGFIELD, IL","Match","Non_Exact","700 EVERGREEN TER, SPRINGFIELD, IL, 62704","-89.6501,39.7817",456,"R"
`)
	}))
	defer srv.Close()

	p := NewCensusProvider(censusSvc(srv.URL), srv.Client())
	results, err := p.GeocodeBatch(context.Background(), []AddressInput{
		{ID: "a", Street: "300 CEDARLEAF AVENUE", City: "SAINT PAUL", State: "MN"},
		{ID: "b", Street: "999 NOWHERE STREET", City: "FAKETOWN", State: "ZZ"},
		{ID: "c", Street: "742 EVERGREEN TERRACE", City: "SPRINGFIELD", State: "IL"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Matched)
	assert.Equal(t, QualityExact, results[0].Quality)
	assert.InDelta(t, 44.9433, results[0].Latitude, 0.0001)
	assert.InDelta(t, -93.0277, results[0].Longitude, 0.0001)

	assert.False(t, results[1].Matched)

	assert.True(t, results[2].Matched)
	assert.Equal(t, QualityApproximate, results[2].Quality)
	assert.Equal(t, "700 EVERGREEN TER, SPRINGFIELD, IL, 62704", results[2].MatchedAddress)
}

func TestCensusGeocodeBatch_Chunking(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = io.WriteString(w, "\n")
	}))
	defer srv.Close()

	svc := censusSvc(srv.URL)
	svc.BatchSize = 2
	p := NewCensusProvider(svc, srv.Client())

	results, err := p.GeocodeBatch(context.Background(), []AddressInput{
		{ID: "1", Street: "A ST"}, {ID: "2", Street: "B ST"},
		{ID: "3", Street: "C ST"}, {ID: "4", Street: "D ST"}, {ID: "5", Street: "E ST"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 3, calls)
}

func TestCensusGeocode_PacedByLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	svc := censusSvc(srv.URL)
	svc.RateLimitMS = 40
	p := NewCensusProvider(svc, srv.Client())

	start := time.Now()
	_, err := p.Geocode(context.Background(), AddressInput{Street: "100 MAIN STREET"})
	require.NoError(t, err)
	_, err = p.Geocode(context.Background(), AddressInput{Street: "200 MAIN STREET"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"second call must wait out the configured interval")
}

func TestCensusGeocode_LimiterHonorsContext(t *testing.T) {
	svc := censusSvc("http://unused.invalid")
	svc.RateLimitMS = 60000
	p := NewCensusProvider(svc, http.DefaultClient)

	// Burn the single burst token.
	_, err := p.Geocode(context.Background(), AddressInput{Street: "100 MAIN STREET"})
	require.Error(t, err) // unreachable host, farther along than the limiter

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Geocode(ctx, AddressInput{Street: "200 MAIN STREET"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitCSVLine(t *testing.T) {
	fields := splitCSVLine(`"a","100 MAIN ST, TOWN, ST","Match","Exact","100 MAIN ST","-93.1,44.9",1,"L"`)
	require.Len(t, fields, 8)
	assert.Equal(t, `"100 MAIN ST, TOWN, ST"`, fields[1])
	assert.Equal(t, `"-93.1,44.9"`, fields[5])
}

func TestFormatOneLine(t *testing.T) {
	assert.Equal(t, "100 MAIN ST, SPRINGFIELD, IL, 62704",
		formatOneLine(AddressInput{Street: "100 MAIN ST", City: "SPRINGFIELD", State: "IL", Zip: "62704"}))
	assert.Equal(t, "100 MAIN ST, IL",
		formatOneLine(AddressInput{Street: "100 MAIN ST", State: "IL"}))
	assert.Equal(t, "", formatOneLine(AddressInput{}))
}
