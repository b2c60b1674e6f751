package geocode

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/crimewatch-labs/crimegeo/internal/config"
	"github.com/crimewatch-labs/crimegeo/internal/index"
)

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	// Available reports whether the provider is worth contacting right
	// now. Probes must be cheap; the orchestrator calls this per address.
	Available(ctx context.Context) bool
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// BatchGeocoder is implemented by providers with a server-side bulk
// endpoint. Results are positional: out[i] belongs to addrs[i].
type BatchGeocoder interface {
	GeocodeBatch(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// RegistryOption tweaks registry construction.
type RegistryOption func(*registryDeps)

type registryDeps struct {
	searcher   *index.Searcher
	httpClient *http.Client
}

// WithSearcher supplies the open local index. Without it the local
// provider reports unavailable.
func WithSearcher(s *index.Searcher) RegistryOption {
	return func(d *registryDeps) { d.searcher = s }
}

// WithHTTPClient overrides the HTTP client used by the remote providers.
func WithHTTPClient(hc *http.Client) RegistryOption {
	return func(d *registryDeps) { d.httpClient = hc }
}

// BuildRegistry turns the service configuration into the immutable,
// priority-sorted provider list the orchestrator iterates. Disabled
// entries are dropped here and never participate.
func BuildRegistry(services []config.ServiceConfig, opts ...RegistryOption) ([]Provider, error) {
	deps := &registryDeps{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(deps)
	}

	enabled := make([]config.ServiceConfig, 0, len(services))
	for _, svc := range services {
		if svc.Enabled {
			enabled = append(enabled, svc)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	providers := make([]Provider, 0, len(enabled))
	for _, svc := range enabled {
		switch svc.Kind {
		case config.KindLocal:
			providers = append(providers, NewLocalProvider(svc.ID, deps.searcher))
		case config.KindCensus:
			providers = append(providers, NewCensusProvider(svc, deps.httpClient))
		case config.KindPelias:
			providers = append(providers, NewPeliasProvider(svc, deps.httpClient))
		case config.KindNominatim:
			providers = append(providers, NewNominatimProvider(svc, deps.httpClient))
		default:
			return nil, eris.Errorf("geocode: unknown provider kind %q", svc.Kind)
		}
	}
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return providers, nil
}
