package geocode

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/crimewatch-labs/crimegeo/internal/index"
)

// LocalProvider geocodes against the offline-built full-text index. No
// network, no rate limit; it should generally sort first in the cascade.
type LocalProvider struct {
	name     string
	searcher *index.Searcher
}

// NewLocalProvider wraps an open index searcher. A nil searcher is
// allowed and simply reports unavailable.
func NewLocalProvider(name string, s *index.Searcher) *LocalProvider {
	if name == "" {
		name = "local"
	}
	return &LocalProvider{name: name, searcher: s}
}

// Name implements Provider.
func (p *LocalProvider) Name() string { return p.name }

// Available implements Provider. The index is always available once open.
func (p *LocalProvider) Available(_ context.Context) bool { return p.searcher != nil }

// Geocode implements Provider.
func (p *LocalProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if p.searcher == nil {
		return nil, eris.Wrap(index.ErrUnavailable, "geocode: local provider")
	}

	m, err := p.searcher.Lookup(ctx, addr.Street, addr.City, addr.State)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: local lookup")
	}
	if m == nil {
		return &Result{Matched: false, Source: p.name}, nil
	}

	quality := QualityApproximate
	if m.Exact {
		quality = QualityExact
	}
	return &Result{
		Latitude:       m.Lat,
		Longitude:      m.Lon,
		MatchedAddress: m.Address(),
		Source:         p.name,
		Quality:        quality,
		Matched:        true,
	}, nil
}
