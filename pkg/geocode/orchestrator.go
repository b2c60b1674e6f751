package geocode

import (
	"context"

	"go.uber.org/zap"

	"github.com/crimewatch-labs/crimegeo/internal/cache"
	"github.com/crimewatch-labs/crimegeo/internal/normalize"
)

// Resolver runs addresses through cleaning, the cache, and the provider
// cascade. Providers are tried in priority order; the first match wins
// and is written through to the cache. Addresses that every provider
// definitively failed get negative cache rows so later runs skip them.
type Resolver struct {
	providers []Provider
	cache     *cache.Cache
}

// NewResolver wires a resolver. The cache may be nil, in which case
// every lookup goes straight to the providers.
func NewResolver(providers []Provider, c *cache.Cache) (*Resolver, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &Resolver{providers: providers, cache: c}, nil
}

// resolveItem carries one address through the pipeline.
type resolveItem struct {
	input AddressInput
	// normalized fields actually sent to providers
	norm AddressInput
	key  string
	// providers that returned a definitive no-match
	attempted []string
}

// prepare cleans and normalizes the raw input. ok is false when the
// cleaner rules the address out entirely.
func (r *Resolver) prepare(in AddressInput) (resolveItem, bool) {
	cleaned := normalize.CleanAddress(in.Street)
	if cleaned.Kind == normalize.KindNotGeocodable {
		return resolveItem{input: in}, false
	}

	street := normalize.Normalize(cleaned.OneLine())
	city := normalize.Normalize(in.City)
	state := normalize.NormalizeState(in.State)
	item := resolveItem{
		input: in,
		norm: AddressInput{
			ID:     in.ID,
			Street: street,
			City:   city,
			State:  state,
			Zip:    in.Zip,
		},
		key: cache.Key(street, city, state, in.Zip),
	}
	return item, street != ""
}

// Resolve geocodes a single address.
func (r *Resolver) Resolve(ctx context.Context, in AddressInput) (*Result, error) {
	item, ok := r.prepare(in)
	if !ok {
		return &Result{Matched: false}, nil
	}

	if r.cache != nil {
		hit, tried, err := r.cache.Get(ctx, item.key)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			return hitResult(hit), nil
		}
		if tried {
			return &Result{Matched: false}, nil
		}
	}

	result := r.cascade(ctx, &item)
	if err := r.writeBack(ctx, &item, result); err != nil {
		return nil, err
	}
	return result, nil
}

// cascade walks the providers in priority order for one item.
func (r *Resolver) cascade(ctx context.Context, item *resolveItem) *Result {
	for _, p := range r.providers {
		if !p.Available(ctx) {
			zap.S().Debugw("provider unavailable", "provider", p.Name())
			continue
		}
		res, err := p.Geocode(ctx, item.norm)
		if err != nil {
			logProviderError(p.Name(), err)
			continue
		}
		if res.Matched {
			return res
		}
		item.attempted = append(item.attempted, p.Name())
	}
	return &Result{Matched: false}
}

// writeBack records the cascade outcome in the cache.
func (r *Resolver) writeBack(ctx context.Context, item *resolveItem, res *Result) error {
	if r.cache == nil {
		return nil
	}
	if res.Matched {
		return r.cache.Put(ctx, item.key, res.Source, res.Latitude, res.Longitude, res.MatchedAddress, string(res.Quality))
	}
	for _, provider := range item.attempted {
		if err := r.cache.PutNegative(ctx, item.key, provider); err != nil {
			return err
		}
	}
	return nil
}

// ResolveBatch geocodes a set of addresses, using cached results where
// possible and each provider's bulk API where it has one. Every input ID
// ends up in exactly one of the result lists.
func (r *Resolver) ResolveBatch(ctx context.Context, addrs []AddressInput) (*BatchResult, error) {
	out := &BatchResult{}

	var pending []*resolveItem
	var keys []string
	for _, in := range addrs {
		item, ok := r.prepare(in)
		if !ok {
			out.Unmatched = append(out.Unmatched, in.ID)
			continue
		}
		it := item
		pending = append(pending, &it)
		keys = append(keys, it.key)
	}

	if r.cache != nil && len(keys) > 0 {
		hits, tried, err := r.cache.Lookup(ctx, keys)
		if err != nil {
			return nil, err
		}
		remaining := pending[:0]
		for _, item := range pending {
			if hit, ok := hits[item.key]; ok {
				out.Matched = append(out.Matched, MatchedAddress{ID: item.input.ID, Result: *hitResult(&hit)})
				continue
			}
			if tried[item.key] {
				out.Unmatched = append(out.Unmatched, item.input.ID)
				continue
			}
			remaining = append(remaining, item)
		}
		pending = remaining
	}

	for _, p := range r.providers {
		if len(pending) == 0 {
			break
		}
		if !p.Available(ctx) {
			zap.S().Debugw("provider unavailable", "provider", p.Name())
			continue
		}
		var err error
		pending, err = r.runProvider(ctx, p, pending, out)
		if err != nil {
			return nil, err
		}
	}

	for _, item := range pending {
		if err := r.writeBack(ctx, item, &Result{Matched: false}); err != nil {
			return nil, err
		}
		out.Unmatched = append(out.Unmatched, item.input.ID)
	}

	zap.S().Infow("batch resolved",
		"total", len(addrs),
		"matched", len(out.Matched),
		"unmatched", len(out.Unmatched))
	return out, nil
}

// runProvider sends pending items through one provider and returns the
// items it could not match.
func (r *Resolver) runProvider(ctx context.Context, p Provider, pending []*resolveItem, out *BatchResult) ([]*resolveItem, error) {
	if bulk, ok := p.(BatchGeocoder); ok {
		inputs := make([]AddressInput, len(pending))
		for i, item := range pending {
			inputs[i] = item.norm
		}
		results, err := bulk.GeocodeBatch(ctx, inputs)
		if err != nil {
			logProviderError(p.Name(), err)
			return pending, nil
		}
		var still []*resolveItem
		for i, item := range pending {
			res := results[i]
			if res.Matched {
				if err := r.writeBack(ctx, item, &res); err != nil {
					return nil, err
				}
				out.Matched = append(out.Matched, MatchedAddress{ID: item.input.ID, Result: res})
				continue
			}
			item.attempted = append(item.attempted, p.Name())
			still = append(still, item)
		}
		return still, nil
	}

	var still []*resolveItem
	for i, item := range pending {
		res, err := p.Geocode(ctx, item.norm)
		if err != nil {
			logProviderError(p.Name(), err)
			if IsRateLimited(err) {
				// Stop hammering this provider; the rest wait for
				// the next one in the cascade.
				still = append(still, pending[i:]...)
				return still, nil
			}
			still = append(still, item)
			continue
		}
		if res.Matched {
			if err := r.writeBack(ctx, item, res); err != nil {
				return nil, err
			}
			out.Matched = append(out.Matched, MatchedAddress{ID: item.input.ID, Result: *res})
			continue
		}
		item.attempted = append(item.attempted, p.Name())
		still = append(still, item)
	}
	return still, nil
}

// logProviderError keeps expected conditions quiet and real failures
// visible.
func logProviderError(provider string, err error) {
	switch {
	case IsRateLimited(err):
		zap.S().Debugw("provider rate limited", "provider", provider)
	case isTransportError(err):
		zap.S().Warnw("provider unreachable", "provider", provider, "error", err)
	default:
		zap.S().Warnw("provider error", "provider", provider, "error", err)
	}
}

func hitResult(hit *cache.Hit) *Result {
	return &Result{
		Latitude:       hit.Lat,
		Longitude:      hit.Lon,
		MatchedAddress: hit.MatchedAddress,
		Source:         hit.Provider,
		Quality:        Quality(hit.Quality),
		Matched:        true,
	}
}
