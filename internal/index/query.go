package index

import (
	"context"
	"errors"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/rotisserie/eris"

	"github.com/crimewatch-labs/crimegeo/internal/normalize"
)

// ErrUnavailable means the on-disk index is missing or unreadable. It is
// fatal only for the local provider; the orchestrator moves on.
var ErrUnavailable = errors.New("address index unavailable")

// DefaultExactThreshold is the score at or above which the winning
// sub-query classifies a match as exact. Empirically tuned against the
// boost ladder below.
const DefaultExactThreshold = 8.0

// Cascade boosts. A document is scored by its single best sub-query, so
// the ladder keeps the levels strictly ordered.
const (
	boostExact       = 10.0
	boostFuzzyStreet = 5.0
	boostFuzzyAll    = 2.0
	boostFullAddress = 1.0
)

// Searcher runs the cascading query strategy over an open index. The
// index snapshot is immutable; a Searcher is safe for unbounded
// concurrent readers.
type Searcher struct {
	idx       bleve.Index
	threshold float64
}

// Open opens the index at path read-only. A missing or corrupt index
// surfaces as ErrUnavailable.
func Open(path string, threshold float64) (*Searcher, error) {
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "index: open %s: %v", path, err)
	}
	return NewSearcher(idx, threshold), nil
}

// NewSearcher wraps an already-open index. A threshold <= 0 selects the
// default.
func NewSearcher(idx bleve.Index, threshold float64) *Searcher {
	if threshold <= 0 {
		threshold = DefaultExactThreshold
	}
	return &Searcher{idx: idx, threshold: threshold}
}

// Close releases the underlying index.
func (s *Searcher) Close() error {
	return s.idx.Close()
}

// DocCount reports the number of indexed addresses.
func (s *Searcher) DocCount() (uint64, error) {
	n, err := s.idx.DocCount()
	if err != nil {
		return 0, eris.Wrap(err, "index: doc count")
	}
	return n, nil
}

// Match is the best-scoring document for a lookup.
type Match struct {
	Lat      float64
	Lon      float64
	Score    float64
	Level    int
	Street   string
	City     string
	State    string
	Postcode string
	Source   string
	Exact    bool
}

// Address reconstructs the matched address text from stored components.
func (m *Match) Address() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Street, m.City, m.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type levelQuery struct {
	level int
	q     query.Query
}

// Lookup normalizes the components, builds the four-level cascade, and
// returns the single best-scoring document, or nil when nothing matches.
// The combined score is disjunction-max: each level is evaluated top-1
// and the winner is the best single sub-query score, never a sum.
func (s *Searcher) Lookup(ctx context.Context, street, city, state string) (*Match, error) {
	street = normalize.Normalize(street)
	city = normalize.Normalize(city)
	state = normalize.NormalizeState(state)

	levels := buildCascade(street, city, state)
	if len(levels) == 0 {
		if state == "" {
			return nil, nil
		}
		st := bleve.NewTermQuery(state)
		st.SetField(FieldState)
		levels = []levelQuery{{level: 0, q: st}}
	}

	var best *Match
	for _, lvl := range levels {
		req := bleve.NewSearchRequestOptions(lvl.q, 1, 0, false)
		req.Fields = []string{FieldStreet, FieldCity, FieldState, FieldPostcode, FieldSource, FieldLat, FieldLon}

		res, err := s.idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, eris.Wrapf(err, "index: search level %d", lvl.level)
		}
		if len(res.Hits) == 0 {
			continue
		}
		hit := res.Hits[0]
		if best == nil || hit.Score > best.Score {
			best = &Match{
				Lat:      fieldFloat(hit.Fields, FieldLat),
				Lon:      fieldFloat(hit.Fields, FieldLon),
				Score:    hit.Score,
				Level:    lvl.level,
				Street:   fieldString(hit.Fields, FieldStreet),
				City:     fieldString(hit.Fields, FieldCity),
				State:    fieldString(hit.Fields, FieldState),
				Postcode: fieldString(hit.Fields, FieldPostcode),
				Source:   fieldString(hit.Fields, FieldSource),
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Exact = best.Score >= s.threshold
	return best, nil
}

// buildCascade assembles the boosted sub-queries that can be built from
// the available components:
//
//	1. exact street phrase + city + state, boost 10
//	2. fuzzy street tokens + city + state, boost 5
//	3. fuzzy street + fuzzy city + state, boost 2
//	4. full_address phrase + state, boost 1
func buildCascade(street, city, state string) []levelQuery {
	streetToks := tokenize(street)
	cityToks := tokenize(city)

	var levels []levelQuery

	if len(streetToks) > 0 && city != "" && state != "" {
		conj := bleve.NewConjunctionQuery(
			streetQuery(streetToks, street),
			cityPhrase(city),
			stateTerm(state),
		)
		conj.SetBoost(boostExact)
		levels = append(levels, levelQuery{level: 1, q: conj})
	}

	if len(streetToks) > 0 && city != "" && state != "" {
		parts := fuzzyTerms(streetToks, FieldStreet)
		parts = append(parts, cityPhrase(city), stateTerm(state))
		conj := bleve.NewConjunctionQuery(parts...)
		conj.SetBoost(boostFuzzyStreet)
		levels = append(levels, levelQuery{level: 2, q: conj})
	}

	if len(streetToks) > 0 && len(cityToks) > 0 && state != "" {
		parts := fuzzyTerms(streetToks, FieldStreet)
		parts = append(parts, fuzzyTerms(cityToks, FieldCity)...)
		parts = append(parts, stateTerm(state))
		conj := bleve.NewConjunctionQuery(parts...)
		conj.SetBoost(boostFuzzyAll)
		levels = append(levels, levelQuery{level: 3, q: conj})
	}

	// The phrase covers street+city only; state is already its own exact
	// filter and would break the token sequence when city is missing.
	full := normalize.BuildFullAddress(street, city, "")
	if len(tokenize(full)) >= 2 && state != "" {
		pq := bleve.NewMatchPhraseQuery(full)
		pq.SetField(FieldFullAddress)
		conj := bleve.NewConjunctionQuery(pq, stateTerm(state))
		conj.SetBoost(boostFullAddress)
		levels = append(levels, levelQuery{level: 4, q: conj})
	}

	return levels
}

// streetQuery matches the street tokens as a phrase; a single-token
// street uses a plain term query instead.
func streetQuery(toks []string, street string) query.Query {
	if len(toks) == 1 {
		tq := bleve.NewTermQuery(toks[0])
		tq.SetField(FieldStreet)
		return tq
	}
	pq := bleve.NewMatchPhraseQuery(street)
	pq.SetField(FieldStreet)
	return pq
}

func cityPhrase(city string) query.Query {
	pq := bleve.NewMatchPhraseQuery(city)
	pq.SetField(FieldCity)
	return pq
}

func stateTerm(state string) query.Query {
	tq := bleve.NewTermQuery(state)
	tq.SetField(FieldState)
	return tq
}

// fuzzyTerms builds one edit-distance-1 term query per token.
func fuzzyTerms(toks []string, field string) []query.Query {
	out := make([]query.Query, 0, len(toks))
	for _, tok := range toks {
		fq := bleve.NewFuzzyQuery(tok)
		fq.SetField(field)
		fq.SetFuzziness(1)
		out = append(out, fq)
	}
	return out
}

// tokenize mirrors the index analyzer exactly: lowercase, split on
// non-alphanumeric runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func fieldFloat(fields map[string]interface{}, name string) float64 {
	if v, ok := fields[name].(float64); ok {
		return v
	}
	return 0
}
