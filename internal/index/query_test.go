package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSearcher(t *testing.T, threshold float64, docs ...*Document) *Searcher {
	t.Helper()
	m, err := buildMapping()
	require.NoError(t, err)
	idx, err := bleve.NewMemOnly(m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	batch := idx.NewBatch()
	for i, d := range docs {
		require.NoError(t, batch.Index(fmt.Sprintf("doc-%d", i), d.fields()))
	}
	require.NoError(t, idx.Batch(batch))
	return NewSearcher(idx, threshold)
}

func testDocs() []*Document {
	return []*Document{
		{
			Street: "300 CEDARLEAF AVENUE", City: "SAINT PAUL", State: "MN",
			Postcode: "55119", Source: SourceNational,
			FullAddress: "300 CEDARLEAF AVENUE SAINT PAUL MN",
			Lat:         44.9163, Lon: -93.0245,
		},
		{
			Street: "100 NORTH STATE STREET", City: "CHICAGO", State: "IL",
			Postcode: "60602", Source: SourceNational,
			FullAddress: "100 NORTH STATE STREET CHICAGO IL",
			Lat:         41.8837, Lon: -87.6278,
		},
		{
			Street: "742 EVERGREEN TERRACE", City: "SPRINGFIELD", State: "IL",
			Postcode: "62701", Source: SourceOSM,
			FullAddress: "742 EVERGREEN TERRACE SPRINGFIELD IL",
			Lat:         39.7817, Lon: -89.6501,
		},
	}
}

func TestLookup_ExactLevelWins(t *testing.T) {
	s := newTestSearcher(t, 0.0001, testDocs()...)

	m, err := s.Lookup(context.Background(), "300 Cedarleaf Ave", "Saint Paul", "MN")
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, 1, m.Level)
	assert.True(t, m.Exact)
	assert.InDelta(t, 44.9163, m.Lat, 0.0001)
	assert.InDelta(t, -93.0245, m.Lon, 0.0001)
	assert.Equal(t, SourceNational, m.Source)
	assert.Equal(t, "300 CEDARLEAF AVENUE", m.Street)
}

func TestLookup_TypoFallsToFuzzy(t *testing.T) {
	s := newTestSearcher(t, 1e9, testDocs()...)

	// One-character typo in the street name: level 1 cannot match, the
	// fuzzy levels still retrieve the document.
	m, err := s.Lookup(context.Background(), "300 Cedarleef Ave", "Saint Paul", "MN")
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Greater(t, m.Level, 1)
	assert.False(t, m.Exact)
	assert.InDelta(t, 44.9163, m.Lat, 0.0001)
}

func TestLookup_SynonymSymmetry(t *testing.T) {
	s := newTestSearcher(t, 0.0001, testDocs()...)

	// Abbreviated and expanded query forms hit the same document because
	// both sides pass through the normalizer.
	for _, street := range []string{"100 N State St", "100 NORTH STATE STREET"} {
		m, err := s.Lookup(context.Background(), street, "Chicago", "IL")
		require.NoError(t, err)
		require.NotNil(t, m, "street %q", street)
		assert.Equal(t, "100 NORTH STATE STREET", m.Street)
		assert.Equal(t, 1, m.Level)
	}
}

func TestLookup_WrongStateNoMatch(t *testing.T) {
	s := newTestSearcher(t, 0.0001, testDocs()...)

	m, err := s.Lookup(context.Background(), "300 Cedarleaf Ave", "Saint Paul", "WI")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLookup_FullAddressFallback(t *testing.T) {
	s := newTestSearcher(t, 1e9, testDocs()...)

	// No city: levels 1-3 cannot be built, the composite field still
	// resolves the address.
	m, err := s.Lookup(context.Background(), "742 Evergreen Ter", "", "IL")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 4, m.Level)
	assert.False(t, m.Exact)
	assert.Equal(t, "742 EVERGREEN TERRACE", m.Street)
}

func TestLookup_BareStateFallback(t *testing.T) {
	s := newTestSearcher(t, 1e9, testDocs()...)

	m, err := s.Lookup(context.Background(), "", "", "MN")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Level)
	assert.Equal(t, "MN", m.State)
}

func TestLookup_NothingToQuery(t *testing.T) {
	s := newTestSearcher(t, 0.0001, testDocs()...)

	m, err := s.Lookup(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLookup_ThresholdClassification(t *testing.T) {
	// Same corpus, same query; only the threshold moves the grade.
	low := newTestSearcher(t, 0.0001, testDocs()...)
	high := newTestSearcher(t, 1e9, testDocs()...)

	m1, err := low.Lookup(context.Background(), "300 Cedarleaf Ave", "Saint Paul", "MN")
	require.NoError(t, err)
	require.NotNil(t, m1)
	assert.True(t, m1.Exact)

	m2, err := high.Lookup(context.Background(), "300 Cedarleaf Ave", "Saint Paul", "MN")
	require.NoError(t, err)
	require.NotNil(t, m2)
	assert.False(t, m2.Exact)
}

func TestMatchAddress(t *testing.T) {
	m := &Match{Street: "300 CEDARLEAF AVENUE", City: "SAINT PAUL", State: "MN"}
	assert.Equal(t, "300 CEDARLEAF AVENUE SAINT PAUL MN", m.Address())

	m = &Match{Street: "300 CEDARLEAF AVENUE", State: "MN"}
	assert.Equal(t, "300 CEDARLEAF AVENUE MN", m.Address())
}

func TestOpen_MissingIndex(t *testing.T) {
	_, err := Open(t.TempDir()+"/nope", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"300", "cedarleaf", "avenue"}, tokenize("300 CEDARLEAF AVENUE"))
	assert.Equal(t, []string{"i", "94"}, tokenize("I-94"))
	assert.Empty(t, tokenize("  --  "))
}
