package index

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nationalFixture = `number,street,city,state,zip,lat,lon
300,Cedarleaf Ave,Saint Paul,MN,55119,44.9163,-93.0245
100,N State St,Chicago,IL,60602,41.8837,-87.6278
,Broadway,New York,NY,10012,40.7254,-73.9984
55,No Coords Rd,Duluth,MN,55802,not-a-number,-92.1
77,Out Of Range Ave,Nowhere,MN,55000,95.0,-93.0
88,,Saint Paul,MN,55101,44.95,-93.09
`

func TestBuildFromNationalExtract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "national.csv")
	require.NoError(t, os.WriteFile(src, []byte(nationalFixture), 0o644))

	idxPath := filepath.Join(dir, "addresses.bleve")
	stats, err := Build(context.Background(), BuildOptions{
		IndexPath:    idxPath,
		NationalPath: src,
		BatchSize:    2,
	})
	require.NoError(t, err)

	// Three good rows; bad coords, out-of-range, and missing street are
	// skipped.
	assert.Equal(t, 3, stats.NationalAccepted)
	assert.Equal(t, 3, stats.NationalSkipped)

	s, err := Open(idxPath, 0.0001)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	m, err := s.Lookup(context.Background(), "300 Cedarleaf Ave", "Saint Paul", "MN")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.Level)
	assert.InDelta(t, 44.9163, m.Lat, 0.0001)
	assert.Equal(t, SourceNational, m.Source)
}

func TestBuild_ReplacesExistingIndex(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "national.csv")
	require.NoError(t, os.WriteFile(src, []byte(nationalFixture), 0o644))

	idxPath := filepath.Join(dir, "addresses.bleve")
	opts := BuildOptions{IndexPath: idxPath, NationalPath: src}

	_, err := Build(context.Background(), opts)
	require.NoError(t, err)

	// Rebuilding over the previous index must succeed, not accumulate.
	stats, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NationalAccepted)

	s, err := Open(idxPath, 0.0001)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestBuild_RefusesForeignDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "national.csv")
	require.NoError(t, os.WriteFile(src, []byte(nationalFixture), 0o644))

	idxPath := filepath.Join(dir, "not-an-index")
	require.NoError(t, os.MkdirAll(idxPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(idxPath, "keep.txt"), []byte("data"), 0o644))

	_, err := Build(context.Background(), BuildOptions{IndexPath: idxPath, NationalPath: src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an index")

	// The foreign directory is untouched.
	_, statErr := os.Stat(filepath.Join(idxPath, "keep.txt"))
	assert.NoError(t, statErr)
}

func TestBuild_RequiresSource(t *testing.T) {
	_, err := Build(context.Background(), BuildOptions{IndexPath: t.TempDir() + "/idx"})
	require.Error(t, err)
}

func TestBuild_RequiresPath(t *testing.T) {
	_, err := Build(context.Background(), BuildOptions{NationalPath: "x.csv"})
	require.Error(t, err)
}

func TestMapNationalRow(t *testing.T) {
	doc, ok := mapNationalRow(nationalRow{
		Number: "300", Street: "Cedarleaf Ave", City: "Saint Paul",
		State: "mn", Postcode: "55119", Lat: "44.9163", Lon: "-93.0245",
	})
	require.True(t, ok)
	assert.Equal(t, "300 CEDARLEAF AVENUE", doc.Street)
	assert.Equal(t, "SAINT PAUL", doc.City)
	assert.Equal(t, "MN", doc.State)
	assert.Equal(t, "300 CEDARLEAF AVENUE SAINT PAUL MN", doc.FullAddress)
	assert.Equal(t, SourceNational, doc.Source)

	_, ok = mapNationalRow(nationalRow{Street: "", Lat: "44", Lon: "-93"})
	assert.False(t, ok)

	_, ok = mapNationalRow(nationalRow{Street: "Main St", Lat: "44", Lon: "-191"})
	assert.False(t, ok)
}

// fakeNodeScanner feeds a fixed node slice through the pipeline.
type fakeNodeScanner struct {
	nodes []*osm.Node
	pos   int
}

func (s *fakeNodeScanner) Scan() bool {
	if s.pos >= len(s.nodes) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeNodeScanner) Object() osm.Object { return s.nodes[s.pos-1] }
func (s *fakeNodeScanner) Err() error         { return nil }

func TestIndexNodes(t *testing.T) {
	m, err := buildMapping()
	require.NoError(t, err)
	idx, err := bleve.NewMemOnly(m)
	require.NoError(t, err)
	defer idx.Close() //nolint:errcheck

	scanner := &fakeNodeScanner{nodes: []*osm.Node{
		addressNode("742", "Evergreen Ter"),
		{Lat: 44.9, Lon: -93.1}, // no address tags, skipped
	}}
	stats := &BuildStats{}
	require.NoError(t, indexNodes(context.Background(), idx, scanner, BuildOptions{Workers: 2, BatchSize: 10}, stats))
	assert.Equal(t, 1, stats.OSMAccepted)
	assert.Equal(t, 1, stats.OSMSkipped)
}

func TestIndexNodes_ErrorStopsAllStages(t *testing.T) {
	m, err := buildMapping()
	require.NoError(t, err)
	idx, err := bleve.NewMemOnly(m)
	require.NoError(t, err)
	// Closing the index makes every batch apply fail.
	require.NoError(t, idx.Close())

	// More nodes than the stage channels can buffer, so a stuck producer
	// would be observable as leaked goroutines.
	nodes := make([]*osm.Node, 1200)
	for i := range nodes {
		nodes[i] = addressNode("742", "Evergreen Ter")
	}

	before := runtime.NumGoroutine()
	err = indexNodes(context.Background(), idx, &fakeNodeScanner{nodes: nodes},
		BuildOptions{Workers: 4, BatchSize: 1}, &BuildStats{})
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 2*time.Second, 10*time.Millisecond, "pipeline goroutines must exit when indexing fails")
}

func addressNode(house, street string) *osm.Node {
	return &osm.Node{
		Lat: 44.93, Lon: -93.10,
		Tags: osm.Tags{
			{Key: "addr:housenumber", Value: house},
			{Key: "addr:street", Value: street},
			{Key: "addr:city", Value: "Springfield"},
			{Key: "addr:state", Value: "IL"},
		},
	}
}

func TestMapNode(t *testing.T) {
	node := &osm.Node{
		Lat: 44.93, Lon: -93.10,
		Tags: osm.Tags{
			{Key: "addr:housenumber", Value: "742"},
			{Key: "addr:street", Value: "Evergreen Ter"},
			{Key: "addr:city", Value: "Springfield"},
			{Key: "addr:state", Value: "IL"},
			{Key: "addr:postcode", Value: "62701"},
		},
	}
	doc, ok := mapNode(node)
	require.True(t, ok)
	assert.Equal(t, "742 EVERGREEN TERRACE", doc.Street)
	assert.Equal(t, "SPRINGFIELD", doc.City)
	assert.Equal(t, "IL", doc.State)
	assert.Equal(t, SourceOSM, doc.Source)
	assert.InDelta(t, 44.93, doc.Lat, 0.0001)
}

func TestMapNode_Rejections(t *testing.T) {
	// No street tag.
	_, ok := mapNode(&osm.Node{
		Lat: 44.9, Lon: -93.1,
		Tags: osm.Tags{{Key: "addr:housenumber", Value: "10"}},
	})
	assert.False(t, ok)

	// No house number.
	_, ok = mapNode(&osm.Node{
		Lat: 44.9, Lon: -93.1,
		Tags: osm.Tags{{Key: "addr:street", Value: "Main St"}},
	})
	assert.False(t, ok)

	// Coordinates out of range.
	_, ok = mapNode(&osm.Node{
		Lat: 91, Lon: -93.1,
		Tags: osm.Tags{
			{Key: "addr:housenumber", Value: "10"},
			{Key: "addr:street", Value: "Main St"},
		},
	})
	assert.False(t, ok)
}

func TestValidCoord(t *testing.T) {
	assert.True(t, validCoord(0, 0))
	assert.True(t, validCoord(-90, 180))
	assert.False(t, validCoord(90.01, 0))
	assert.False(t, validCoord(0, -180.01))
}
