package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BuildOptions configures the offline index build.
type BuildOptions struct {
	IndexPath    string // output directory for the index segments
	NationalPath string // nationwide structured address extract (CSV)
	OSMPath      string // regional map-data extract (.osm.pbf)
	Workers      int    // parallel map-extract workers (default 4)
	BatchSize    int    // documents per bleve batch (default 1000)
}

// BuildStats reports per-source accept/skip counts.
type BuildStats struct {
	NationalAccepted int
	NationalSkipped  int
	OSMAccepted      int
	OSMSkipped       int
}

// Build constructs the index from scratch at IndexPath. The index is
// rebuilt wholesale when source data refreshes, never mutated in place;
// an existing index at the path is removed first. A path holding
// anything that is not an index is an error.
func Build(ctx context.Context, opts BuildOptions) (*BuildStats, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.IndexPath == "" {
		return nil, eris.New("index: build requires an output path")
	}
	if opts.NationalPath == "" && opts.OSMPath == "" {
		return nil, eris.New("index: build requires at least one source")
	}
	if err := removeExisting(opts.IndexPath); err != nil {
		return nil, err
	}

	m, err := buildMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.New(opts.IndexPath, m)
	if err != nil {
		return nil, eris.Wrapf(err, "index: create %s", opts.IndexPath)
	}
	defer idx.Close() //nolint:errcheck

	log := zap.L().With(zap.String("component", "index.builder"))
	stats := &BuildStats{}

	if opts.NationalPath != "" {
		if err := loadNational(ctx, idx, opts, stats); err != nil {
			return nil, err
		}
		log.Info("national extract loaded",
			zap.Int("accepted", stats.NationalAccepted),
			zap.Int("skipped", stats.NationalSkipped),
		)
	}

	if opts.OSMPath != "" {
		if err := loadOSM(ctx, idx, opts, stats); err != nil {
			return nil, err
		}
		log.Info("map extract loaded",
			zap.Int("accepted", stats.OSMAccepted),
			zap.Int("skipped", stats.OSMSkipped),
		)
	}

	return stats, nil
}

// batcher accumulates documents into bleve batches.
type batcher struct {
	idx   bleve.Index
	batch *bleve.Batch
	size  int
	seq   int
}

func newBatcher(idx bleve.Index, size int) *batcher {
	return &batcher{idx: idx, batch: idx.NewBatch(), size: size}
}

func (b *batcher) add(doc *Document) error {
	b.seq++
	id := fmt.Sprintf("%s-%d", doc.Source, b.seq)
	if err := b.batch.Index(id, doc.fields()); err != nil {
		return eris.Wrap(err, "index: batch add")
	}
	if b.batch.Size() >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if b.batch.Size() == 0 {
		return nil
	}
	if err := b.idx.Batch(b.batch); err != nil {
		return eris.Wrap(err, "index: batch apply")
	}
	b.batch = b.idx.NewBatch()
	return nil
}

// removeExisting clears a previous index at path. The bleve metadata
// file is the guard: a directory without it was not written by us and
// is never deleted.
func removeExisting(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return eris.Wrapf(err, "index: stat %s", path)
	}
	if _, err := os.Stat(filepath.Join(path, "index_meta.json")); err != nil {
		return eris.Errorf("index: %s exists and is not an index, refusing to replace it", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return eris.Wrapf(err, "index: remove previous index %s", path)
	}
	return nil
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "index: open source %s", path)
	}
	return f, nil
}
