package index

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/rotisserie/eris"
)

// NewMemSearcher indexes docs in memory and returns a searcher over
// them. Nothing touches disk, so this suits tests and one-off tooling.
func NewMemSearcher(threshold float64, docs ...*Document) (*Searcher, error) {
	m, err := buildMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, eris.Wrap(err, "index: create in-memory index")
	}

	batch := idx.NewBatch()
	for i, d := range docs {
		if err := batch.Index(fmt.Sprintf("mem-%d", i), d.fields()); err != nil {
			return nil, eris.Wrap(err, "index: batch document")
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, eris.Wrap(err, "index: apply batch")
	}
	return NewSearcher(idx, threshold), nil
}
