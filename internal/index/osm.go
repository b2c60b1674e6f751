package index

import (
	"context"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/crimewatch-labs/crimegeo/internal/normalize"
)

// nodeScanner is the slice of osmpbf.Scanner the pipeline consumes.
type nodeScanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
}

// loadOSM streams the regional map extract into the index. Only point
// records carrying both a house number and a street tag are kept; way and
// relation geometries would need a second resolution pass over their node
// references, which this engine does not implement.
func loadOSM(ctx context.Context, idx bleve.Index, opts BuildOptions, stats *BuildStats) error {
	f, err := openSource(opts.OSMPath)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	scanner := osmpbf.New(ctx, f, opts.Workers)
	defer scanner.Close() //nolint:errcheck
	scanner.SkipWays = true
	scanner.SkipRelations = true

	return indexNodes(ctx, idx, scanner, opts, stats)
}

// indexNodes fans node mapping out across workers and batches the
// results into the index; the merge is order-independent. Every stage
// runs in one errgroup, so a failure anywhere cancels the rest and no
// goroutine outlives the call.
func indexNodes(ctx context.Context, idx bleve.Index, scanner nodeScanner, opts BuildOptions, stats *BuildStats) error {
	nodeCh := make(chan *osm.Node, 256)
	docCh := make(chan *Document, 256)
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(nodeCh)
		for scanner.Scan() {
			n, ok := scanner.Object().(*osm.Node)
			if !ok {
				continue
			}
			select {
			case nodeCh <- n:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return eris.Wrap(err, "osm: scan")
		}
		return nil
	})

	mappers, mctx := errgroup.WithContext(gctx)
	for i := 0; i < opts.Workers; i++ {
		mappers.Go(func() error {
			for n := range nodeCh {
				doc, ok := mapNode(n)
				if !ok {
					skipped.Add(1)
					continue
				}
				select {
				case docCh <- doc:
				case <-mctx.Done():
					return mctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(docCh)
		return mappers.Wait()
	})

	accepted := 0
	g.Go(func() error {
		b := newBatcher(idx, opts.BatchSize)
		for doc := range docCh {
			if err := b.add(doc); err != nil {
				return err
			}
			accepted++
		}
		return b.flush()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	stats.OSMAccepted += accepted
	stats.OSMSkipped += int(skipped.Load())
	return nil
}

// mapNode converts an OSM node into an index document, or rejects it.
func mapNode(n *osm.Node) (*Document, bool) {
	house := n.Tags.Find("addr:housenumber")
	street := n.Tags.Find("addr:street")
	if house == "" || street == "" {
		return nil, false
	}
	if !validCoord(n.Lat, n.Lon) {
		return nil, false
	}

	normStreet := normalize.NormalizeStreet(house, street)
	city := normalize.Normalize(n.Tags.Find("addr:city"))
	state := normalize.NormalizeState(n.Tags.Find("addr:state"))
	return &Document{
		Street:      normStreet,
		City:        city,
		State:       state,
		Postcode:    n.Tags.Find("addr:postcode"),
		Source:      SourceOSM,
		FullAddress: normalize.BuildFullAddress(normStreet, city, state),
		Lat:         n.Lat,
		Lon:         n.Lon,
	}, true
}
