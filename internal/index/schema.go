// Package index builds and queries the local full-text geocoding index.
// Documents are canonicalized through internal/normalize before insertion,
// and Lookup runs the same pipeline on query input, so the two sides always
// tokenize identically.
package index

import (
	"math"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexptok "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/rotisserie/eris"
)

// Field names shared by the builder and the query engine.
const (
	FieldStreet      = "street"
	FieldCity        = "city"
	FieldState       = "state"
	FieldPostcode    = "postcode"
	FieldSource      = "source"
	FieldFullAddress = "full_address"
	FieldLat         = "lat"
	FieldLon         = "lon"
)

// Provenance tags for the two offline sources.
const (
	SourceNational = "national"
	SourceOSM      = "osm"
)

const (
	addressAnalyzer = "address"
	alnumTokenizer  = "alnum"
)

// Document is one indexed address record.
type Document struct {
	Street      string
	City        string
	State       string
	Postcode    string
	Source      string
	FullAddress string
	Lat         float64
	Lon         float64
}

// fields returns the map form handed to bleve, keeping indexing
// independent of struct reflection rules.
func (d *Document) fields() map[string]interface{} {
	return map[string]interface{}{
		FieldStreet:      d.Street,
		FieldCity:        d.City,
		FieldState:       d.State,
		FieldPostcode:    d.Postcode,
		FieldSource:      d.Source,
		FieldFullAddress: d.FullAddress,
		FieldLat:         d.Lat,
		FieldLon:         d.Lon,
	}
}

// buildMapping constructs the index mapping: street/city/full_address are
// tokenized with a lowercase alphanumeric analyzer (no stemming, since
// abbreviation canonicalization already happened in the normalizer),
// state/postcode/source are exact-match keywords, lat/lon are stored
// numerics.
func buildMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomTokenizer(alnumTokenizer, map[string]interface{}{
		"type":   regexptok.Name,
		"regexp": `[0-9A-Za-z]+`,
	}); err != nil {
		return nil, eris.Wrap(err, "index: add tokenizer")
	}
	if err := im.AddCustomAnalyzer(addressAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     alnumTokenizer,
		"token_filters": []interface{}{lowercase.Name},
	}); err != nil {
		return nil, eris.Wrap(err, "index: add analyzer")
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = addressAnalyzer
	text.Store = true
	text.IncludeInAll = false
	text.IncludeTermVectors = true

	// Index-only composite used by the query fallback level.
	composite := bleve.NewTextFieldMapping()
	composite.Analyzer = addressAnalyzer
	composite.Store = false
	composite.IncludeInAll = false
	composite.IncludeTermVectors = true

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true
	keyword.IncludeInAll = false

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true
	numeric.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldStreet, text)
	doc.AddFieldMappingsAt(FieldCity, text)
	doc.AddFieldMappingsAt(FieldFullAddress, composite)
	doc.AddFieldMappingsAt(FieldState, keyword)
	doc.AddFieldMappingsAt(FieldPostcode, keyword)
	doc.AddFieldMappingsAt(FieldSource, keyword)
	doc.AddFieldMappingsAt(FieldLat, numeric)
	doc.AddFieldMappingsAt(FieldLon, numeric)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = addressAnalyzer
	return im, nil
}

// validCoord reports whether lat/lon are finite and within WGS84 ranges.
func validCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
