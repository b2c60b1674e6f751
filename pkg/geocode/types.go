// Package geocode resolves street addresses to WGS84 coordinates through
// a priority-ordered cascade of providers backed by a persistent result
// cache. The local full-text index is one provider among several; external
// services fill in what it cannot match.
package geocode

// Quality grades a geocode match.
type Quality string

const (
	QualityExact       Quality = "exact"
	QualityApproximate Quality = "approximate"
)

// AddressInput is one address to resolve. ID correlates batch results
// back to the caller.
type AddressInput struct {
	ID     string
	Street string
	City   string
	State  string
	Zip    string
}

// Result holds the geocoding output for an address. Coordinates are only
// meaningful when Matched is true, and always lie within WGS84 ranges.
type Result struct {
	Latitude       float64
	Longitude      float64
	MatchedAddress string
	Source         string
	Quality        Quality
	Matched        bool
}

// MatchedAddress pairs an input ID with its result.
type MatchedAddress struct {
	ID     string
	Result Result
}

// BatchResult is what the ingestion side consumes: every input ID lands
// in exactly one of the two lists.
type BatchResult struct {
	Matched   []MatchedAddress
	Unmatched []string
}

// validCoords reports whether lat/lon are inside WGS84 ranges.
func validCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
