package normalize

import (
	"regexp"
	"strings"
)

// CleanKind classifies the outcome of cleaning a raw feed address.
type CleanKind int

const (
	// KindStreet is a single geocodable street address.
	KindStreet CleanKind = iota
	// KindIntersection is two cross streets.
	KindIntersection
	// KindNotGeocodable marks input that carries no address at all.
	KindNotGeocodable
)

// Cleaned is the result of CleanAddress. For KindStreet only Street is
// set; for KindIntersection both Street and Street2 are set.
type Cleaned struct {
	Kind    CleanKind
	Street  string
	Street2 string
}

// skipList holds feed placeholder values that mean "no address".
var skipList = map[string]struct{}{
	"UNKNOWN":       {},
	"N/A":           {},
	"NA":            {},
	"NONE":          {},
	"NOT AVAILABLE": {},
	"UNDETERMINED":  {},
	"UNSPECIFIED":   {},
}

// roadDirections are travel-direction suffixes (east-bound etc.) that
// feeds append to highway addresses and that carry no location value.
var roadDirections = map[string]struct{}{
	"EB": {},
	"WB": {},
	"NB": {},
	"SB": {},
}

// intersectionSeps are scanned in order; the first one found splits the
// address into cross streets.
var intersectionSeps = []string{" / ", " /", "/ ", " & ", " AND "}

var (
	blockOfRe      = regexp.MustCompile(`\b(?:BLOCK|BLK) OF\b`)
	leadingBlockRe = regexp.MustCompile(`^(\d+)\s*(?:BLOCK|BLK|BL)\b\s*`)
	maskedNumberRe = regexp.MustCompile(`^XX(\d+)`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
)

// CleanAddress strips the block-level noise crime feeds wrap around
// street addresses. It never errors; input that cannot yield an address
// comes back as KindNotGeocodable.
func CleanAddress(raw string) Cleaned {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Cleaned{Kind: KindNotGeocodable}
	}
	if _, skip := skipList[s]; skip {
		return Cleaned{Kind: KindNotGeocodable}
	}

	s = stripRoadDirection(s)

	for _, sep := range intersectionSeps {
		idx := strings.Index(s, sep)
		if idx < 0 {
			continue
		}
		first := strings.TrimSpace(s[:idx])
		second := strings.TrimSpace(s[idx+len(sep):])
		if first != "" && second != "" {
			return Cleaned{Kind: KindIntersection, Street: first, Street2: second}
		}
	}

	s = blockOfRe.ReplaceAllString(s, "")
	s = leadingBlockRe.ReplaceAllString(s, "$1 ")
	// Privacy-masked house numbers: XX00 -> 100. A blunt heuristic, but
	// the index matching is tuned against exactly this rewrite.
	s = maskedNumberRe.ReplaceAllString(s, "1$1")

	s = strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return Cleaned{Kind: KindNotGeocodable}
	}
	return Cleaned{Kind: KindStreet, Street: s}
}

// stripRoadDirection removes a trailing EB/WB/NB/SB token.
func stripRoadDirection(s string) string {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return s
	}
	if _, ok := roadDirections[fields[len(fields)-1]]; ok {
		return strings.Join(fields[:len(fields)-1], " ")
	}
	return s
}

// OneLine renders a cleaned address as a single street string; an
// intersection becomes "A & B", the form the external geocoders accept.
func (c Cleaned) OneLine() string {
	switch c.Kind {
	case KindIntersection:
		return c.Street + " & " + c.Street2
	case KindStreet:
		return c.Street
	default:
		return ""
	}
}
