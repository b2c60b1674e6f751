package normalize

// Synonym tables for address token expansion. Both tables map a USPS
// abbreviation to its expanded primary name. They are populated once at
// package init and never mutated afterward; every Normalize call shares
// them by reference.

// directionals maps the eight compass abbreviations to their full names.
var directionals = map[string]string{
	"N":  "NORTH",
	"S":  "SOUTH",
	"E":  "EAST",
	"W":  "WEST",
	"NE": "NORTHEAST",
	"NW": "NORTHWEST",
	"SE": "SOUTHEAST",
	"SW": "SOUTHWEST",
}

// streetTypes maps USPS Publication 28 Appendix C1 suffix abbreviations
// (including the common variant spellings) to the primary street suffix
// name. Expansions are never themselves keys, so expansion terminates in
// one step.
var streetTypes = map[string]string{
	"ALY":      "ALLEY",
	"ALLEE":    "ALLEY",
	"ALLY":     "ALLEY",
	"ANX":      "ANNEX",
	"ANEX":     "ANNEX",
	"ANNX":     "ANNEX",
	"ARC":      "ARCADE",
	"AV":       "AVENUE",
	"AVE":      "AVENUE",
	"AVEN":     "AVENUE",
	"AVENU":    "AVENUE",
	"AVN":      "AVENUE",
	"AVNUE":    "AVENUE",
	"BYU":      "BAYOU",
	"BAYOO":    "BAYOU",
	"BCH":      "BEACH",
	"BND":      "BEND",
	"BLF":      "BLUFF",
	"BLUF":     "BLUFF",
	"BLFS":     "BLUFFS",
	"BTM":      "BOTTOM",
	"BOT":      "BOTTOM",
	"BOTTM":    "BOTTOM",
	"BLVD":     "BOULEVARD",
	"BOUL":     "BOULEVARD",
	"BOULV":    "BOULEVARD",
	"BR":       "BRANCH",
	"BRNCH":    "BRANCH",
	"BRG":      "BRIDGE",
	"BRDGE":    "BRIDGE",
	"BRK":      "BROOK",
	"BRKS":     "BROOKS",
	"BG":       "BURG",
	"BGS":      "BURGS",
	"BYP":      "BYPASS",
	"BYPA":     "BYPASS",
	"BYPAS":    "BYPASS",
	"BYPS":     "BYPASS",
	"CP":       "CAMP",
	"CMP":      "CAMP",
	"CYN":      "CANYON",
	"CANYN":    "CANYON",
	"CNYN":     "CANYON",
	"CPE":      "CAPE",
	"CSWY":     "CAUSEWAY",
	"CAUSWA":   "CAUSEWAY",
	"CTR":      "CENTER",
	"CEN":      "CENTER",
	"CENT":     "CENTER",
	"CENTR":    "CENTER",
	"CENTRE":   "CENTER",
	"CNTER":    "CENTER",
	"CNTR":     "CENTER",
	"CTRS":     "CENTERS",
	"CIR":      "CIRCLE",
	"CIRC":     "CIRCLE",
	"CIRCL":    "CIRCLE",
	"CRCL":     "CIRCLE",
	"CRCLE":    "CIRCLE",
	"CIRS":     "CIRCLES",
	"CLF":      "CLIFF",
	"CLFS":     "CLIFFS",
	"CLB":      "CLUB",
	"CMN":      "COMMON",
	"CMNS":     "COMMONS",
	"COR":      "CORNER",
	"CORS":     "CORNERS",
	"CRSE":     "COURSE",
	"CT":       "COURT",
	"CTS":      "COURTS",
	"CV":       "COVE",
	"CVS":      "COVES",
	"CRK":      "CREEK",
	"CRES":     "CRESCENT",
	"CRSENT":   "CRESCENT",
	"CRSNT":    "CRESCENT",
	"CRST":     "CREST",
	"XING":     "CROSSING",
	"CRSSNG":   "CROSSING",
	"XRD":      "CROSSROAD",
	"XRDS":     "CROSSROADS",
	"CURV":     "CURVE",
	"DL":       "DALE",
	"DM":       "DAM",
	"DV":       "DIVIDE",
	"DIV":      "DIVIDE",
	"DVD":      "DIVIDE",
	"DR":       "DRIVE",
	"DRIV":     "DRIVE",
	"DRV":      "DRIVE",
	"DRS":      "DRIVES",
	"EST":      "ESTATE",
	"ESTS":     "ESTATES",
	"EXPY":     "EXPRESSWAY",
	"EXP":      "EXPRESSWAY",
	"EXPR":     "EXPRESSWAY",
	"EXPRESS":  "EXPRESSWAY",
	"EXPW":     "EXPRESSWAY",
	"EXT":      "EXTENSION",
	"EXTN":     "EXTENSION",
	"EXTNSN":   "EXTENSION",
	"EXTS":     "EXTENSIONS",
	"FLS":      "FALLS",
	"FRY":      "FERRY",
	"FRRY":     "FERRY",
	"FLD":      "FIELD",
	"FLDS":     "FIELDS",
	"FLT":      "FLAT",
	"FLTS":     "FLATS",
	"FRD":      "FORD",
	"FRDS":     "FORDS",
	"FRST":     "FOREST",
	"FRG":      "FORGE",
	"FORG":     "FORGE",
	"FRGS":     "FORGES",
	"FRK":      "FORK",
	"FRKS":     "FORKS",
	"FT":       "FORT",
	"FRT":      "FORT",
	"FWY":      "FREEWAY",
	"FREEWY":   "FREEWAY",
	"FRWAY":    "FREEWAY",
	"FRWY":     "FREEWAY",
	"GDN":      "GARDEN",
	"GARDN":    "GARDEN",
	"GRDEN":    "GARDEN",
	"GRDN":     "GARDEN",
	"GDNS":     "GARDENS",
	"GRDNS":    "GARDENS",
	"GTWY":     "GATEWAY",
	"GATEWY":   "GATEWAY",
	"GATWAY":   "GATEWAY",
	"GTWAY":    "GATEWAY",
	"GLN":      "GLEN",
	"GLNS":     "GLENS",
	"GRN":      "GREEN",
	"GRNS":     "GREENS",
	"GRV":      "GROVE",
	"GROV":     "GROVE",
	"GRVS":     "GROVES",
	"HBR":      "HARBOR",
	"HARB":     "HARBOR",
	"HARBR":    "HARBOR",
	"HRBOR":    "HARBOR",
	"HBRS":     "HARBORS",
	"HVN":      "HAVEN",
	"HT":       "HEIGHTS",
	"HTS":      "HEIGHTS",
	"HWY":      "HIGHWAY",
	"HIGHWY":   "HIGHWAY",
	"HIWAY":    "HIGHWAY",
	"HIWY":     "HIGHWAY",
	"HWAY":     "HIGHWAY",
	"HL":       "HILL",
	"HLS":      "HILLS",
	"HOLW":     "HOLLOW",
	"HLLW":     "HOLLOW",
	"HOLWS":    "HOLLOW",
	"INLT":     "INLET",
	"IS":       "ISLAND",
	"ISLND":    "ISLAND",
	"ISS":      "ISLANDS",
	"ISLNDS":   "ISLANDS",
	"JCT":      "JUNCTION",
	"JCTION":   "JUNCTION",
	"JCTN":     "JUNCTION",
	"JUNCTN":   "JUNCTION",
	"JUNCTON":  "JUNCTION",
	"JCTS":     "JUNCTIONS",
	"JCTNS":    "JUNCTIONS",
	"KY":       "KEY",
	"KYS":      "KEYS",
	"KNL":      "KNOLL",
	"KNOL":     "KNOLL",
	"KNLS":     "KNOLLS",
	"LK":       "LAKE",
	"LKS":      "LAKES",
	"LNDG":     "LANDING",
	"LNDNG":    "LANDING",
	"LN":       "LANE",
	"LGT":      "LIGHT",
	"LGTS":     "LIGHTS",
	"LF":       "LOAF",
	"LCK":      "LOCK",
	"LCKS":     "LOCKS",
	"LDG":      "LODGE",
	"LDGE":     "LODGE",
	"LODG":     "LODGE",
	"LP":       "LOOP",
	"MNR":      "MANOR",
	"MNRS":     "MANORS",
	"MDW":      "MEADOW",
	"MDWS":     "MEADOWS",
	"MEDOWS":   "MEADOWS",
	"ML":       "MILL",
	"MLS":      "MILLS",
	"MSN":      "MISSION",
	"MISSN":    "MISSION",
	"MSSN":     "MISSION",
	"MTWY":     "MOTORWAY",
	"MT":       "MOUNT",
	"MNT":      "MOUNT",
	"MTN":      "MOUNTAIN",
	"MNTAIN":   "MOUNTAIN",
	"MNTN":     "MOUNTAIN",
	"MOUNTIN":  "MOUNTAIN",
	"MTIN":     "MOUNTAIN",
	"MTNS":     "MOUNTAINS",
	"MNTNS":    "MOUNTAINS",
	"NCK":      "NECK",
	"ORCH":     "ORCHARD",
	"ORCHRD":   "ORCHARD",
	"OPAS":     "OVERPASS",
	"PRK":      "PARK",
	"PKWY":     "PARKWAY",
	"PARKWY":   "PARKWAY",
	"PKWAY":    "PARKWAY",
	"PKY":      "PARKWAY",
	"PKWYS":    "PARKWAYS",
	"PSGE":     "PASSAGE",
	"PNE":      "PINE",
	"PNES":     "PINES",
	"PL":       "PLACE",
	"PLN":      "PLAIN",
	"PLNS":     "PLAINS",
	"PLZ":      "PLAZA",
	"PLZA":     "PLAZA",
	"PT":       "POINT",
	"PTS":      "POINTS",
	"PRT":      "PORT",
	"PRTS":     "PORTS",
	"PR":       "PRAIRIE",
	"PRR":      "PRAIRIE",
	"RADL":     "RADIAL",
	"RAD":      "RADIAL",
	"RADIEL":   "RADIAL",
	"RNCH":     "RANCH",
	"RNCHS":    "RANCH",
	"RPD":      "RAPID",
	"RPDS":     "RAPIDS",
	"RST":      "REST",
	"RDG":      "RIDGE",
	"RDGE":     "RIDGE",
	"RDGS":     "RIDGES",
	"RIV":      "RIVER",
	"RVR":      "RIVER",
	"RIVR":     "RIVER",
	"RD":       "ROAD",
	"RDS":      "ROADS",
	"RTE":      "ROUTE",
	"SHL":      "SHOAL",
	"SHLS":     "SHOALS",
	"SHR":      "SHORE",
	"SHOAR":    "SHORE",
	"SHRS":     "SHORES",
	"SHOARS":   "SHORES",
	"SKWY":     "SKYWAY",
	"SPG":      "SPRING",
	"SPNG":     "SPRING",
	"SPRNG":    "SPRING",
	"SPGS":     "SPRINGS",
	"SPNGS":    "SPRINGS",
	"SPRNGS":   "SPRINGS",
	"SQ":       "SQUARE",
	"SQR":      "SQUARE",
	"SQRE":     "SQUARE",
	"SQU":      "SQUARE",
	"SQS":      "SQUARES",
	"SQRS":     "SQUARES",
	"STA":      "STATION",
	"STATN":    "STATION",
	"STN":      "STATION",
	"STRA":     "STRAVENUE",
	"STRAV":    "STRAVENUE",
	"STRAVEN":  "STRAVENUE",
	"STRAVN":   "STRAVENUE",
	"STRVN":    "STRAVENUE",
	"STRVNUE":  "STRAVENUE",
	"STRM":     "STREAM",
	"STREME":   "STREAM",
	"ST":       "STREET",
	"STR":      "STREET",
	"STRT":     "STREET",
	"STS":      "STREETS",
	"SMT":      "SUMMIT",
	"SUMIT":    "SUMMIT",
	"SUMITT":   "SUMMIT",
	"TER":      "TERRACE",
	"TERR":     "TERRACE",
	"TRWY":     "THROUGHWAY",
	"TRCE":     "TRACE",
	"TRAK":     "TRACK",
	"TRK":      "TRACK",
	"TRKS":     "TRACK",
	"TRFY":     "TRAFFICWAY",
	"TRL":      "TRAIL",
	"TRLS":     "TRAILS",
	"TRLR":     "TRAILER",
	"TUNL":     "TUNNEL",
	"TUNEL":    "TUNNEL",
	"TUNLS":    "TUNNEL",
	"TUNNL":    "TUNNEL",
	"TPKE":     "TURNPIKE",
	"TRNPK":    "TURNPIKE",
	"TURNPK":   "TURNPIKE",
	"UPAS":     "UNDERPASS",
	"UN":       "UNION",
	"UNS":      "UNIONS",
	"VLY":      "VALLEY",
	"VALLY":    "VALLEY",
	"VLLY":     "VALLEY",
	"VLYS":     "VALLEYS",
	"VDCT":     "VIADUCT",
	"VIA":      "VIADUCT",
	"VIADCT":   "VIADUCT",
	"VW":       "VIEW",
	"VWS":      "VIEWS",
	"VLG":      "VILLAGE",
	"VILL":     "VILLAGE",
	"VILLAG":   "VILLAGE",
	"VILLG":    "VILLAGE",
	"VILLIAGE": "VILLAGE",
	"VLGS":     "VILLAGES",
	"VL":       "VILLE",
	"VIS":      "VISTA",
	"VIST":     "VISTA",
	"VST":      "VISTA",
	"VSTA":     "VISTA",
	"WY":       "WAY",
	"WLS":      "WELLS",
}

// directionalNames and streetTypeNames hold the expanded forms so the
// Is* predicates recognize both sides of each synonym pair.
var (
	directionalNames = map[string]struct{}{}
	streetTypeNames  = map[string]struct{}{}
)

func init() {
	for _, full := range directionals {
		directionalNames[full] = struct{}{}
	}
	for _, full := range streetTypes {
		streetTypeNames[full] = struct{}{}
	}
}

// IsDirectional reports whether tok is a directional abbreviation or its
// expanded form. Matching is case-insensitive.
func IsDirectional(tok string) bool {
	tok = upperToken(tok)
	if _, ok := directionals[tok]; ok {
		return true
	}
	_, ok := directionalNames[tok]
	return ok
}

// IsStreetType reports whether tok is a USPS street-suffix abbreviation
// or its expanded primary name. Matching is case-insensitive.
func IsStreetType(tok string) bool {
	tok = upperToken(tok)
	if _, ok := streetTypes[tok]; ok {
		return true
	}
	_, ok := streetTypeNames[tok]
	return ok
}

// expandToken expands a single uppercase token through the directional
// table first, then the street-type table. Unmatched tokens pass through.
func expandToken(tok string) string {
	if full, ok := directionals[tok]; ok {
		return full
	}
	if full, ok := streetTypes[tok]; ok {
		return full
	}
	return tok
}
