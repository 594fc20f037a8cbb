package snapshot

// Defaults stamped onto the document when the city config leaves them empty
const (
	DefaultCityID   = "laquila-dt-001"
	DefaultCityName = "L'Aquila Digital Twin"
	DefaultVersion  = "1.0"
)

// L'Aquila city center and approximate elevation, used for district center
// points and weather station locations
const (
	cityCenterLatitude  = 42.3498
	cityCenterLongitude = 13.3995
	stationElevation    = 700
)

// congestionLevels maps a camera road condition to the schema's 0-100
// congestionLevel. Unknown conditions fall back to defaultCongestionLevel.
var congestionLevels = map[string]int{
	"clear":      10,
	"congestion": 70,
	"obstacles":  80,
	"accident":   95,
	"flooding":   100,
}

const defaultCongestionLevel = 50

func roadConditionToCongestion(condition string) int {
	if level, ok := congestionLevels[condition]; ok {
		return level
	}
	return defaultCongestionLevel
}

// districtNames maps district ids to display names. Unknown districts keep
// their id as the name.
var districtNames = map[string]string{
	"district-centro":      "Centro Storico",
	"district-collemaggio": "Collemaggio",
	"district-pettino":     "Pettino",
}

func districtName(districtID string) string {
	if name, ok := districtNames[districtID]; ok {
		return name
	}
	return districtID
}

// districtCategories assigns buildings to districts when a record carries no
// explicit district id. A building belongs to a district when any category is
// a substring of its id or equals its type; the first matching district in
// the document's district order wins.
var districtCategories = map[string][]string{
	"district-centro":      {"hospital", "school"},
	"district-collemaggio": {"basilica"},
	"district-pettino":     {"office", "university"},
}

// unitTypes maps emergency vehicle telemetry types to the schema's unit
// types. Only vehicles whose type appears here become emergency units.
var unitTypes = map[string]string{
	"ambulance": "ambulance",
	"firetruck": "fire-truck",
	"police":    "police",
}

// Measurement keys each building sensor type reports. Values telemetry
// never supplied serialize as null.
var buildingMeasurementKeys = map[string][]string{
	"air_quality": {"pm25_ugm3", "pm10_ugm3", "no2_ugm3", "co_ppm", "o3_ugm3"},
	"acoustic":    {"noise_level_db", "peak_db", "average_db_1h"},
}

// buildingSensorTypeNames maps internal sensor types to schema type names
// and sensor id suffixes
var buildingSensorTypeNames = map[string]struct {
	docType string
	suffix  string
}{
	"air_quality": {docType: "airQuality", suffix: "-aq"},
	"acoustic":    {docType: "acoustic", suffix: "-acoustic"},
}
