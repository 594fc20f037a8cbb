package snapshot

import "github.com/c360/citytwin/state"

// Document is the complete city digital-twin snapshot in the downstream
// consumer's JSON schema. Field names follow that schema, not this module's
// internal conventions.
type Document struct {
	CityID            string            `json:"cityId"`
	Timestamp         string            `json:"timestamp"`
	Metadata          Metadata          `json:"metadata"`
	Districts         []District        `json:"districts"`
	PublicTransport   PublicTransport   `json:"publicTransport"`
	EmergencyServices EmergencyServices `json:"emergencyServices"`
	InternalStats     *InternalStats    `json:"_internal_stats,omitempty"`
}

// Metadata identifies the twin instance
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
}

// InternalStats is diagnostic data appended by the aggregator itself
type InternalStats struct {
	TotalEntities  state.EntityCounts `json:"total_entities"`
	SnapshotNumber int64              `json:"snapshot_number"`
	UptimeSeconds  float64            `json:"aggregator_uptime_seconds"`
}

// District aggregates sensors, buildings and weather stations for one
// city district
type District struct {
	DistrictID      string           `json:"districtId"`
	Name            string           `json:"name"`
	Location        CenterLocation   `json:"location"`
	Sensors         []Sensor         `json:"sensors"`
	Buildings       []Building       `json:"buildings"`
	WeatherStations []WeatherStation `json:"weatherStations"`
}

// CenterLocation is the district's nominal center point
type CenterLocation struct {
	CenterLatitude  float64 `json:"centerLatitude"`
	CenterLongitude float64 `json:"centerLongitude"`
}

// Location is a plain coordinate pair. Coordinates are pointers because
// telemetry may arrive without them; the schema serializes null in that case.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Sensor is a district-level road sensor, either a loop detector mapped to
// vehicleCount or a traffic camera mapped to congestionLevel
type Sensor struct {
	SensorID    string          `json:"sensorId"`
	Type        string          `json:"type"`
	Location    Location        `json:"location"`
	Value       int             `json:"value"`
	Unit        string          `json:"unit"`
	Metadata    *CameraMetadata `json:"metadata,omitempty"`
	Status      string          `json:"status"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
}

// CameraMetadata carries the raw camera observation behind a congestion value
type CameraMetadata struct {
	RoadCondition   string   `json:"roadCondition"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	VehicleCount    *int     `json:"vehicleCount"`
}

// Building is a monitored building with its environment sensors
type Building struct {
	BuildingID string           `json:"buildingId"`
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	Location   Location         `json:"location"`
	Sensors    []BuildingSensor `json:"sensors"`
	Status     string           `json:"status"`
}

// BuildingSensor is one air-quality or acoustic sensor on a building.
// Measurements always contain the schema's fixed keys; absent values
// serialize as null.
type BuildingSensor struct {
	SensorID     string              `json:"sensorId"`
	Type         string              `json:"type"`
	Measurements map[string]*float64 `json:"measurements"`
	Status       string              `json:"status"`
	LastUpdated  string              `json:"lastUpdated,omitempty"`
}

// WeatherStation is a synthetic station derived from a district edge's
// weather facet
type WeatherStation struct {
	StationID   string          `json:"stationId"`
	Name        string          `json:"name"`
	Location    StationLocation `json:"location"`
	Readings    WeatherReadings `json:"readings"`
	Status      string          `json:"status"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
}

// StationLocation adds elevation to a coordinate pair
type StationLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Elevation int      `json:"elevation"`
}

// WeatherReadings is the current observation at a station
type WeatherReadings struct {
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity"`
	WeatherConditions string   `json:"weatherConditions"`
}

// PublicTransport lists active buses. Stations is reserved in the schema
// and always empty.
type PublicTransport struct {
	Buses    []Bus     `json:"buses"`
	Stations []Station `json:"stations"`
}

// Bus is one active bus with its route and position
type Bus struct {
	BusID    string      `json:"busId"`
	Route    string      `json:"route"`
	Location BusLocation `json:"location"`
	Speed    float64     `json:"speed"`
	Status   string      `json:"status"`
}

// BusLocation is a bus position with the stop it is serving
type BusLocation struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	CurrentStop string   `json:"currentStop"`
}

// Station is a transit station placeholder kept for schema compatibility
type Station struct {
	StationID string `json:"stationId"`
	Name      string `json:"name"`
}

// EmergencyServices lists emergency units and the incidents they respond to
type EmergencyServices struct {
	Incidents []Incident `json:"incidents"`
	Units     []Unit     `json:"units"`
}

// Unit is one emergency vehicle translated to the schema's unit model
type Unit struct {
	UnitID      string    `json:"unitId"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Location    Location  `json:"location"`
	Destination *Location `json:"destination,omitempty"`
}

// Incident is a derived incident report for a responding unit that has
// detected one
type Incident struct {
	IncidentID      string   `json:"incidentId"`
	Type            string   `json:"type"`
	Priority        string   `json:"priority"`
	Location        Location `json:"location"`
	ReportedAt      string   `json:"reportedAt"`
	RespondingUnits []string `json:"respondingUnits"`
	Status          string   `json:"status"`
}
