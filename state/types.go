package state

// Kind identifies the entity class owning a freshness entry
type Kind string

// Entity kinds tracked by the freshness index
const (
	KindEdge     Kind = "edge"
	KindVehicle  Kind = "vehicle"
	KindBuilding Kind = "building"
)

// Edge facet names used in freshness keys. Vehicles are full-replace records,
// so they carry the single pseudo-facet "full"; building facets are the
// sensor type of the reading.
const (
	FacetSpeed   = "speed"
	FacetWeather = "weather"
	FacetCamera  = "camera"
	FacetFull    = "full"
)

// FreshnessKey addresses one independently-aging piece of state
type FreshnessKey struct {
	Kind  Kind
	ID    string
	Facet string
}

// SensorReading is one loop detector reading attached to a speed update
type SensorReading struct {
	SensorID string  `json:"sensor_id"`
	SpeedKmh float64 `json:"speed_kmh"`
}

// SpeedFacet holds the latest speed data for an edge
type SpeedFacet struct {
	SpeedKmh       *float64        `json:"speed_kmh,omitempty"`
	SensorReadings []SensorReading `json:"sensor_readings,omitempty"`
	Timestamp      int64           `json:"timestamp,omitempty"`
}

// WeatherFacet holds the latest weather data for an edge
type WeatherFacet struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	Conditions   string   `json:"weather_conditions,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"`
}

// CameraFacet holds the latest traffic camera data for an edge
type CameraFacet struct {
	RoadCondition   string   `json:"road_condition,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	VehicleCount    *int     `json:"vehicle_count,omitempty"`
	Timestamp       int64    `json:"timestamp,omitempty"`
}

// Edge is a road segment with independently-updated facets and a shared
// location. An edge exists once any facet references it; updates overwrite
// only the touched facet.
type Edge struct {
	EdgeID     string        `json:"edge_id"`
	DistrictID string        `json:"district_id"`
	Latitude   *float64      `json:"latitude,omitempty"`
	Longitude  *float64      `json:"longitude,omitempty"`
	Speed      *SpeedFacet   `json:"speed,omitempty"`
	Weather    *WeatherFacet `json:"weather,omitempty"`
	Camera     *CameraFacet  `json:"camera,omitempty"`
}

func (e *Edge) clone() *Edge {
	if e == nil {
		return nil
	}
	c := &Edge{
		EdgeID:     e.EdgeID,
		DistrictID: e.DistrictID,
		Latitude:   copyFloat(e.Latitude),
		Longitude:  copyFloat(e.Longitude),
	}
	if e.Speed != nil {
		sp := SpeedFacet{
			SpeedKmh:  copyFloat(e.Speed.SpeedKmh),
			Timestamp: e.Speed.Timestamp,
		}
		if e.Speed.SensorReadings != nil {
			sp.SensorReadings = make([]SensorReading, len(e.Speed.SensorReadings))
			copy(sp.SensorReadings, e.Speed.SensorReadings)
		}
		c.Speed = &sp
	}
	if e.Weather != nil {
		w := *e.Weather
		w.TemperatureC = copyFloat(e.Weather.TemperatureC)
		w.Humidity = copyFloat(e.Weather.Humidity)
		c.Weather = &w
	}
	if e.Camera != nil {
		cam := *e.Camera
		cam.ConfidenceScore = copyFloat(e.Camera.ConfidenceScore)
		cam.VehicleCount = copyInt(e.Camera.VehicleCount)
		c.Camera = &cam
	}
	return c
}

// hasFacets reports whether any facet is still populated
func (e *Edge) hasFacets() bool {
	return e.Speed != nil || e.Weather != nil || e.Camera != nil
}

// District is a derived aggregation of edges, created implicitly on first
// edge reference and never explicitly deleted.
type District struct {
	DistrictID string           `json:"district_id"`
	Edges      map[string]*Edge `json:"edges"`
}

// Destination is a vehicle's current navigation target
type Destination struct {
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
}

// Vehicle is a full-replace telemetry record: every update overwrites the
// entire record, no facet merging.
type Vehicle struct {
	VehicleID           string       `json:"vehicle_id"`
	Type                string       `json:"type,omitempty"`
	Name                string       `json:"name,omitempty"`
	Latitude            *float64     `json:"latitude,omitempty"`
	Longitude           *float64     `json:"longitude,omitempty"`
	SpeedKmh            *float64     `json:"speed_kmh,omitempty"`
	Heading             *float64     `json:"heading,omitempty"`
	BatteryLevelPercent *float64     `json:"battery_level_percent,omitempty"`
	IncidentDetected    bool         `json:"incident_detected,omitempty"`
	RoutePriority       string       `json:"route_priority,omitempty"`
	CurrentDestination  *Destination `json:"current_destination,omitempty"`
	Operational         bool         `json:"operational,omitempty"`
	Timestamp           int64        `json:"timestamp,omitempty"`
}

func (v *Vehicle) clone() *Vehicle {
	if v == nil {
		return nil
	}
	c := *v
	c.Latitude = copyFloat(v.Latitude)
	c.Longitude = copyFloat(v.Longitude)
	c.SpeedKmh = copyFloat(v.SpeedKmh)
	c.Heading = copyFloat(v.Heading)
	c.BatteryLevelPercent = copyFloat(v.BatteryLevelPercent)
	if v.CurrentDestination != nil {
		d := *v.CurrentDestination
		d.Latitude = copyFloat(v.CurrentDestination.Latitude)
		d.Longitude = copyFloat(v.CurrentDestination.Longitude)
		c.CurrentDestination = &d
	}
	return &c
}

// BuildingSensor is the latest reading of one sensor type on a building
type BuildingSensor struct {
	Type         string             `json:"type"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
	Timestamp    int64              `json:"timestamp,omitempty"`
}

// Building carries fixed metadata (set on first sighting) and a map of
// latest readings keyed by sensor type. DistrictID is the explicit district
// foreign key; records without it fall back to the builder's category table.
type Building struct {
	BuildingID string                     `json:"building_id"`
	Name       string                     `json:"name,omitempty"`
	Type       string                     `json:"type,omitempty"`
	DistrictID string                     `json:"district_id,omitempty"`
	Latitude   *float64                   `json:"latitude,omitempty"`
	Longitude  *float64                   `json:"longitude,omitempty"`
	Sensors    map[string]*BuildingSensor `json:"sensors"`
}

func (b *Building) clone() *Building {
	if b == nil {
		return nil
	}
	c := *b
	c.Latitude = copyFloat(b.Latitude)
	c.Longitude = copyFloat(b.Longitude)
	c.Sensors = make(map[string]*BuildingSensor, len(b.Sensors))
	for k, s := range b.Sensors {
		sc := BuildingSensor{Type: s.Type, Timestamp: s.Timestamp}
		if s.Measurements != nil {
			sc.Measurements = make(map[string]float64, len(s.Measurements))
			for mk, mv := range s.Measurements {
				sc.Measurements[mk] = mv
			}
		}
		c.Sensors[k] = &sc
	}
	return &c
}

// EntityCounts summarizes the population of a snapshot
type EntityCounts struct {
	Districts int `json:"districts"`
	Edges     int `json:"edges"`
	Vehicles  int `json:"vehicles"`
	Buildings int `json:"buildings"`
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
