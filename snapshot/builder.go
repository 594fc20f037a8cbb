package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360/citytwin/config"
	"github.com/c360/citytwin/pkg/timestamp"
	"github.com/c360/citytwin/state"
)

// RunStats is the aggregator's own runtime accounting, attached to the
// document's _internal_stats block
type RunStats struct {
	SnapshotNumber int64
	Uptime         time.Duration
}

// Builder turns a state snapshot into the downstream document. Build is a
// pure function of its inputs: same snapshot, same clock, same stats yields
// a byte-identical document.
type Builder struct {
	cityID   string
	cityName string
	version  string
}

// NewBuilder creates a builder stamped with the city identity from config.
// Empty fields fall back to the L'Aquila defaults.
func NewBuilder(cfg config.CityConfig) *Builder {
	b := &Builder{
		cityID:   cfg.CityID,
		cityName: cfg.Name,
		version:  cfg.Version,
	}
	if b.cityID == "" {
		b.cityID = DefaultCityID
	}
	if b.cityName == "" {
		b.cityName = DefaultCityName
	}
	if b.version == "" {
		b.version = DefaultVersion
	}
	return b
}

// Build produces the complete document for one state snapshot. Iteration is
// over sorted keys throughout so output ordering is deterministic regardless
// of map layout.
func (b *Builder) Build(snap *state.StateSnapshot, now time.Time, stats RunStats) *Document {
	ts := timestamp.Format(timestamp.ToUnixMs(now))

	return &Document{
		CityID:    b.cityID,
		Timestamp: ts,
		Metadata: Metadata{
			Name:        b.cityName,
			Version:     b.version,
			LastUpdated: ts,
		},
		Districts:         b.buildDistricts(snap),
		PublicTransport:   b.buildPublicTransport(snap),
		EmergencyServices: b.buildEmergencyServices(snap),
		InternalStats: &InternalStats{
			TotalEntities:  snap.Counts,
			SnapshotNumber: stats.SnapshotNumber,
			UptimeSeconds:  stats.Uptime.Seconds(),
		},
	}
}

func (b *Builder) buildDistricts(snap *state.StateSnapshot) []District {
	districts := make([]District, 0, len(snap.Districts))

	for _, districtID := range sortedKeys(snap.Districts) {
		d := snap.Districts[districtID]
		districts = append(districts, District{
			DistrictID: districtID,
			Name:       districtName(districtID),
			Location: CenterLocation{
				CenterLatitude:  cityCenterLatitude,
				CenterLongitude: cityCenterLongitude,
			},
			Sensors:         buildDistrictSensors(d),
			Buildings:       buildDistrictBuildings(districtID, snap),
			WeatherStations: buildWeatherStations(d),
		})
	}

	return districts
}

func buildDistrictSensors(d *state.District) []Sensor {
	sensors := make([]Sensor, 0)

	for _, edgeID := range sortedKeys(d.Edges) {
		edge := d.Edges[edgeID]
		loc := Location{Latitude: edge.Latitude, Longitude: edge.Longitude}

		// Loop detector readings surface as vehicleCount sensors. An update
		// that carries only an edge-level speed still yields one sensor.
		if edge.Speed != nil {
			if len(edge.Speed.SensorReadings) > 0 {
				for _, reading := range edge.Speed.SensorReadings {
					sensors = append(sensors, Sensor{
						SensorID:    reading.SensorID,
						Type:        "vehicleCount",
						Location:    loc,
						Value:       int(reading.SpeedKmh),
						Unit:        "km/h",
						Status:      "active",
						LastUpdated: formatTS(edge.Speed.Timestamp),
					})
				}
			} else if edge.Speed.SpeedKmh != nil {
				sensors = append(sensors, Sensor{
					SensorID:    fmt.Sprintf("speed-%s", edgeID),
					Type:        "vehicleCount",
					Location:    loc,
					Value:       int(*edge.Speed.SpeedKmh),
					Unit:        "km/h",
					Status:      "active",
					LastUpdated: formatTS(edge.Speed.Timestamp),
				})
			}
		}

		if edge.Camera != nil {
			sensors = append(sensors, Sensor{
				SensorID: fmt.Sprintf("camera-%s", edgeID),
				Type:     "trafficCamera",
				Location: loc,
				Value:    roadConditionToCongestion(edge.Camera.RoadCondition),
				Unit:     "congestionLevel",
				Metadata: &CameraMetadata{
					RoadCondition:   edge.Camera.RoadCondition,
					ConfidenceScore: edge.Camera.ConfidenceScore,
					VehicleCount:    edge.Camera.VehicleCount,
				},
				Status:      "active",
				LastUpdated: formatTS(edge.Camera.Timestamp),
			})
		}
	}

	return sensors
}

func buildDistrictBuildings(districtID string, snap *state.StateSnapshot) []Building {
	buildings := make([]Building, 0)

	for _, buildingID := range sortedKeys(snap.Buildings) {
		bld := snap.Buildings[buildingID]
		if !buildingBelongsTo(districtID, bld) {
			continue
		}

		name := bld.Name
		if name == "" {
			name = buildingID
		}

		buildings = append(buildings, Building{
			BuildingID: buildingID,
			Name:       name,
			Type:       bld.Type,
			Location:   Location{Latitude: bld.Latitude, Longitude: bld.Longitude},
			Sensors:    buildBuildingSensors(bld),
			Status:     "operational",
		})
	}

	return buildings
}

// buildingBelongsTo decides district membership. An explicit district id on
// the record is authoritative; records without one fall back to the category
// table match on id substring or exact type.
func buildingBelongsTo(districtID string, b *state.Building) bool {
	if b.DistrictID != "" {
		return b.DistrictID == districtID
	}

	for _, category := range districtCategories[districtID] {
		if category == b.Type || strings.Contains(b.BuildingID, category) {
			return true
		}
	}
	return false
}

func buildBuildingSensors(b *state.Building) []BuildingSensor {
	sensors := make([]BuildingSensor, 0)

	for _, sensorType := range sortedKeys(b.Sensors) {
		names, ok := buildingSensorTypeNames[sensorType]
		if !ok {
			continue
		}
		reading := b.Sensors[sensorType]

		measurements := make(map[string]*float64, len(buildingMeasurementKeys[sensorType]))
		for _, key := range buildingMeasurementKeys[sensorType] {
			if v, found := reading.Measurements[key]; found {
				value := v
				measurements[key] = &value
			} else {
				measurements[key] = nil
			}
		}

		sensors = append(sensors, BuildingSensor{
			SensorID:     b.BuildingID + names.suffix,
			Type:         names.docType,
			Measurements: measurements,
			Status:       "operational",
			LastUpdated:  formatTS(reading.Timestamp),
		})
	}

	return sensors
}

// buildWeatherStations emits at most one station per district, derived from
// the lexicographically smallest edge that carries a weather facet
func buildWeatherStations(d *state.District) []WeatherStation {
	stations := make([]WeatherStation, 0, 1)

	for _, edgeID := range sortedKeys(d.Edges) {
		edge := d.Edges[edgeID]
		if edge.Weather == nil {
			continue
		}

		stations = append(stations, WeatherStation{
			StationID: fmt.Sprintf("ws-%s", edgeID),
			Name:      fmt.Sprintf("Weather Station %s", edgeID),
			Location: StationLocation{
				Latitude:  edge.Latitude,
				Longitude: edge.Longitude,
				Elevation: stationElevation,
			},
			Readings: WeatherReadings{
				Temperature:       edge.Weather.TemperatureC,
				Humidity:          edge.Weather.Humidity,
				WeatherConditions: edge.Weather.Conditions,
			},
			Status:      "active",
			LastUpdated: formatTS(edge.Weather.Timestamp),
		})
		break
	}

	return stations
}

func (b *Builder) buildPublicTransport(snap *state.StateSnapshot) PublicTransport {
	buses := make([]Bus, 0)

	for _, vehicleID := range sortedKeys(snap.Vehicles) {
		v := snap.Vehicles[vehicleID]
		if v.Type != "bus" {
			continue
		}

		route := v.Name
		if route == "" {
			route = "Unknown Route"
		}

		status := "delayed"
		if v.Operational {
			status = "on-time"
		}

		buses = append(buses, Bus{
			BusID: vehicleID,
			Route: route,
			Location: BusLocation{
				Latitude:    v.Latitude,
				Longitude:   v.Longitude,
				CurrentStop: currentStop(v),
			},
			Speed:  floatOrZero(v.SpeedKmh),
			Status: status,
		})
	}

	return PublicTransport{
		Buses:    buses,
		Stations: []Station{},
	}
}

// currentStop names the stop a bus is heading for. A destination without a
// location name still distinguishes "at a stop" from "between stops".
func currentStop(v *state.Vehicle) string {
	if v.CurrentDestination == nil {
		return "In Transit"
	}
	if v.CurrentDestination.LocationName == "" {
		return "Unknown Stop"
	}
	return v.CurrentDestination.LocationName
}

func (b *Builder) buildEmergencyServices(snap *state.StateSnapshot) EmergencyServices {
	units := make([]Unit, 0)
	incidents := make([]Incident, 0)

	for _, vehicleID := range sortedKeys(snap.Vehicles) {
		v := snap.Vehicles[vehicleID]
		unitType, ok := unitTypes[v.Type]
		if !ok {
			continue
		}

		status := "available"
		switch {
		case v.RoutePriority == "critical":
			status = "responding"
		case floatOrZero(v.SpeedKmh) > 0:
			status = "patrol"
		}

		unit := Unit{
			UnitID:   vehicleID,
			Type:     unitType,
			Status:   status,
			Location: Location{Latitude: v.Latitude, Longitude: v.Longitude},
		}
		if status == "responding" && v.CurrentDestination != nil {
			unit.Destination = &Location{
				Latitude:  v.CurrentDestination.Latitude,
				Longitude: v.CurrentDestination.Longitude,
			}
		}
		units = append(units, unit)

		if v.IncidentDetected {
			incidents = append(incidents, Incident{
				IncidentID:      fmt.Sprintf("INC-%s", vehicleID),
				Type:            "collision",
				Priority:        "critical",
				Location:        Location{Latitude: v.Latitude, Longitude: v.Longitude},
				ReportedAt:      formatTS(v.Timestamp),
				RespondingUnits: []string{vehicleID},
				Status:          "in-progress",
			})
		}
	}

	return EmergencyServices{Incidents: incidents, Units: units}
}

func formatTS(ms int64) string {
	if timestamp.IsZero(ms) {
		return ""
	}
	return timestamp.Format(ms)
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
