package telemetry

import (
	"encoding/json"

	"github.com/c360/citytwin/errors"
	"github.com/c360/citytwin/pkg/timestamp"
	"github.com/c360/citytwin/state"
)

// Wire records mirror the simulator's JSON telemetry. Timestamps arrive in
// whatever shape the producer felt like (unix seconds, millis, RFC3339) and
// are normalized through timestamp.Parse.

type speedRecord struct {
	DistrictID     string                `json:"district_id"`
	EdgeID         string                `json:"edge_id"`
	Latitude       *float64              `json:"latitude"`
	Longitude      *float64              `json:"longitude"`
	SpeedKmh       *float64              `json:"speed_kmh"`
	SensorReadings []state.SensorReading `json:"sensor_readings"`
	Timestamp      any                   `json:"timestamp"`
}

type weatherRecord struct {
	DistrictID   string   `json:"district_id"`
	EdgeID       string   `json:"edge_id"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	TemperatureC *float64 `json:"temperature_c"`
	Humidity     *float64 `json:"humidity"`
	Conditions   string   `json:"weather_conditions"`
	Timestamp    any      `json:"timestamp"`
}

type cameraRecord struct {
	DistrictID      string   `json:"district_id"`
	EdgeID          string   `json:"edge_id"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	RoadCondition   string   `json:"road_condition"`
	ConfidenceScore *float64 `json:"confidence_score"`
	VehicleCount    *int     `json:"vehicle_count"`
	Timestamp       any      `json:"timestamp"`
}

type destinationRecord struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LocationName string   `json:"location_name"`
}

type vehicleRecord struct {
	VehicleID           string             `json:"vehicle_id"`
	Type                string             `json:"type"`
	Name                string             `json:"name"`
	Latitude            *float64           `json:"latitude"`
	Longitude           *float64           `json:"longitude"`
	SpeedKmh            *float64           `json:"speed_kmh"`
	Heading             *float64           `json:"heading"`
	BatteryLevelPercent *float64           `json:"battery_level_percent"`
	IncidentDetected    bool               `json:"incident_detected"`
	RoutePriority       string             `json:"route_priority"`
	CurrentDestination  *destinationRecord `json:"current_destination"`
	Operational         bool               `json:"operational"`
	Timestamp           any                `json:"timestamp"`
}

type buildingRecord struct {
	BuildingID   string             `json:"building_id"`
	Name         string             `json:"name"`
	Type         string             `json:"type"`
	DistrictID   string             `json:"district_id"`
	Latitude     *float64           `json:"latitude"`
	Longitude    *float64           `json:"longitude"`
	SensorType   string             `json:"sensor_type"`
	Measurements map[string]float64 `json:"measurements"`
	Timestamp    any                `json:"timestamp"`
}

func parseSpeed(data []byte) (state.SpeedUpdate, error) {
	var r speedRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return state.SpeedUpdate{}, errors.WrapInvalid(err,
			"TelemetryConsumer", "parseSpeed", "record decoding")
	}
	return state.SpeedUpdate{
		DistrictID:     r.DistrictID,
		EdgeID:         r.EdgeID,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		SpeedKmh:       r.SpeedKmh,
		SensorReadings: r.SensorReadings,
		Timestamp:      timestamp.Parse(r.Timestamp),
	}, nil
}

func parseWeather(data []byte) (state.WeatherUpdate, error) {
	var r weatherRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return state.WeatherUpdate{}, errors.WrapInvalid(err,
			"TelemetryConsumer", "parseWeather", "record decoding")
	}
	return state.WeatherUpdate{
		DistrictID:   r.DistrictID,
		EdgeID:       r.EdgeID,
		TemperatureC: r.TemperatureC,
		Humidity:     r.Humidity,
		Conditions:   r.Conditions,
		Timestamp:    timestamp.Parse(r.Timestamp),
	}, nil
}

func parseCamera(data []byte) (state.CameraUpdate, error) {
	var r cameraRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return state.CameraUpdate{}, errors.WrapInvalid(err,
			"TelemetryConsumer", "parseCamera", "record decoding")
	}
	return state.CameraUpdate{
		DistrictID:      r.DistrictID,
		EdgeID:          r.EdgeID,
		RoadCondition:   r.RoadCondition,
		ConfidenceScore: r.ConfidenceScore,
		VehicleCount:    r.VehicleCount,
		Timestamp:       timestamp.Parse(r.Timestamp),
	}, nil
}

func parseVehicle(data []byte) (state.Vehicle, error) {
	var r vehicleRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return state.Vehicle{}, errors.WrapInvalid(err,
			"TelemetryConsumer", "parseVehicle", "record decoding")
	}
	v := state.Vehicle{
		VehicleID:           r.VehicleID,
		Type:                r.Type,
		Name:                r.Name,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		SpeedKmh:            r.SpeedKmh,
		Heading:             r.Heading,
		BatteryLevelPercent: r.BatteryLevelPercent,
		IncidentDetected:    r.IncidentDetected,
		RoutePriority:       r.RoutePriority,
		Operational:         r.Operational,
		Timestamp:           timestamp.Parse(r.Timestamp),
	}
	if r.CurrentDestination != nil {
		v.CurrentDestination = &state.Destination{
			Latitude:     r.CurrentDestination.Latitude,
			Longitude:    r.CurrentDestination.Longitude,
			LocationName: r.CurrentDestination.LocationName,
		}
	}
	return v, nil
}

func parseBuilding(data []byte) (state.BuildingUpdate, error) {
	var r buildingRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return state.BuildingUpdate{}, errors.WrapInvalid(err,
			"TelemetryConsumer", "parseBuilding", "record decoding")
	}
	return state.BuildingUpdate{
		BuildingID:   r.BuildingID,
		Name:         r.Name,
		Type:         r.Type,
		DistrictID:   r.DistrictID,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		SensorType:   r.SensorType,
		Measurements: r.Measurements,
		Timestamp:    timestamp.Parse(r.Timestamp),
	}, nil
}
