package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/citytwin/errors"
)

func TestParseSpeed(t *testing.T) {
	data := []byte(`{
		"district_id": "district-centro",
		"edge_id": "edge-a",
		"latitude": 42.35,
		"longitude": 13.40,
		"speed_kmh": 42.5,
		"sensor_readings": [{"sensor_id": "loop-1", "speed_kmh": 42.5}],
		"timestamp": 1748779200000
	}`)

	u, err := parseSpeed(data)
	require.NoError(t, err)
	assert.Equal(t, "district-centro", u.DistrictID)
	assert.Equal(t, "edge-a", u.EdgeID)
	assert.Equal(t, 42.5, *u.SpeedKmh)
	require.Len(t, u.SensorReadings, 1)
	assert.Equal(t, "loop-1", u.SensorReadings[0].SensorID)
	assert.Equal(t, int64(1748779200000), u.Timestamp)
}

func TestParseSpeed_TimestampVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"unix millis", `1748779200000`, 1748779200000},
		{"unix seconds", `1748779200`, 1748779200000},
		{"rfc3339", `"2025-06-01T12:00:00Z"`, 1748779200000},
		{"absent", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"district_id":"d","edge_id":"e"`
			if tt.raw != "" {
				payload += `,"timestamp":` + tt.raw
			}
			payload += `}`

			u, err := parseSpeed([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Timestamp)
		})
	}
}

func TestParseWeather(t *testing.T) {
	data := []byte(`{
		"district_id": "district-pettino",
		"edge_id": "edge-b",
		"temperature_c": 18.5,
		"humidity": 55,
		"weather_conditions": "clear",
		"timestamp": "2025-06-01T12:00:00Z"
	}`)

	u, err := parseWeather(data)
	require.NoError(t, err)
	assert.Equal(t, 18.5, *u.TemperatureC)
	assert.Equal(t, 55.0, *u.Humidity)
	assert.Equal(t, "clear", u.Conditions)
	assert.Equal(t, int64(1748779200000), u.Timestamp)
}

func TestParseCamera(t *testing.T) {
	data := []byte(`{
		"district_id": "district-centro",
		"edge_id": "edge-a",
		"road_condition": "accident",
		"confidence_score": 0.87,
		"vehicle_count": 9
	}`)

	u, err := parseCamera(data)
	require.NoError(t, err)
	assert.Equal(t, "accident", u.RoadCondition)
	assert.Equal(t, 0.87, *u.ConfidenceScore)
	assert.Equal(t, 9, *u.VehicleCount)
}

func TestParseVehicle(t *testing.T) {
	data := []byte(`{
		"vehicle_id": "amb-1",
		"type": "ambulance",
		"latitude": 42.34,
		"longitude": 13.39,
		"speed_kmh": 60,
		"route_priority": "critical",
		"incident_detected": true,
		"operational": true,
		"current_destination": {
			"location_name": "Ospedale San Salvatore",
			"latitude": 42.36,
			"longitude": 13.41
		}
	}`)

	v, err := parseVehicle(data)
	require.NoError(t, err)
	assert.Equal(t, "amb-1", v.VehicleID)
	assert.Equal(t, "ambulance", v.Type)
	assert.Equal(t, "critical", v.RoutePriority)
	assert.True(t, v.IncidentDetected)
	require.NotNil(t, v.CurrentDestination)
	assert.Equal(t, "Ospedale San Salvatore", v.CurrentDestination.LocationName)
	assert.Equal(t, 42.36, *v.CurrentDestination.Latitude)
}

func TestParseVehicle_NoDestination(t *testing.T) {
	v, err := parseVehicle([]byte(`{"vehicle_id":"bus-1","type":"bus"}`))
	require.NoError(t, err)
	assert.Nil(t, v.CurrentDestination)
}

func TestParseBuilding(t *testing.T) {
	data := []byte(`{
		"building_id": "building-hospital-001",
		"name": "San Salvatore",
		"type": "hospital",
		"sensor_type": "air_quality",
		"measurements": {"pm25_ugm3": 12.1, "pm10_ugm3": 20.4}
	}`)

	u, err := parseBuilding(data)
	require.NoError(t, err)
	assert.Equal(t, "building-hospital-001", u.BuildingID)
	assert.Equal(t, "air_quality", u.SensorType)
	assert.Equal(t, 12.1, u.Measurements["pm25_ugm3"])
}

func TestParse_MalformedJSON(t *testing.T) {
	garbage := []byte(`{not json`)

	_, err := parseSpeed(garbage)
	assert.True(t, errors.IsInvalid(err))
	_, err = parseWeather(garbage)
	assert.True(t, errors.IsInvalid(err))
	_, err = parseCamera(garbage)
	assert.True(t, errors.IsInvalid(err))
	_, err = parseVehicle(garbage)
	assert.True(t, errors.IsInvalid(err))
	_, err = parseBuilding(garbage)
	assert.True(t, errors.IsInvalid(err))
}
