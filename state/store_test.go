package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/citytwin/errors"
)

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func TestUpsertSpeed_CreatesDistrictAndEdge(t *testing.T) {
	s := NewStore(time.Minute)

	err := s.UpsertSpeed(SpeedUpdate{
		DistrictID: "district-centro",
		EdgeID:     "edge-1",
		Latitude:   f64(42.35),
		Longitude:  f64(13.40),
		SpeedKmh:   f64(42),
		Timestamp:  1000,
	})
	require.NoError(t, err)

	snap := s.Snapshot(time.Now())
	require.Contains(t, snap.Districts, "district-centro")
	require.Contains(t, snap.Districts["district-centro"].Edges, "edge-1")

	edge := snap.Edges["edge-1"]
	require.NotNil(t, edge.Speed)
	assert.Equal(t, 42.0, *edge.Speed.SpeedKmh)
	assert.Equal(t, 42.35, *edge.Latitude)
	assert.Nil(t, edge.Weather)
	assert.Nil(t, edge.Camera)
}

func TestUpsertFacets_MergeNotReplace(t *testing.T) {
	s := NewStore(time.Minute)

	require.NoError(t, s.UpsertSpeed(SpeedUpdate{
		DistrictID: "district-centro", EdgeID: "edge-1", SpeedKmh: f64(42),
	}))
	require.NoError(t, s.UpsertWeather(WeatherUpdate{
		DistrictID: "district-centro", EdgeID: "edge-1",
		TemperatureC: f64(18.5), Conditions: "clear",
	}))
	require.NoError(t, s.UpsertCamera(CameraUpdate{
		DistrictID: "district-centro", EdgeID: "edge-1",
		RoadCondition: "congestion", VehicleCount: intp(12),
	}))

	// Second speed write must not disturb the other facets
	require.NoError(t, s.UpsertSpeed(SpeedUpdate{
		DistrictID: "district-centro", EdgeID: "edge-1", SpeedKmh: f64(55),
	}))

	edge := s.Snapshot(time.Now()).Edges["edge-1"]
	require.NotNil(t, edge.Speed)
	require.NotNil(t, edge.Weather)
	require.NotNil(t, edge.Camera)
	assert.Equal(t, 55.0, *edge.Speed.SpeedKmh)
	assert.Equal(t, 18.5, *edge.Weather.TemperatureC)
	assert.Equal(t, "congestion", edge.Camera.RoadCondition)
}

func TestUpsertFacets_UnionIndependentOfOrder(t *testing.T) {
	// Any interleaving of the three facet updates yields the union
	orders := [][]func(*Store) error{
		{upSpeed, upWeather, upCamera},
		{upCamera, upSpeed, upWeather},
		{upWeather, upCamera, upSpeed},
	}

	for i, order := range orders {
		t.Run(fmt.Sprintf("order-%d", i), func(t *testing.T) {
			s := NewStore(time.Minute)
			for _, fn := range order {
				require.NoError(t, fn(s))
			}
			edge := s.Snapshot(time.Now()).Edges["edge-1"]
			assert.NotNil(t, edge.Speed)
			assert.NotNil(t, edge.Weather)
			assert.NotNil(t, edge.Camera)
		})
	}
}

func upSpeed(s *Store) error {
	return s.UpsertSpeed(SpeedUpdate{DistrictID: "d", EdgeID: "edge-1", SpeedKmh: f64(30)})
}

func upWeather(s *Store) error {
	return s.UpsertWeather(WeatherUpdate{DistrictID: "d", EdgeID: "edge-1", TemperatureC: f64(10)})
}

func upCamera(s *Store) error {
	return s.UpsertCamera(CameraUpdate{DistrictID: "d", EdgeID: "edge-1", RoadCondition: "clear"})
}

func TestUpsert_MissingIdentityRejected(t *testing.T) {
	s := NewStore(time.Minute)

	tests := []struct {
		name string
		err  error
	}{
		{"speed without edge", s.UpsertSpeed(SpeedUpdate{DistrictID: "d"})},
		{"speed without district", s.UpsertSpeed(SpeedUpdate{EdgeID: "e"})},
		{"weather without edge", s.UpsertWeather(WeatherUpdate{DistrictID: "d"})},
		{"camera without district", s.UpsertCamera(CameraUpdate{EdgeID: "e"})},
		{"vehicle without id", s.UpsertVehicle(Vehicle{Type: "bus"})},
		{"building without id", s.UpsertBuildingSensor(BuildingUpdate{SensorType: "acoustic"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, errors.IsInvalid(tt.err))
			assert.ErrorIs(t, tt.err, errors.ErrMissingIdentity)
		})
	}

	// Nothing mutated
	counts := s.Stats()
	assert.Equal(t, EntityCounts{}, counts)
	assert.Equal(t, 0, s.FreshnessLen())
}

func TestUpsertVehicle_FullReplace(t *testing.T) {
	s := NewStore(time.Minute)

	require.NoError(t, s.UpsertVehicle(Vehicle{
		VehicleID: "v1", Type: "bus", Name: "Route 7",
		SpeedKmh: f64(25), BatteryLevelPercent: f64(80),
	}))
	require.NoError(t, s.UpsertVehicle(Vehicle{
		VehicleID: "v1", Type: "bus", Latitude: f64(42.3),
	}))

	v := s.Snapshot(time.Now()).Vehicles["v1"]
	// Replace, not merge: fields absent from the second update are gone
	assert.Empty(t, v.Name)
	assert.Nil(t, v.SpeedKmh)
	assert.NotNil(t, v.Latitude)
}

func TestUpsertBuildingSensor_MetadataFixedOnFirstSight(t *testing.T) {
	s := NewStore(time.Minute)

	require.NoError(t, s.UpsertBuildingSensor(BuildingUpdate{
		BuildingID: "b1", Name: "San Salvatore", Type: "hospital",
		DistrictID: "district-centro",
		SensorType: "air_quality",
		Measurements: map[string]float64{"pm25_ugm3": 12},
		Timestamp:  1000,
	}))
	require.NoError(t, s.UpsertBuildingSensor(BuildingUpdate{
		BuildingID: "b1", Name: "Renamed", Type: "school",
		SensorType: "acoustic",
		Measurements: map[string]float64{"noise_level_db": 61},
		Timestamp:  2000,
	}))

	b := s.Snapshot(time.Now()).Buildings["b1"]
	// Metadata from the first sighting wins
	assert.Equal(t, "San Salvatore", b.Name)
	assert.Equal(t, "hospital", b.Type)
	assert.Equal(t, "district-centro", b.DistrictID)
	// Sensors merge by type
	require.Len(t, b.Sensors, 2)
	assert.Equal(t, 12.0, b.Sensors["air_quality"].Measurements["pm25_ugm3"])
	assert.Equal(t, 61.0, b.Sensors["acoustic"].Measurements["noise_level_db"])
}

func TestReap_IndexOnlyByDefault(t *testing.T) {
	s := NewStore(time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.UpsertSpeed(SpeedUpdate{
		DistrictID: "d", EdgeID: "edge-1", SpeedKmh: f64(30),
	}))
	require.NoError(t, s.UpsertVehicle(Vehicle{VehicleID: "v1"}))

	reaped := s.Reap(base.Add(2 * time.Minute))
	assert.Equal(t, 2, reaped)

	// Index entries gone, entity data untouched
	assert.Equal(t, 0, s.FreshnessLen())
	snap := s.Snapshot(base.Add(2 * time.Minute))
	assert.Contains(t, snap.Edges, "edge-1")
	assert.Contains(t, snap.Vehicles, "v1")
}

func TestReap_FreshEntriesSurvive(t *testing.T) {
	s := NewStore(time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.UpsertVehicle(Vehicle{VehicleID: "old"}))
	s.now = func() time.Time { return base.Add(90 * time.Second) }
	require.NoError(t, s.UpsertVehicle(Vehicle{VehicleID: "new"}))

	reaped := s.Reap(base.Add(2 * time.Minute))
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 1, s.FreshnessLen())
}

func TestReap_EvictionPolicy(t *testing.T) {
	s := NewStore(time.Minute, WithStaleDataEviction())
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.UpsertSpeed(SpeedUpdate{
		DistrictID: "d", EdgeID: "edge-1", SpeedKmh: f64(30),
	}))
	require.NoError(t, s.UpsertWeather(WeatherUpdate{
		DistrictID: "d", EdgeID: "edge-1", TemperatureC: f64(10),
	}))
	require.NoError(t, s.UpsertVehicle(Vehicle{VehicleID: "v1"}))
	require.NoError(t, s.UpsertBuildingSensor(BuildingUpdate{
		BuildingID: "b1", SensorType: "acoustic",
		Measurements: map[string]float64{"noise_level_db": 50},
	}))

	// Refresh only the weather facet so the edge itself survives
	s.now = func() time.Time { return base.Add(90 * time.Second) }
	require.NoError(t, s.UpsertWeather(WeatherUpdate{
		DistrictID: "d", EdgeID: "edge-1", TemperatureC: f64(11),
	}))

	snap := s.Snapshot(base.Add(2 * time.Minute))

	// Stale speed facet evicted, fresh weather facet kept
	edge := snap.Edges["edge-1"]
	require.NotNil(t, edge)
	assert.Nil(t, edge.Speed)
	assert.NotNil(t, edge.Weather)

	// Stale vehicle and building removed entirely
	assert.NotContains(t, snap.Vehicles, "v1")
	assert.NotContains(t, snap.Buildings, "b1")
}

func TestReap_EvictionRemovesEmptyEdge(t *testing.T) {
	s := NewStore(time.Minute, WithStaleDataEviction())
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.UpsertSpeed(SpeedUpdate{
		DistrictID: "d", EdgeID: "edge-1", SpeedKmh: f64(30),
	}))

	snap := s.Snapshot(base.Add(2 * time.Minute))
	assert.NotContains(t, snap.Edges, "edge-1")
	// The district itself is derived and never explicitly deleted
	require.Contains(t, snap.Districts, "d")
	assert.Empty(t, snap.Districts["d"].Edges)
}

func TestSnapshot_DeepCopy(t *testing.T) {
	s := NewStore(time.Minute)

	require.NoError(t, s.UpsertSpeed(SpeedUpdate{
		DistrictID: "d", EdgeID: "edge-1", SpeedKmh: f64(30),
	}))
	require.NoError(t, s.UpsertBuildingSensor(BuildingUpdate{
		BuildingID: "b1", SensorType: "acoustic",
		Measurements: map[string]float64{"noise_level_db": 50},
	}))

	snap := s.Snapshot(time.Now())

	// Mutate the snapshot and verify the store is unaffected
	*snap.Edges["edge-1"].Speed.SpeedKmh = 99
	snap.Buildings["b1"].Sensors["acoustic"].Measurements["noise_level_db"] = 99
	delete(snap.Districts["d"].Edges, "edge-1")

	fresh := s.Snapshot(time.Now())
	assert.Equal(t, 30.0, *fresh.Edges["edge-1"].Speed.SpeedKmh)
	assert.Equal(t, 50.0, fresh.Buildings["b1"].Sensors["acoustic"].Measurements["noise_level_db"])
	assert.Contains(t, fresh.Districts["d"].Edges, "edge-1")
}

func TestSnapshot_Counts(t *testing.T) {
	s := NewStore(time.Minute)

	require.NoError(t, s.UpsertSpeed(SpeedUpdate{DistrictID: "d1", EdgeID: "e1", SpeedKmh: f64(1)}))
	require.NoError(t, s.UpsertSpeed(SpeedUpdate{DistrictID: "d1", EdgeID: "e2", SpeedKmh: f64(2)}))
	require.NoError(t, s.UpsertVehicle(Vehicle{VehicleID: "v1"}))
	require.NoError(t, s.UpsertBuildingSensor(BuildingUpdate{BuildingID: "b1", SensorType: "acoustic"}))

	snap := s.Snapshot(time.Now())
	assert.Equal(t, EntityCounts{Districts: 1, Edges: 2, Vehicles: 1, Buildings: 1}, snap.Counts)
}

func TestConcurrentVehicleUpserts_NoLostWrites(t *testing.T) {
	s := NewStore(time.Minute)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.UpsertVehicle(Vehicle{
				VehicleID: fmt.Sprintf("v-%03d", i),
				Type:      "bus",
				SpeedKmh:  f64(float64(i)),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot(time.Now())
	require.Len(t, snap.Vehicles, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("v-%03d", i)
		v := snap.Vehicles[id]
		require.NotNil(t, v, "vehicle %s missing", id)
		require.NotNil(t, v.SpeedKmh)
		assert.Equal(t, float64(i), *v.SpeedKmh)
		assert.Equal(t, "bus", v.Type)
	}
}

func TestConcurrentFacetWrites_SameEdge(t *testing.T) {
	s := NewStore(time.Minute)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() { defer wg.Done(); _ = upSpeed(s) }()
	go func() { defer wg.Done(); _ = upWeather(s) }()
	go func() { defer wg.Done(); _ = upCamera(s) }()
	wg.Wait()

	edge := s.Snapshot(time.Now()).Edges["edge-1"]
	assert.NotNil(t, edge.Speed)
	assert.NotNil(t, edge.Weather)
	assert.NotNil(t, edge.Camera)
}
