package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/c360/citytwin/errors"
)

// Store is the thread-safe repository of current entity state. All mutating
// and reading operations hold a single coarse lock, so a reader never
// observes a record mid-update and concurrent writers to disjoint entities
// never lose updates (last-write-wins per facet, per entity).
type Store struct {
	mu sync.Mutex

	ttl            time.Duration
	evictStaleData bool

	districts map[string]*District
	edges     map[string]*Edge
	vehicles  map[string]*Vehicle
	buildings map[string]*Building

	// Freshness index, aged independently of the entity data
	freshness map[FreshnessKey]time.Time

	now func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithStaleDataEviction makes Reap delete the underlying facet or entity
// data along with the freshness entry. Without it only the index entry is
// removed and the data survives in the store.
func WithStaleDataEviction() StoreOption {
	return func(s *Store) {
		s.evictStaleData = true
	}
}

// NewStore creates a state store with the given staleness TTL
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		ttl:       ttl,
		districts: make(map[string]*District),
		edges:     make(map[string]*Edge),
		vehicles:  make(map[string]*Vehicle),
		buildings: make(map[string]*Building),
		freshness: make(map[FreshnessKey]time.Time),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpeedUpdate is a parsed record from the speed stream
type SpeedUpdate struct {
	DistrictID     string
	EdgeID         string
	Latitude       *float64
	Longitude      *float64
	SpeedKmh       *float64
	SensorReadings []SensorReading
	Timestamp      int64
}

// WeatherUpdate is a parsed record from the weather stream
type WeatherUpdate struct {
	DistrictID   string
	EdgeID       string
	TemperatureC *float64
	Humidity     *float64
	Conditions   string
	Timestamp    int64
}

// CameraUpdate is a parsed record from the camera stream
type CameraUpdate struct {
	DistrictID      string
	EdgeID          string
	RoadCondition   string
	ConfidenceScore *float64
	VehicleCount    *int
	Timestamp       int64
}

// BuildingUpdate is a parsed record from the building stream
type BuildingUpdate struct {
	BuildingID   string
	Name         string
	Type         string
	DistrictID   string
	Latitude     *float64
	Longitude    *float64
	SensorType   string
	Measurements map[string]float64
	Timestamp    int64
}

// UpsertSpeed overwrites the speed facet of an edge, creating the edge and
// its district if absent. The shared edge location is refreshed from the
// update when present.
func (s *Store) UpsertSpeed(u SpeedUpdate) error {
	if u.DistrictID == "" || u.EdgeID == "" {
		return errors.WrapInvalid(errors.ErrMissingIdentity,
			"Store", "UpsertSpeed", "identity validation failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge := s.ensureEdge(u.DistrictID, u.EdgeID)
	if u.Latitude != nil {
		edge.Latitude = copyFloat(u.Latitude)
	}
	if u.Longitude != nil {
		edge.Longitude = copyFloat(u.Longitude)
	}
	edge.Speed = &SpeedFacet{
		SpeedKmh:       copyFloat(u.SpeedKmh),
		SensorReadings: u.SensorReadings,
		Timestamp:      u.Timestamp,
	}

	s.freshness[FreshnessKey{KindEdge, u.EdgeID, FacetSpeed}] = s.now()
	return nil
}

// UpsertWeather overwrites the weather facet of an edge
func (s *Store) UpsertWeather(u WeatherUpdate) error {
	if u.DistrictID == "" || u.EdgeID == "" {
		return errors.WrapInvalid(errors.ErrMissingIdentity,
			"Store", "UpsertWeather", "identity validation failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge := s.ensureEdge(u.DistrictID, u.EdgeID)
	edge.Weather = &WeatherFacet{
		TemperatureC: copyFloat(u.TemperatureC),
		Humidity:     copyFloat(u.Humidity),
		Conditions:   u.Conditions,
		Timestamp:    u.Timestamp,
	}

	s.freshness[FreshnessKey{KindEdge, u.EdgeID, FacetWeather}] = s.now()
	return nil
}

// UpsertCamera overwrites the camera facet of an edge
func (s *Store) UpsertCamera(u CameraUpdate) error {
	if u.DistrictID == "" || u.EdgeID == "" {
		return errors.WrapInvalid(errors.ErrMissingIdentity,
			"Store", "UpsertCamera", "identity validation failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge := s.ensureEdge(u.DistrictID, u.EdgeID)
	edge.Camera = &CameraFacet{
		RoadCondition:   u.RoadCondition,
		ConfidenceScore: copyFloat(u.ConfidenceScore),
		VehicleCount:    copyInt(u.VehicleCount),
		Timestamp:       u.Timestamp,
	}

	s.freshness[FreshnessKey{KindEdge, u.EdgeID, FacetCamera}] = s.now()
	return nil
}

// UpsertVehicle replaces the whole vehicle record
func (s *Store) UpsertVehicle(v Vehicle) error {
	if v.VehicleID == "" {
		return errors.WrapInvalid(errors.ErrMissingIdentity,
			"Store", "UpsertVehicle", "identity validation failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.vehicles[v.VehicleID] = v.clone()
	s.freshness[FreshnessKey{KindVehicle, v.VehicleID, FacetFull}] = s.now()
	return nil
}

// UpsertBuildingSensor merges a sensor reading into a building. Building
// metadata (name, type, location, district key) is fixed on first sighting
// and not re-validated afterwards.
func (s *Store) UpsertBuildingSensor(u BuildingUpdate) error {
	if u.BuildingID == "" {
		return errors.WrapInvalid(errors.ErrMissingIdentity,
			"Store", "UpsertBuildingSensor", "identity validation failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buildings[u.BuildingID]
	if !ok {
		b = &Building{
			BuildingID: u.BuildingID,
			Name:       u.Name,
			Type:       u.Type,
			DistrictID: u.DistrictID,
			Latitude:   copyFloat(u.Latitude),
			Longitude:  copyFloat(u.Longitude),
			Sensors:    make(map[string]*BuildingSensor),
		}
		s.buildings[u.BuildingID] = b
	}

	if u.SensorType != "" {
		b.Sensors[u.SensorType] = &BuildingSensor{
			Type:         u.SensorType,
			Measurements: u.Measurements,
			Timestamp:    u.Timestamp,
		}
		s.freshness[FreshnessKey{KindBuilding, u.BuildingID, u.SensorType}] = s.now()
	}

	return nil
}

func (s *Store) ensureEdge(districtID, edgeID string) *Edge {
	edge, ok := s.edges[edgeID]
	if !ok {
		edge = &Edge{EdgeID: edgeID, DistrictID: districtID}
		s.edges[edgeID] = edge
	}

	district, ok := s.districts[districtID]
	if !ok {
		district = &District{
			DistrictID: districtID,
			Edges:      make(map[string]*Edge),
		}
		s.districts[districtID] = district
	}
	district.Edges[edgeID] = edge

	return edge
}

// Reap deletes freshness entries older than the TTL and returns how many it
// removed. With stale-data eviction enabled the underlying facet or entity
// is deleted too; otherwise the data stays in the store and only the index
// entry goes.
func (s *Store) Reap(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reapLocked(now)
}

func (s *Store) reapLocked(now time.Time) int {
	reaped := 0
	for key, last := range s.freshness {
		if now.Sub(last) <= s.ttl {
			continue
		}
		delete(s.freshness, key)
		reaped++

		if s.evictStaleData {
			s.evictLocked(key)
		}
	}
	return reaped
}

// evictLocked removes the data addressed by a stale freshness key
func (s *Store) evictLocked(key FreshnessKey) {
	switch key.Kind {
	case KindEdge:
		edge, ok := s.edges[key.ID]
		if !ok {
			return
		}
		switch key.Facet {
		case FacetSpeed:
			edge.Speed = nil
		case FacetWeather:
			edge.Weather = nil
		case FacetCamera:
			edge.Camera = nil
		}
		if !edge.hasFacets() {
			delete(s.edges, key.ID)
			if district, ok := s.districts[edge.DistrictID]; ok {
				delete(district.Edges, key.ID)
			}
		}

	case KindVehicle:
		delete(s.vehicles, key.ID)

	case KindBuilding:
		b, ok := s.buildings[key.ID]
		if !ok {
			return
		}
		delete(b.Sensors, key.Facet)
		if len(b.Sensors) == 0 {
			delete(s.buildings, key.ID)
		}
	}
}

// StateSnapshot is a deep, consistent copy of the store at one instant
type StateSnapshot struct {
	Districts map[string]*District `json:"districts"`
	Edges     map[string]*Edge     `json:"edges"`
	Vehicles  map[string]*Vehicle  `json:"vehicles"`
	Buildings map[string]*Building `json:"buildings"`
	Counts    EntityCounts         `json:"total_entities"`
	TakenAt   time.Time            `json:"-"`
}

// Snapshot reaps stale freshness entries, then returns a deep copy of all
// entity state plus entity counts. The copy shares no memory with the store,
// so the builder can read it without holding the lock.
func (s *Store) Snapshot(now time.Time) *StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reapLocked(now)

	snap := &StateSnapshot{
		Districts: make(map[string]*District, len(s.districts)),
		Edges:     make(map[string]*Edge, len(s.edges)),
		Vehicles:  make(map[string]*Vehicle, len(s.vehicles)),
		Buildings: make(map[string]*Building, len(s.buildings)),
		TakenAt:   now,
	}

	for id, edge := range s.edges {
		snap.Edges[id] = edge.clone()
	}
	for id, district := range s.districts {
		d := &District{
			DistrictID: district.DistrictID,
			Edges:      make(map[string]*Edge, len(district.Edges)),
		}
		for edgeID := range district.Edges {
			if copied, ok := snap.Edges[edgeID]; ok {
				d.Edges[edgeID] = copied
			}
		}
		snap.Districts[id] = d
	}
	for id, v := range s.vehicles {
		snap.Vehicles[id] = v.clone()
	}
	for id, b := range s.buildings {
		snap.Buildings[id] = b.clone()
	}

	snap.Counts = EntityCounts{
		Districts: len(snap.Districts),
		Edges:     len(snap.Edges),
		Vehicles:  len(snap.Vehicles),
		Buildings: len(snap.Buildings),
	}

	return snap
}

// Stats returns current entity counts without taking a snapshot
func (s *Store) Stats() EntityCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	return EntityCounts{
		Districts: len(s.districts),
		Edges:     len(s.edges),
		Vehicles:  len(s.vehicles),
		Buildings: len(s.buildings),
	}
}

// FreshnessLen returns the number of live freshness entries
func (s *Store) FreshnessLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.freshness)
}

// String describes the store population, useful in shutdown logs
func (s *Store) String() string {
	c := s.Stats()
	return fmt.Sprintf("districts=%d edges=%d vehicles=%d buildings=%d",
		c.Districts, c.Edges, c.Vehicles, c.Buildings)
}
