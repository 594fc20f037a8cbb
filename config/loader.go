package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "CITYTWIN",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := l.getDefaults()

	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Version: "1.0.0",
		City: CityConfig{
			Version: "1.0",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			ClientName:    "citytwin-aggregator",
		},
		Streams: StreamsConfig{
			Speed:            "city.telemetry.speed",
			Weather:          "city.telemetry.weather",
			Camera:           "city.telemetry.camera",
			Vehicle:          "city.telemetry.vehicle",
			Building:         "city.telemetry.building",
			OutputSubject:    "city.twin.snapshot",
			OutputStream:     "CITY_TWIN",
			ConsumerGroup:    "citytwin-aggregator",
			SubscribeRetries: 5,
			SubscribeDelay:   2 * time.Second,
		},
		State: StateConfig{
			TTLSeconds: 300,
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 10,
			PublishTimeout:  5 * time.Second,
			ConnectAttempts: 10,
			ConnectDelay:    2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		WebSocket: WebSocketConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
			Path:    "/ws",
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if nats, ok := data["nats"].(map[string]any); ok {
		parseDurationField(nats, "reconnect_wait")
	}
	if streams, ok := data["streams"].(map[string]any); ok {
		parseDurationField(streams, "subscribe_delay")
	}
	if sched, ok := data["scheduler"].(map[string]any); ok {
		parseDurationField(sched, "publish_timeout")
		parseDurationField(sched, "connect_delay")
	}
}

func parseDurationField(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			m[key] = d.Nanoseconds()
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := l.getenv("_CITY_ID"); val != "" {
		cfg.City.CityID = val
	}
	if val := l.getenv("_CITY_NAME"); val != "" {
		cfg.City.Name = val
	}

	if val := l.getenv("_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := l.getenv("_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := l.getenv("_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := l.getenv("_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}

	if val := l.getenv("_OUTPUT_SUBJECT"); val != "" {
		cfg.Streams.OutputSubject = val
	}
	if val := l.getenv("_OUTPUT_STREAM"); val != "" {
		cfg.Streams.OutputStream = val
	}
	if val := l.getenv("_CONSUMER_GROUP"); val != "" {
		cfg.Streams.ConsumerGroup = val
	}

	if val := l.getenv("_STATE_TTL_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.State.TTLSeconds = n
		}
	}
	if val := l.getenv("_EVICT_STALE_DATA"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.State.EvictStaleData = b
		}
	}
	if val := l.getenv("_SNAPSHOT_INTERVAL_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Scheduler.IntervalSeconds = n
		}
	}

	if val := l.getenv("_METRICS_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = n
		}
	}
}

func (l *Loader) getenv(suffix string) string {
	key := l.envPrefix + suffix
	val := os.Getenv(key)
	if err := validateEnvVar(key, val); err != nil {
		return ""
	}
	return val
}
