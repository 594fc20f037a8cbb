package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := NewLoader().getDefaults()
	cfg.City.CityID = "laquila"
	cfg.City.Name = "L'Aquila"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing city id", func(c *Config) { c.City.CityID = "" }, "city.city_id"},
		{"no nats urls", func(c *Config) { c.NATS.URLs = nil }, "nats.urls"},
		{"no input subjects", func(c *Config) {
			c.Streams.Speed = ""
			c.Streams.Weather = ""
			c.Streams.Camera = ""
			c.Streams.Vehicle = ""
			c.Streams.Building = ""
		}, "at least one input subject"},
		{"missing output subject", func(c *Config) { c.Streams.OutputSubject = "" }, "output_subject"},
		{"missing output stream", func(c *Config) { c.Streams.OutputStream = "" }, "output_stream"},
		{"bad consumer group", func(c *Config) { c.Streams.ConsumerGroup = "has space" }, "consumer_group"},
		{"zero ttl", func(c *Config) { c.State.TTLSeconds = 0 }, "ttl_seconds"},
		{"zero interval", func(c *Config) { c.Scheduler.IntervalSeconds = 0 }, "interval_seconds"},
		{"negative publish timeout", func(c *Config) { c.Scheduler.PublishTimeout = -time.Second }, "publish_timeout"},
		{"negative subscribe retries", func(c *Config) { c.Streams.SubscribeRetries = -1 }, "subscribe_retries"},
		{"negative subscribe delay", func(c *Config) { c.Streams.SubscribeDelay = -time.Second }, "subscribe_delay"},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestInputSubjects_OmitsEmpty(t *testing.T) {
	s := StreamsConfig{Speed: "city.telemetry.speed", Vehicle: "city.telemetry.vehicle"}
	subjects := s.InputSubjects()
	assert.Len(t, subjects, 2)
	assert.Equal(t, "city.telemetry.speed", subjects["speed"])
	assert.NotContains(t, subjects, "weather")
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, 5*time.Minute, StateConfig{TTLSeconds: 300}.TTL())
	assert.Equal(t, 10*time.Second, SchedulerConfig{IntervalSeconds: 10}.Interval())
}

func TestClone_Independent(t *testing.T) {
	cfg := validConfig()
	clone := cfg.Clone()
	clone.City.CityID = "other"
	clone.NATS.URLs[0] = "nats://elsewhere:4222"

	assert.Equal(t, "laquila", cfg.City.CityID)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URLs[0])
}

func TestString_RedactsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "secret-token"

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "secret-token")
	assert.Contains(t, s, "[redacted]")
}

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_LayeredMerge(t *testing.T) {
	dir := t.TempDir()
	base := writeConfigFile(t, dir, "base.json", `{
		"city": {"city_id": "laquila", "name": "L'Aquila"},
		"state": {"ttl_seconds": 120}
	}`)
	override := writeConfigFile(t, dir, "override.json", `{
		"state": {"ttl_seconds": 60, "evict_stale_data": true},
		"streams": {"subscribe_retries": 3, "subscribe_delay": "500ms"},
		"scheduler": {"interval_seconds": 5, "publish_timeout": "3s"}
	}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Override layer wins, untouched base fields survive
	assert.Equal(t, "laquila", cfg.City.CityID)
	assert.Equal(t, 60, cfg.State.TTLSeconds)
	assert.True(t, cfg.State.EvictStaleData)
	assert.Equal(t, 5, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.PublishTimeout)
	assert.Equal(t, 3, cfg.Streams.SubscribeRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Streams.SubscribeDelay)

	// Defaults fill everything the layers never mention
	assert.Equal(t, "city.twin.snapshot", cfg.Streams.OutputSubject)
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.NATS.URLs)
}

func TestLoader_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	base := writeConfigFile(t, dir, "base.json", `{"city": {"city_id": "laquila"}}`)

	t.Setenv("CITYTWIN_CITY_ID", "env-city")
	t.Setenv("CITYTWIN_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("CITYTWIN_STATE_TTL_SECONDS", "45")
	t.Setenv("CITYTWIN_EVICT_STALE_DATA", "true")

	loader := NewLoader()
	loader.AddLayer(base)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-city", cfg.City.CityID)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 45, cfg.State.TTLSeconds)
	assert.True(t, cfg.State.EvictStaleData)
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader()
	loader.AddLayer(filepath.Join(t.TempDir(), "nope.json"))
	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoader_RejectsNonJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "city:\n  city_id: x\n")

	loader := NewLoader()
	loader.AddLayer(path)
	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only JSON")
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": {"b": [1, 2]}}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": }`+"}")))

	deep := ""
	for range 200 {
		deep += "["
	}
	assert.Error(t, validateJSONDepth([]byte(deep)))
}
