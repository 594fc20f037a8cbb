package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/citytwin/config"
	"github.com/c360/citytwin/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		City: config.CityConfig{CityID: "laquila-dt-001", Name: "L'Aquila Digital Twin"},
		NATS: config.NATSConfig{URLs: []string{"nats://127.0.0.1:4222"}},
		Streams: config.StreamsConfig{
			Speed:         "city.telemetry.speed",
			Weather:       "city.telemetry.weather",
			Camera:        "city.telemetry.camera",
			Vehicle:       "city.telemetry.vehicle",
			Building:      "city.telemetry.building",
			OutputSubject: "city.twin.snapshot",
			OutputStream:  "CITY_TWIN",
			ConsumerGroup: "citytwin-aggregator",
		},
		State:     config.StateConfig{TTLSeconds: 300},
		Scheduler: config.SchedulerConfig{IntervalSeconds: 10},
	}
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.City.CityID = ""
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNew_WiresPipeline(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	assert.NotNil(t, a.store)
	assert.NotNil(t, a.consumer)
	assert.NotNil(t, a.publisher)
	assert.Nil(t, a.feed, "feed disabled by default")
	assert.Nil(t, a.metricsServer, "metrics disabled by default")
	assert.Equal(t, StatusStopped, a.Status())
}

func TestNew_EnablesOptionalSurfaces(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = config.MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"}
	cfg.WebSocket = config.WebSocketConfig{Enabled: true, Port: 8080}

	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.metricsServer)
	assert.NotNil(t, a.feed)
	assert.Len(t, a.lifecycleComponents(), 3)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "stopped", StatusStopped.String())
	assert.Equal(t, "starting", StatusStarting.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "stopping", StatusStopping.String())
	assert.Equal(t, "unknown", Status(99).String())
}

func TestRun_FatalWhenNATSUnreachable(t *testing.T) {
	cfg := testConfig()
	// Non-routable address so connect fails fast and deterministically
	cfg.NATS.URLs = []string{"nats://10.255.255.1:4222"}
	cfg.Scheduler.ConnectAttempts = 1
	cfg.Scheduler.ConnectDelay = 10 * time.Millisecond

	a, err := New(cfg, nil, WithStopTimeout(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = a.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrMaxRetriesExceeded)
	assert.Equal(t, StatusStopped, a.Status())
}

func TestWithStopTimeout(t *testing.T) {
	a, err := New(testConfig(), nil, WithStopTimeout(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, a.stopTimeout)
}
