package twin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/citytwin/config"
	"github.com/c360/citytwin/errors"
	"github.com/c360/citytwin/natsclient"
	"github.com/c360/citytwin/snapshot"
	"github.com/c360/citytwin/state"
)

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)

	return NewPublisher(PublisherDeps{
		Name:       "twin-publisher",
		Store:      state.NewStore(time.Minute),
		Builder:    snapshot.NewBuilder(config.CityConfig{}),
		Subject:    "city.twin.snapshot",
		Stream:     "CITY_TWIN",
		Interval:   10 * time.Second,
		NATSClient: client,
	})
}

func TestInitialize_Valid(t *testing.T) {
	assert.NoError(t, newTestPublisher(t).Initialize())
}

func TestInitialize_Validation(t *testing.T) {
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)

	base := PublisherDeps{
		Store:      state.NewStore(time.Minute),
		Builder:    snapshot.NewBuilder(config.CityConfig{}),
		Subject:    "city.twin.snapshot",
		Stream:     "CITY_TWIN",
		Interval:   10 * time.Second,
		NATSClient: client,
	}

	tests := []struct {
		name   string
		mutate func(*PublisherDeps)
	}{
		{"nil store", func(d *PublisherDeps) { d.Store = nil }},
		{"nil builder", func(d *PublisherDeps) { d.Builder = nil }},
		{"nil client", func(d *PublisherDeps) { d.NATSClient = nil }},
		{"empty subject", func(d *PublisherDeps) { d.Subject = "" }},
		{"empty stream", func(d *PublisherDeps) { d.Stream = "" }},
		{"zero interval", func(d *PublisherDeps) { d.Interval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := base
			tt.mutate(&deps)
			err := NewPublisher(deps).Initialize()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestRunCycle_AbandonsOnPublishFailure(t *testing.T) {
	// The client is never connected, so the publish fails immediately and
	// the cycle is abandoned without retry
	p := newTestPublisher(t)

	p.runCycle(context.Background())

	assert.Equal(t, int64(0), p.Published())
	assert.Equal(t, int64(1), p.Failed())

	// The next cycle starts fresh and fails independently
	p.runCycle(context.Background())
	assert.Equal(t, int64(2), p.Failed())
}

func TestPublishTimeout_Defaulted(t *testing.T) {
	p := newTestPublisher(t)
	assert.Equal(t, defaultPublishTimeout, p.publishTimeout)

	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)
	p2 := NewPublisher(PublisherDeps{
		NATSClient:     client,
		PublishTimeout: time.Second,
	})
	assert.Equal(t, time.Second, p2.publishTimeout)
}

func TestSingleFlight_SkipAccounting(t *testing.T) {
	p := newTestPublisher(t)

	// Simulate an in-flight cycle
	require.True(t, p.cycleActive.CompareAndSwap(false, true))
	// A second tick must not enter the cycle
	assert.False(t, p.cycleActive.CompareAndSwap(false, true))

	p.cycleActive.Store(false)
	assert.True(t, p.cycleActive.CompareAndSwap(false, true))
}

func TestStop_BeforeStartIsNoop(t *testing.T) {
	assert.NoError(t, newTestPublisher(t).Stop(time.Second))
}

func TestOutputPorts(t *testing.T) {
	ports := newTestPublisher(t).OutputPorts()
	require.Len(t, ports, 1)
	assert.Equal(t, "snapshot", ports[0].Name)
}

func TestBroadcast_CalledOnSuccessOnly(t *testing.T) {
	p := newTestPublisher(t)
	called := 0
	p.broadcast = func(*snapshot.Document) { called++ }

	// Publish fails (not connected), broadcast must not fire
	p.runCycle(context.Background())
	assert.Equal(t, 0, called)
}

func TestDataFlow_ErrorRate(t *testing.T) {
	p := newTestPublisher(t)
	p.runCycle(context.Background())

	flow := p.DataFlow()
	assert.Equal(t, 1.0, flow.ErrorRate)
}
