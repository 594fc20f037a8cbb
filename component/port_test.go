package component

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSPort_Portable(t *testing.T) {
	p := NATSPort{Subject: "telemetry.speed", Queue: "aggregators"}

	assert.Equal(t, "nats:telemetry.speed", p.ResourceID())
	assert.False(t, p.IsExclusive(), "NATS subjects are shared")
	assert.Equal(t, "nats", p.Type())
}

func TestNetworkPort_Portable(t *testing.T) {
	p := NetworkPort{Protocol: "tcp", Host: "0.0.0.0", Port: 8080}

	assert.Equal(t, "tcp:0.0.0.0:8080", p.ResourceID())
	assert.True(t, p.IsExclusive(), "listen sockets are exclusive")
	assert.Equal(t, "network", p.Type())
}

func TestPort_MarshalsConfigInline(t *testing.T) {
	port := Port{
		Name:      "snapshots",
		Direction: DirectionOutput,
		Required:  true,
		Config:    NATSPort{Subject: "city.twin.snapshot", Stream: "CITY_TWIN"},
	}

	data, err := json.Marshal(port)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"direction":"output"`)
	assert.Contains(t, string(data), `"subject":"city.twin.snapshot"`)
	assert.Contains(t, string(data), `"stream":"CITY_TWIN"`)
}
