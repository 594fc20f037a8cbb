package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, int32(0), c.Failures())
}

func TestNewClient_Options(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("citytwin-test"),
		WithMaxReconnects(5),
		WithReconnectWait(time.Second),
		WithTimeout(2*time.Second),
		WithDrainTimeout(3*time.Second),
		WithCompression(true),
	)
	require.NoError(t, err)

	assert.Equal(t, "citytwin-test", c.clientName)
	assert.Equal(t, 5, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.True(t, c.compression)

	// Option-derived nats.Options must build without panicking
	assert.NotEmpty(t, c.ConnectionOptions())
}

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestOperations_RequireConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Publish(context.Background(), "subject", nil), ErrNotConnected)
	_, err = c.ChanQueueSubscribe("subject", "group", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.PublishToStream(context.Background(), "subject", nil), ErrNotConnected)
	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnect_ContextCancelled(t *testing.T) {
	// Unroutable address so the dial blocks long enough to be cancelled
	c, err := NewClient("nats://10.255.255.1:4222", WithTimeout(5*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, int32(1), c.Failures())
}

func TestWaitForConnection_Timeout(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = c.WaitForConnection(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_Idempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	assert.Equal(t, StatusDisconnected, c.Status())
}
