package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrap_Format(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "state.Store", "UpsertVehicle", "identity validation")
	require.Error(t, err)
	assert.Equal(t, "state.Store.UpsertVehicle: identity validation failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassification_Preserved(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{
			name:  "invalid record",
			err:   WrapInvalid(ErrMissingIdentity, "telemetry", "handleRecord", "validation"),
			class: ErrorInvalid,
		},
		{
			name:  "transient connection",
			err:   WrapTransient(ErrConnectionTimeout, "natsclient", "Connect", "dial"),
			class: ErrorTransient,
		},
		{
			name:  "fatal startup",
			err:   WrapFatal(ErrMaxRetriesExceeded, "twin", "Start", "producer setup"),
			class: ErrorFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}

func TestClassification_DoubleWrapped(t *testing.T) {
	inner := WrapInvalid(ErrMissingIdentity, "state.Store", "UpsertSpeed", "validation")
	outer := fmt.Errorf("consume city.sensors.speed: %w", inner)

	assert.True(t, IsInvalid(outer))
	assert.True(t, stderrors.Is(outer, ErrMissingIdentity))

	var ce *ClassifiedError
	require.True(t, stderrors.As(outer, &ce))
	assert.Equal(t, "state.Store", ce.Component)
}

func TestIsTransient_Sentinels(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionTimeout))
	assert.True(t, IsTransient(ErrAckTimeout))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(ErrMissingIdentity))
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_PatternFallback(t *testing.T) {
	// Third-party errors without classification are matched by content
	assert.True(t, IsTransient(stderrors.New("dial tcp: i/o timeout")))
	assert.False(t, IsTransient(stderrors.New("schema mismatch")))
}

func TestIsInvalid_Sentinels(t *testing.T) {
	assert.True(t, IsInvalid(ErrMissingIdentity))
	assert.True(t, IsInvalid(ErrParsingFailed))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestIsFatal_Config(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrMissingConfig))
	assert.False(t, IsFatal(ErrPublishFailed))
}
