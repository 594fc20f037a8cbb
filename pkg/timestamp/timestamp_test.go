package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse_Formats(t *testing.T) {
	ref := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	refMs := ref.UnixMilli()

	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"nil", nil, 0},
		{"zero int64", int64(0), 0},
		{"seconds int64", ref.Unix(), refMs},
		{"milliseconds int64", refMs, refMs},
		{"seconds float64", float64(ref.Unix()), refMs},
		{"milliseconds float64", float64(refMs), refMs},
		{"int", int(ref.Unix()), refMs},
		{"rfc3339 string", "2023-01-01T12:00:00Z", refMs},
		{"seconds string", "1672574400", refMs},
		{"milliseconds string", "1672574400000", refMs},
		{"empty string", "", 0},
		{"garbage string", "not a time", 0},
		{"time.Time", ref, refMs},
		{"zero time.Time", time.Time{}, 0},
		{"nil *time.Time", (*time.Time)(nil), 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	now := Now()
	assert.Equal(t, now, ToUnixMs(FromUnixMs(now)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(0))
	assert.Equal(t, "2023-01-01T12:00:00Z", Format(1672574400000))
}

func TestZeroHandling(t *testing.T) {
	assert.True(t, IsZero(0))
	assert.False(t, IsZero(Now()))
	assert.Equal(t, time.Duration(0), Since(0))
	assert.Equal(t, int64(0), Add(0, time.Hour))
}

func TestAdd(t *testing.T) {
	base := int64(1672574400000)
	assert.Equal(t, base+60_000, Add(base, time.Minute))
}
