package position

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	normalCal   = Calibration{Open: 180, Close: 20}
	reversedCal = Calibration{Open: 20, Close: 180}
)

func TestNewCalibration(t *testing.T) {
	cal, err := NewCalibration(180, 20)
	require.NoError(t, err)
	assert.Equal(t, Normal, cal.Direction())

	cal, err = NewCalibration(20, 180)
	require.NoError(t, err)
	assert.True(t, cal.Reversed())

	_, err = NewCalibration(90, 90)
	assert.ErrorIs(t, err, ErrDegenerateCalibration)
}

func TestCalibration_Bounds(t *testing.T) {
	lo, hi := normalCal.Bounds()
	assert.Equal(t, 20, lo)
	assert.Equal(t, 180, hi)

	lo, hi = reversedCal.Bounds()
	assert.Equal(t, 20, lo)
	assert.Equal(t, 180, hi)

	assert.True(t, reversedCal.Contains(20))
	assert.True(t, reversedCal.Contains(180))
	assert.False(t, reversedCal.Contains(181))
	assert.False(t, normalCal.Contains(19))
}

func TestToRaw(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		pos  int
		want int
	}{
		{"normal midpoint", normalCal, 50, 100},
		{"normal closed", normalCal, 0, 20},
		{"normal open", normalCal, 100, 180},
		// Position 0 of a reversed blind maps to its close coordinate, not to open_pos.
		// Mapping 0 to open_pos would break rawToNormalized(close_pos) == (0, true)
		// and the round trip through both functions.
		{"reversed midpoint", reversedCal, 50, 100},
		{"reversed closed", reversedCal, 0, 180},
		{"reversed open", reversedCal, 100, 20},
		{"reversed quarter", reversedCal, 25, 140},
		{"identity", Identity, 37, 37},
		{"clamps below zero", normalCal, -10, 20},
		{"clamps above hundred", normalCal, 150, 180},
		{"rounds half away from zero", Calibration{Open: 1, Close: 0}, 50, 1},
		{"rounds half away from zero reversed", Calibration{Open: 0, Close: 1}, 50, 0},
		{"rounds down below half", Calibration{Open: 10, Close: 0}, 44, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToRaw(tt.pos, tt.cal))
		})
	}
}

func TestToNormalized(t *testing.T) {
	tests := []struct {
		name       string
		cal        Calibration
		raw        int
		wantPos    int
		wantClosed bool
	}{
		{"normal at close", normalCal, 20, 0, true},
		{"normal at open", normalCal, 180, 100, false},
		{"normal below close", normalCal, 10, 0, true},
		{"normal above open", normalCal, 200, 100, false},
		{"normal midpoint", normalCal, 100, 50, false},
		{"reversed midpoint", reversedCal, 100, 50, false},
		{"reversed at close", reversedCal, 180, 0, true},
		{"reversed at open", reversedCal, 20, 100, false},
		{"reversed beyond close", reversedCal, 190, 0, true},
		{"reversed beyond open", reversedCal, 5, 100, false},
		{"reversed quarter", reversedCal, 140, 25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, closed := ToNormalized(tt.raw, tt.cal)
			assert.Equal(t, tt.wantPos, pos)
			assert.Equal(t, tt.wantClosed, closed)
		})
	}
}

func TestToNormalized_InteriorNeverClosed(t *testing.T) {
	// 1 raw unit above the closed end of a 1000-wide range is 0.1%, which rounds to 0
	cal := Calibration{Open: 1000, Close: 0}
	pos, closed := ToNormalized(1, cal)
	assert.Equal(t, 0, pos)
	assert.False(t, closed)

	rev := Calibration{Open: 0, Close: 1000}
	pos, closed = ToNormalized(999, rev)
	assert.Equal(t, 0, pos)
	assert.False(t, closed)
}

func TestToNormalized_Degenerate(t *testing.T) {
	cal := Calibration{Open: 50, Close: 50}
	pos, closed := ToNormalized(50, cal)
	assert.Equal(t, 0, pos)
	assert.True(t, closed)

	pos, closed = ToNormalized(10, cal)
	assert.Equal(t, 100, pos)
	assert.False(t, closed)

	assert.Equal(t, 50, ToRaw(70, cal))
}

func TestRoundTrip(t *testing.T) {
	cals := []Calibration{
		normalCal,
		reversedCal,
		Identity,
		{Open: 2000, Close: 500},
		{Open: 500, Close: 2000},
		{Open: 60, Close: -60},
		{Open: 70, Close: 0},
	}

	for _, cal := range cals {
		t.Run(cal.String(), func(t *testing.T) {
			for p := 0; p <= 100; p++ {
				raw := ToRaw(p, cal)
				require.True(t, cal.Contains(raw), "raw %d outside range", raw)

				got, _ := ToNormalized(raw, cal)
				assert.InDelta(t, p, got, 1, "position %d -> raw %d -> %d", p, raw, got)
			}
		})
	}
}

func TestRoundTrip_NarrowRanges(t *testing.T) {
	for span := 1; span < 50; span++ {
		for _, cal := range []Calibration{{Open: span, Close: 0}, {Open: 0, Close: span}} {
			tolerance := (50 + span - 1) / span
			for p := 0; p <= 100; p++ {
				got, _ := ToNormalized(ToRaw(p, cal), cal)
				assert.InDelta(t, p, got, float64(tolerance), fmt.Sprintf("%s p=%d", cal, p))
			}
		}
	}
}

func TestBoundaries(t *testing.T) {
	for _, cal := range []Calibration{normalCal, reversedCal} {
		assert.Equal(t, cal.Close, ToRaw(Closed, cal))
		assert.Equal(t, cal.Open, ToRaw(Open, cal))

		pos, closed := ToNormalized(cal.Open, cal)
		assert.Equal(t, 100, pos)
		assert.False(t, closed)

		pos, closed = ToNormalized(cal.Close, cal)
		assert.Equal(t, 0, pos)
		assert.True(t, closed)
	}
}

func TestRoundDiv(t *testing.T) {
	assert.Equal(t, 1, roundDiv(5, 10))
	assert.Equal(t, 0, roundDiv(4, 10))
	assert.Equal(t, -1, roundDiv(-5, 10))
	assert.Equal(t, -1, roundDiv(5, -10))
	assert.Equal(t, 1, roundDiv(-5, -10))
	assert.Equal(t, 0, roundDiv(-4, 10))
	assert.Equal(t, 3, roundDiv(25, 10))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-1))
	assert.Equal(t, 100, Clamp(101))
	assert.Equal(t, 42, Clamp(42))
}
