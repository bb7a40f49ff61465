// Package position converts between the 0-100 position shown to users and the raw
// actuator coordinate a blind controller understands.
//
// A blind is calibrated by two raw coordinates: where it is fully open and where it is
// fully closed. Either may be the larger one. The mapping is a straight line between the
// two, with 100 at the open end and 0 at the closed end, so the same formula serves both
// normal (open > close) and reversed (open < close) calibrations.
//
// All functions here are pure and safe for concurrent use.
package position

import (
	"errors"
	"fmt"
)

const (
	// Closed is the normalized position of a fully closed blind.
	Closed = 0
	// Open is the normalized position of a fully open blind.
	Open = 100
)

// ErrDegenerateCalibration is returned when open and close coordinates are equal.
var ErrDegenerateCalibration = errors.New("open and close positions must differ")

// Direction describes which way the raw range runs.
type Direction int

const (
	// Normal means the open coordinate is larger than the closed one.
	Normal Direction = iota
	// Reversed means the open coordinate is smaller than the closed one.
	Reversed
)

func (d Direction) String() string {
	if d == Reversed {
		return "reversed"
	}
	return "normal"
}

// Calibration holds the raw actuator coordinates of a blind's physical limits.
type Calibration struct {
	Open  int `json:"open" yaml:"open"`
	Close int `json:"close" yaml:"close"`
}

// Identity maps positions one-to-one; used for blinds without a calibration.
var Identity = Calibration{Open: Open, Close: Closed}

// NewCalibration validates and returns a calibration.
func NewCalibration(openPos, closePos int) (Calibration, error) {
	if openPos == closePos {
		return Calibration{}, fmt.Errorf("%w: both are %d", ErrDegenerateCalibration, openPos)
	}
	return Calibration{Open: openPos, Close: closePos}, nil
}

// Direction reports whether the calibration is normal or reversed.
func (c Calibration) Direction() Direction {
	if c.Open > c.Close {
		return Normal
	}
	return Reversed
}

// Reversed is shorthand for c.Direction() == Reversed.
func (c Calibration) Reversed() bool {
	return c.Direction() == Reversed
}

// Bounds returns the smallest and largest raw coordinate of the range.
func (c Calibration) Bounds() (lo, hi int) {
	if c.Open < c.Close {
		return c.Open, c.Close
	}
	return c.Close, c.Open
}

// Contains reports whether raw lies within the calibrated range, inclusive.
func (c Calibration) Contains(raw int) bool {
	lo, hi := c.Bounds()
	return raw >= lo && raw <= hi
}

// Span is the signed distance from the closed coordinate to the open one.
func (c Calibration) Span() int {
	return c.Open - c.Close
}

func (c Calibration) String() string {
	return fmt.Sprintf("open=%d close=%d (%s)", c.Open, c.Close, c.Direction())
}

// ToRaw converts a normalized position to a raw coordinate. Positions outside
// [0, 100] are clamped first.
func ToRaw(pos int, c Calibration) int {
	pos = Clamp(pos)
	return c.Close + roundDiv(c.Span()*pos, 100)
}

// ToNormalized converts a raw coordinate to a normalized position. Coordinates at or
// beyond either limit snap to that limit. closed is true only at or beyond the closed
// limit; an interior coordinate that rounds to 0 is not reported as closed.
func ToNormalized(raw int, c Calibration) (pos int, closed bool) {
	if c.Direction() == Normal {
		switch {
		case raw >= c.Open:
			return Open, false
		case raw <= c.Close:
			return Closed, true
		}
	} else {
		switch {
		case raw >= c.Close:
			return Closed, true
		case raw <= c.Open:
			return Open, false
		}
	}

	return roundDiv((raw-c.Close)*100, c.Span()), false
}

// Clamp limits pos to [0, 100].
func Clamp(pos int) int {
	switch {
	case pos < Closed:
		return Closed
	case pos > Open:
		return Open
	}
	return pos
}

// roundDiv divides n by d rounding half away from zero. d must not be zero.
func roundDiv(n, d int) int {
	if d < 0 {
		n, d = -n, -d
	}
	if n >= 0 {
		return (2*n + d) / (2 * d)
	}
	return -((-2*n + d) / (2 * d))
}
