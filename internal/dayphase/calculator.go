// Package dayphase computes sunrise and sunset for a location
package dayphase

import (
	"errors"
	"time"

	"blindscontrol/internal/clock"

	"github.com/nathan-osman/go-sunrise"
	"go.uber.org/zap"
)

// SunEvent represents the simplified sun event state
type SunEvent string

const (
	SunEventMorning SunEvent = "morning"
	SunEventDay     SunEvent = "day"
	SunEventSunset  SunEvent = "sunset"
	SunEventDusk    SunEvent = "dusk"
	SunEventNight   SunEvent = "night"
)

// Kind names a scheduled sun transition
type Kind string

const (
	Sunrise Kind = "sunrise"
	Sunset  Kind = "sunset"
)

// ErrNoSunEvents is returned where the sun neither rises nor sets for days on end
var ErrNoSunEvents = errors.New("no sunrise or sunset in range")

// SunTimes are the sun events of one day, in UTC
type SunTimes struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
	Dawn    time.Time `json:"dawn"`
	Dusk    time.Time `json:"dusk"`
}

// Event is a sun transition at a point in time
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
}

// Calculator computes sun times for a fixed location
type Calculator struct {
	latitude  float64
	longitude float64
	clock     clock.Clock
	logger    *zap.Logger
}

// NewCalculator creates a new sun time calculator
func NewCalculator(latitude, longitude float64, clk clock.Clock, logger *zap.Logger) *Calculator {
	return &Calculator{
		latitude:  latitude,
		longitude: longitude,
		clock:     clk,
		logger:    logger.Named("dayphase"),
	}
}

// SunTimes returns the sun events for the calendar day of t.
// Dawn and dusk approximate civil twilight as 30 minutes either side.
func (c *Calculator) SunTimes(t time.Time) SunTimes {
	rise, set := sunrise.SunriseSunset(c.latitude, c.longitude, t.Year(), t.Month(), t.Day())
	st := SunTimes{Sunrise: rise, Sunset: set}
	if !rise.IsZero() {
		st.Dawn = rise.Add(-30 * time.Minute)
	}
	if !set.IsZero() {
		st.Dusk = set.Add(30 * time.Minute)
	}
	return st
}

// Today returns the sun events for the current day
func (c *Calculator) Today() SunTimes {
	return c.SunTimes(c.clock.Now())
}

// SunEvent returns the current simplified sun event state
func (c *Calculator) SunEvent() SunEvent {
	now := c.clock.Now()
	st := c.SunTimes(now)
	if st.Sunrise.IsZero() || st.Sunset.IsZero() {
		return SunEventNight
	}

	switch {
	case now.Before(st.Dawn):
		return SunEventNight
	case now.Before(st.Sunrise.Add(30 * time.Minute)):
		return SunEventMorning
	case now.Before(st.Sunset.Add(-60 * time.Minute)):
		return SunEventDay
	case now.Before(st.Sunset):
		return SunEventSunset
	case now.Before(st.Dusk):
		return SunEventDusk
	default:
		return SunEventNight
	}
}

// Next returns the first sunrise+riseOffset or sunset+setOffset strictly after now.
// It looks up to a week ahead.
func (c *Calculator) Next(riseOffset, setOffset time.Duration) (Event, error) {
	now := c.clock.Now()

	for day := -1; day <= 7; day++ {
		st := c.SunTimes(now.AddDate(0, 0, day))

		var candidates []Event
		if !st.Sunrise.IsZero() {
			candidates = append(candidates, Event{Kind: Sunrise, At: st.Sunrise.Add(riseOffset)})
		}
		if !st.Sunset.IsZero() {
			candidates = append(candidates, Event{Kind: Sunset, At: st.Sunset.Add(setOffset)})
		}
		if len(candidates) == 2 && candidates[1].At.Before(candidates[0].At) {
			candidates[0], candidates[1] = candidates[1], candidates[0]
		}

		for _, ev := range candidates {
			if ev.At.After(now) {
				c.logger.Debug("Next sun event",
					zap.String("kind", string(ev.Kind)),
					zap.Time("at", ev.At))
				return ev, nil
			}
		}
	}

	return Event{}, ErrNoSunEvents
}
