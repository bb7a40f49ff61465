// Package sunschedule opens covers at sunrise and closes them at sunset
package sunschedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blindscontrol/internal/clock"
	"blindscontrol/internal/config"
	"blindscontrol/internal/cover"
	"blindscontrol/internal/dayphase"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	commandTimeout = 30 * time.Second
	// retryInterval applies when no sun event falls within the calculator's range
	retryInterval = 24 * time.Hour
)

// Manager schedules the next sun event and drives the selected covers when it fires
type Manager struct {
	covers *cover.Registry
	clock  clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	cfg     config.SunScheduleConfig
	calc    *dayphase.Calculator
	timer   clock.Timer
	next    dayphase.Event
	running bool
}

// NewManager creates a new sun schedule
func NewManager(covers *cover.Registry, cfg config.SunScheduleConfig, clk clock.Clock, logger *zap.Logger) *Manager {
	m := &Manager{
		covers: covers,
		clock:  clk,
		logger: logger.Named("sunschedule"),
	}
	m.cfg, m.calc = cfg, m.calculator(cfg)
	return m
}

func (m *Manager) calculator(cfg config.SunScheduleConfig) *dayphase.Calculator {
	return dayphase.NewCalculator(cfg.Latitude, cfg.Longitude, m.clock, m.logger)
}

// Start schedules the first sun event
func (m *Manager) Start() error {
	m.logger.Info("Starting sun schedule")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.scheduleLocked()
	return nil
}

// Stop cancels the pending event
func (m *Manager) Stop() {
	m.logger.Info("Stopping sun schedule")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.cancelLocked()
}

// Reconfigure replaces the location, offsets and covers and reschedules
func (m *Manager) Reconfigure(cfg config.SunScheduleConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg, m.calc = cfg, m.calculator(cfg)
	m.cancelLocked()
	if m.running {
		m.scheduleLocked()
	}
}

// Next returns the scheduled event, if any
func (m *Manager) Next() (dayphase.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next, m.timer != nil && !m.next.At.IsZero()
}

// Today returns today's sun times and the current phase of the day
func (m *Manager) Today() (dayphase.SunTimes, dayphase.SunEvent) {
	m.mu.Lock()
	calc := m.calc
	m.mu.Unlock()
	return calc.Today(), calc.SunEvent()
}

func (m *Manager) cancelLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.next = dayphase.Event{}
}

func (m *Manager) scheduleLocked() {
	if !m.cfg.Enabled {
		m.logger.Info("Sun schedule disabled")
		return
	}

	ev, err := m.calc.Next(m.cfg.SunriseOffset, m.cfg.SunsetOffset)
	if err != nil {
		if errors.Is(err, dayphase.ErrNoSunEvents) {
			m.logger.Warn("No sunrise or sunset coming up, checking again tomorrow")
		} else {
			m.logger.Error("Failed to calculate next sun event", zap.Error(err))
		}
		m.timer = m.clock.AfterFunc(retryInterval, m.retry)
		return
	}

	m.next = ev
	m.timer = m.clock.AfterFunc(ev.At.Sub(m.clock.Now()), func() { m.fire(ev) })
	m.logger.Info("Next sun event scheduled",
		zap.String("kind", string(ev.Kind)),
		zap.Time("at", ev.At))
}

func (m *Manager) retry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.timer = nil
	m.scheduleLocked()
}

// fire drives the covers for ev, then schedules the following event
func (m *Manager) fire(ev dayphase.Event) {
	m.mu.Lock()
	if !m.running || m.next != ev {
		m.mu.Unlock()
		return
	}
	m.timer, m.next = nil, dayphase.Event{}
	selected := m.cfg.Covers
	m.mu.Unlock()

	cmd := cover.CommandClose
	if ev.Kind == dayphase.Sunrise {
		cmd = cover.CommandOpen
	}

	targets := m.targets(selected)
	m.logger.Info("Sun event reached",
		zap.String("kind", string(ev.Kind)),
		zap.String("command", string(cmd)),
		zap.Int("covers", len(targets)))

	if err := m.run(cmd, targets); err != nil {
		m.logger.Warn("Some covers did not follow the sun schedule", zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && m.timer == nil {
		m.scheduleLocked()
	}
}

// targets resolves the configured unique ids, or every cover when none are configured
func (m *Manager) targets(selected []string) []*cover.Cover {
	if len(selected) == 0 {
		return m.covers.Covers()
	}

	out := make([]*cover.Cover, 0, len(selected))
	for _, id := range selected {
		c, err := m.covers.Get(id)
		if err != nil {
			m.logger.Warn("Scheduled cover not found", zap.String("unique_id", id))
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *Manager) run(cmd cover.Command, targets []*cover.Cover) error {
	var errs error
	for _, c := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		if err := c.Execute(ctx, cmd, 0); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.UniqueID(), err))
		}
		cancel()
	}
	return errs
}
