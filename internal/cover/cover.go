// Package cover models blinds as cover entities backed by a controller.
//
// A Cover holds the last known state of one blind and turns every action into exactly
// one controller call. A Platform owns the covers of one config entry, polls them and
// fans state changes out to listeners.
package cover

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"blindscontrol/internal/clock"
	"blindscontrol/internal/controller"
	"blindscontrol/internal/position"

	"go.uber.org/zap"
)

// ErrUnknownCover is returned when a lookup names a cover that does not exist
var ErrUnknownCover = errors.New("unknown cover")

// Controller is the device API a cover needs
type Controller interface {
	DownloadConfig(ctx context.Context) (controller.DeviceConfig, error)
	Open(ctx context.Context, id int) (controller.Result, error)
	Close(ctx context.Context, id int) (controller.Result, error)
	MoveTo(ctx context.Context, id, raw int) (controller.Result, error)
	Stop(ctx context.Context, id int) error
	Position(ctx context.Context, id int) (controller.Result, error)
}

// Config identifies a single cover
type Config struct {
	ID          int
	Name        string
	Domain      string
	Calibration position.Calibration
}

// UniqueID returns "<domain>_<id>"
func (c Config) UniqueID() string {
	return fmt.Sprintf("%s_%d", c.Domain, c.ID)
}

// Cover is one blind
type Cover struct {
	cfg      Config
	ctrl     Controller
	clock    clock.Clock
	logger   *zap.Logger
	onChange func(State)

	// op serialises controller calls; mu guards state and seq
	op    sync.Mutex
	mu    sync.RWMutex
	state State
	seq   uint64

	// notifyMu orders listener calls; it is never held across a controller call
	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a cover in the Unknown state, position 0 and closed
func New(cfg Config, ctrl Controller, clk clock.Clock, logger *zap.Logger) *Cover {
	return &Cover{
		cfg:    cfg,
		ctrl:   ctrl,
		clock:  clk,
		logger: logger.Named("cover").With(zap.Int("blind", cfg.ID), zap.String("name", cfg.Name)),
		state: State{
			ID:           cfg.ID,
			Name:         cfg.Name,
			UniqueID:     cfg.UniqueID(),
			Availability: Unknown,
			Position:     position.Closed,
			Closed:       true,
		},
	}
}

// ID returns the controller's blind id
func (c *Cover) ID() int { return c.cfg.ID }

// Name returns the display name
func (c *Cover) Name() string { return c.cfg.Name }

// UniqueID returns the entity's unique id
func (c *Cover) UniqueID() string { return c.cfg.UniqueID() }

// Calibration returns the raw range this cover maps onto
func (c *Cover) Calibration() position.Calibration { return c.cfg.Calibration }

// Snapshot returns the current state
func (c *Cover) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Open drives the blind fully open
func (c *Cover) Open(ctx context.Context) error {
	return c.run("open", func() (func(*State), error) {
		c.logger.Info("Opening blind")
		_, err := c.ctrl.Open(ctx, c.cfg.ID)
		return func(s *State) {
			raw := c.cfg.Calibration.Open
			s.Position, s.Closed, s.RawPosition = position.Open, false, &raw
		}, err
	})
}

// Close drives the blind fully closed
func (c *Cover) Close(ctx context.Context) error {
	return c.run("close", func() (func(*State), error) {
		c.logger.Info("Closing blind")
		_, err := c.ctrl.Close(ctx, c.cfg.ID)
		return func(s *State) {
			raw := c.cfg.Calibration.Close
			s.Position, s.Closed, s.RawPosition = position.Closed, true, &raw
		}, err
	})
}

// SetPosition moves the blind to a 0-100 position. Out of range input is clamped.
func (c *Cover) SetPosition(ctx context.Context, pos int) error {
	raw := position.ToRaw(pos, c.cfg.Calibration)
	return c.run("set_position", func() (func(*State), error) {
		c.logger.Info("Setting blind position", zap.Int("position", pos), zap.Int("raw", raw))
		res, err := c.ctrl.MoveTo(ctx, c.cfg.ID, raw)
		return func(s *State) {
			reported := raw
			if res.HasPosition() {
				reported = *res.Position
			}
			s.Position, s.Closed = position.ToNormalized(reported, c.cfg.Calibration)
			s.RawPosition = &reported
		}, err
	})
}

// Stop halts the blind where it is
func (c *Cover) Stop(ctx context.Context) error {
	return c.run("stop", func() (func(*State), error) {
		c.logger.Info("Stopping blind")
		return func(*State) {}, c.ctrl.Stop(ctx, c.cfg.ID)
	})
}

// Update refreshes the state from the controller's reported position
func (c *Cover) Update(ctx context.Context) error {
	return c.run("update", func() (func(*State), error) {
		res, err := c.ctrl.Position(ctx, c.cfg.ID)
		return func(s *State) {
			if !res.HasPosition() {
				return
			}
			raw := *res.Position
			s.Position, s.Closed = position.ToNormalized(raw, c.cfg.Calibration)
			s.RawPosition = &raw
		}, err
	})
}

// change is a state transition waiting to be delivered to the listener
type change struct {
	state State
	seq   uint64
}

// run makes one controller call under op and delivers the resulting transition
// after op is released, so a slow listener never holds up the next call.
func (c *Cover) run(op string, call func() (func(*State), error)) error {
	c.op.Lock()
	apply, err := call()
	ch, err := c.finish(op, err, apply)
	c.op.Unlock()

	if ch != nil {
		c.deliver(*ch)
	}
	return err
}

// finish applies the outcome of a controller call to the state machine.
// A rejected command leaves the state untouched and produces no change.
func (c *Cover) finish(op string, err error, apply func(*State)) (*change, error) {
	if err != nil {
		var cmdErr *controller.CommandError
		if errors.As(err, &cmdErr) {
			c.logger.Warn("Controller rejected command",
				zap.String("op", op),
				zap.String("reason", cmdErr.Reason))
			return nil, err
		}

		c.logger.Error("Controller call failed", zap.String("op", op), zap.Error(err))
		ch := c.transition(func(s *State) { s.Availability = Unavailable })
		return &ch, fmt.Errorf("failed to %s blind %d: %w", op, c.cfg.ID, err)
	}

	ch := c.transition(func(s *State) {
		s.Availability = Available
		apply(s)
	})
	return &ch, nil
}

func (c *Cover) transition(apply func(*State)) change {
	c.mu.Lock()
	defer c.mu.Unlock()
	apply(&c.state)
	c.state.UpdatedAt = c.clock.Now()
	c.seq++
	return change{state: c.state, seq: c.seq}
}

// deliver hands a transition to the listener. Deliveries are serialised per cover
// and a transition older than one already delivered is dropped.
func (c *Cover) deliver(ch change) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if ch.seq <= c.delivered {
		return
	}
	c.delivered = ch.seq

	c.mu.RLock()
	notify := c.onChange
	c.mu.RUnlock()
	if notify != nil {
		notify(ch.state)
	}
}

func (c *Cover) setNotifier(f func(State)) {
	c.mu.Lock()
	c.onChange = f
	c.mu.Unlock()
}
