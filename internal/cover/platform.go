package cover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"blindscontrol/internal/clock"
	"blindscontrol/internal/position"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultScanInterval is how often covers are polled when no interval is configured
const DefaultScanInterval = 30 * time.Second

// ErrNoBlinds is returned by Setup when neither the controller nor the entry names any blind
var ErrNoBlinds = errors.New("no blinds to set up")

// PlatformConfig describes the covers of one config entry
type PlatformConfig struct {
	Domain  string
	EntryID string

	// Names overrides the display name per blind id
	Names map[int]string

	// Blinds are used when the controller's config cannot be downloaded
	Blinds []int

	// UseCalibration takes open/close from the controller; otherwise identity is used
	UseCalibration bool

	ScanInterval time.Duration
}

// Platform owns the covers of one config entry
type Platform struct {
	cfg    PlatformConfig
	ctrl   Controller
	clock  clock.Clock
	logger *zap.Logger

	mu        sync.RWMutex
	covers    map[int]*Cover
	order     []int
	listeners []Listener
}

// NewPlatform creates a platform. Call Setup before using it.
func NewPlatform(cfg PlatformConfig, ctrl Controller, clk clock.Clock, logger *zap.Logger) *Platform {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	return &Platform{
		cfg:    cfg,
		ctrl:   ctrl,
		clock:  clk,
		logger: logger.Named("platform").With(zap.String("domain", cfg.Domain), zap.String("entry", cfg.EntryID)),
		covers: make(map[int]*Cover),
	}
}

// Domain returns the integration domain this platform belongs to
func (p *Platform) Domain() string { return p.cfg.Domain }

// EntryID returns the config entry id
func (p *Platform) EntryID() string { return p.cfg.EntryID }

// Setup downloads the controller config and builds one cover per blind
func (p *Platform) Setup(ctx context.Context) error {
	calibrations := make(map[int]position.Calibration)

	device, err := p.ctrl.DownloadConfig(ctx)
	if err != nil {
		if len(p.cfg.Blinds) == 0 {
			return fmt.Errorf("failed to download controller config: %w", err)
		}
		p.logger.Warn("Controller config unavailable, using configured blinds",
			zap.Ints("blinds", p.cfg.Blinds),
			zap.Error(err))
		for _, id := range p.cfg.Blinds {
			calibrations[id] = position.Identity
		}
	} else {
		for _, id := range device.IDs() {
			calibrations[id] = position.Identity
			if !p.cfg.UseCalibration {
				continue
			}
			cal, err := device[id].Calibration()
			if err != nil {
				p.logger.Warn("Degenerate calibration, using identity",
					zap.Int("blind", id),
					zap.Int("open", device[id].Open),
					zap.Int("close", device[id].Close))
				continue
			}
			calibrations[id] = cal
		}
	}

	if len(calibrations) == 0 {
		return ErrNoBlinds
	}

	ids := make([]int, 0, len(calibrations))
	for id := range calibrations {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.covers = make(map[int]*Cover, len(ids))
	p.order = ids
	for _, id := range ids {
		c := New(Config{
			ID:          id,
			Name:        p.name(id),
			Domain:      p.cfg.Domain,
			Calibration: calibrations[id],
		}, p.ctrl, p.clock, p.logger)
		c.setNotifier(p.notify)
		p.covers[id] = c
	}

	p.logger.Info("Platform set up", zap.Int("covers", len(ids)))
	return nil
}

func (p *Platform) name(id int) string {
	if name, ok := p.cfg.Names[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Blind %d", id)
}

// Cover returns the cover for a blind id
func (p *Platform) Cover(id int) (*Cover, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.covers[id]
	if !ok {
		return nil, fmt.Errorf("%w: blind %d", ErrUnknownCover, id)
	}
	return c, nil
}

// Covers returns all covers ordered by blind id
func (p *Platform) Covers() []*Cover {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Cover, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.covers[id])
	}
	return out
}

// OnChange registers a listener for every cover's state transitions
func (p *Platform) OnChange(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// ClearListeners drops every registered listener
func (p *Platform) ClearListeners() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = nil
}

func (p *Platform) notify(s State) {
	p.mu.RLock()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.RUnlock()

	for _, l := range listeners {
		l(s)
	}
}

// Refresh updates every cover once. Errors from individual covers are combined.
func (p *Platform) Refresh(ctx context.Context) error {
	var errs error
	for _, c := range p.Covers() {
		if err := c.Update(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Run polls every cover each scan interval until ctx is done
func (p *Platform) Run(ctx context.Context) {
	p.logger.Debug("Polling started", zap.Duration("interval", p.cfg.ScanInterval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Polling stopped")
			return
		case <-p.clock.After(p.cfg.ScanInterval):
			if err := p.Refresh(ctx); err != nil {
				p.logger.Debug("Poll finished with errors", zap.Error(err))
			}
		}
	}
}
