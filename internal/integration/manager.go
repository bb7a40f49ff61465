package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"blindscontrol/internal/clock"
	"blindscontrol/internal/controller"
	"blindscontrol/internal/cover"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Entry is a configured controller for one domain
type Entry struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
	Title  string `json:"title"`
	Host   string `json:"host"`
	Port   int    `json:"port"`

	Names  map[int]string `json:"names,omitempty"`
	Blinds []int          `json:"blinds,omitempty"`

	ScanInterval   time.Duration `json:"scan_interval,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
}

// ControllerFactory builds the controller client for an entry
type ControllerFactory func(cfg controller.Config, logger *zap.Logger) cover.Controller

// DefaultControllerFactory returns an HTTP controller client
func DefaultControllerFactory(cfg controller.Config, logger *zap.Logger) cover.Controller {
	return controller.NewClient(cfg, logger)
}

// Origin records how an entry was created
type Origin string

const (
	// OriginConfig entries come from blinds.yaml and are reconciled by Sync
	OriginConfig Origin = "config"
	// OriginFlow entries were created through the config flow at runtime.
	// Sync leaves them alone; they live until unloaded or the process exits.
	OriginFlow Origin = "flow"
)

type loadedEntry struct {
	entry    Entry
	origin   Origin
	platform *cover.Platform
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager sets up and unloads config entries and publishes their covers to a registry
type Manager struct {
	registry      *cover.Registry
	clock         clock.Clock
	logger        *zap.Logger
	newController ControllerFactory

	// setupMu serialises SetupEntry, UnloadEntry and Sync
	setupMu sync.Mutex

	mu      sync.Mutex
	entries map[string]*loadedEntry
}

// NewManager creates a manager. A nil factory uses DefaultControllerFactory.
func NewManager(registry *cover.Registry, clk clock.Clock, factory ControllerFactory, logger *zap.Logger) *Manager {
	if factory == nil {
		factory = DefaultControllerFactory
	}
	return &Manager{
		registry:      registry,
		clock:         clk,
		logger:        logger.Named("integration"),
		newController: factory,
		entries:       make(map[string]*loadedEntry),
	}
}

// SetupEntry creates the entry's platform, sets it up and starts polling.
// An entry already loaded under the same id is replaced. Entries set up this way
// are runtime entries that Sync does not unload.
func (m *Manager) SetupEntry(ctx context.Context, entry Entry) (bool, error) {
	m.setupMu.Lock()
	defer m.setupMu.Unlock()
	return m.setup(ctx, entry, OriginFlow)
}

func (m *Manager) setup(ctx context.Context, entry Entry, origin Origin) (bool, error) {
	entry, in, err := withDefaults(entry)
	if err != nil {
		return false, err
	}

	logger := m.logger.With(zap.String("entry", entry.ID), zap.String("domain", entry.Domain))

	ctrl := m.newController(controller.Config{
		Host:    entry.Host,
		Port:    entry.Port,
		Timeout: entry.RequestTimeout,
	}, logger)

	platform := cover.NewPlatform(cover.PlatformConfig{
		Domain:         entry.Domain,
		EntryID:        entry.ID,
		Names:          in.names(entry),
		Blinds:         in.blinds(entry),
		UseCalibration: in.UseCalibration,
		ScanInterval:   entry.ScanInterval,
	}, ctrl, m.clock, logger)

	if err := platform.Setup(ctx); err != nil {
		return false, fmt.Errorf("failed to set up entry %s: %w", entry.ID, err)
	}

	// Add replaces a previous platform of the same entry, so the old one is only
	// stopped once the new one is accepted
	if err := m.registry.Add(platform); err != nil {
		return false, fmt.Errorf("failed to set up entry %s: %w", entry.ID, err)
	}

	// polling outlives the setup call, so it gets its own context
	runCtx, cancel := context.WithCancel(context.Background())
	le := &loadedEntry{entry: entry, origin: origin, platform: platform, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(le.done)
		platform.Run(runCtx)
	}()

	m.mu.Lock()
	previous := m.entries[entry.ID]
	m.entries[entry.ID] = le
	m.mu.Unlock()
	if previous != nil {
		previous.stop()
	}

	logger.Info("Config entry set up",
		zap.String("origin", string(origin)),
		zap.Int("covers", len(platform.Covers())))
	return true, nil
}

// Sync makes the config-file entries match entries: config entries no longer listed
// are unloaded and every listed entry is set up again. Entries created through the
// config flow are kept. Failures are combined.
func (m *Manager) Sync(ctx context.Context, entries []Entry) error {
	m.setupMu.Lock()
	defer m.setupMu.Unlock()

	var errs error

	wanted := make(map[string]bool, len(entries))
	normalized := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e, _, err := withDefaults(e)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if wanted[e.ID] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID))
			continue
		}
		wanted[e.ID] = true
		normalized = append(normalized, e)
	}

	m.mu.Lock()
	var stale []string
	for id, le := range m.entries {
		if le.origin == OriginConfig && !wanted[id] {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(stale)

	for _, id := range stale {
		if _, err := m.unload(id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, e := range normalized {
		if _, err := m.setup(ctx, e, OriginConfig); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// withDefaults fills in host, port, title and id the way the config flow would
func withDefaults(entry Entry) (Entry, Integration, error) {
	in, err := Lookup(entry.Domain)
	if err != nil {
		return entry, Integration{}, err
	}
	if entry.Host == "" {
		entry.Host = DefaultHost
	}
	if entry.Port == 0 || !in.ConfigurablePort {
		entry.Port = DefaultPort
	}
	if entry.Title == "" {
		entry.Title = in.Title
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s_%s_%d", entry.Domain, entry.Host, entry.Port)
	}
	return entry, in, nil
}

// UnloadEntry stops polling, drops listeners and removes the covers from the registry
func (m *Manager) UnloadEntry(entryID string) (bool, error) {
	m.setupMu.Lock()
	defer m.setupMu.Unlock()
	return m.unload(entryID)
}

func (m *Manager) unload(entryID string) (bool, error) {
	m.mu.Lock()
	le, ok := m.entries[entryID]
	delete(m.entries, entryID)
	m.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownEntry, entryID)
	}

	le.stop()
	m.registry.Remove(entryID)

	m.logger.Info("Config entry unloaded", zap.String("entry", entryID))
	return true, nil
}

func (le *loadedEntry) stop() {
	le.cancel()
	<-le.done
	le.platform.ClearListeners()
}

// Origin reports how a loaded entry was created
func (m *Manager) Origin(entryID string) (Origin, bool) {
	le, ok := m.lookup(entryID)
	if !ok {
		return "", false
	}
	return le.origin, true
}

// UnloadAll unloads every entry and combines any errors
func (m *Manager) UnloadAll() error {
	var errs error
	for _, e := range m.Entries() {
		if _, err := m.UnloadEntry(e.ID); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Entries returns the loaded entries ordered by id
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries))
	for _, le := range m.entries {
		out = append(out, le.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Platform returns the platform of a loaded entry
func (m *Manager) Platform(entryID string) (*cover.Platform, bool) {
	le, ok := m.lookup(entryID)
	if !ok {
		return nil, false
	}
	return le.platform, true
}

func (m *Manager) lookup(entryID string) (*loadedEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	le, ok := m.entries[entryID]
	return le, ok
}
