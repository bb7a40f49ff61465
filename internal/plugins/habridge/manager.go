// Package habridge mirrors covers into Home Assistant and executes the cover
// service calls Home Assistant sends for them.
package habridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"blindscontrol/internal/cover"
	"blindscontrol/internal/ha"

	"go.uber.org/zap"
)

const (
	// EntityDomain is the Home Assistant domain cover entities live in
	EntityDomain = "cover"

	notificationDomain = "persistent_notification"
	commandTimeout     = 30 * time.Second
	stateTimeout       = 10 * time.Second
)

// Home Assistant cover services
const (
	ServiceOpen        = "open_cover"
	ServiceClose       = "close_cover"
	ServiceStop        = "stop_cover"
	ServiceSetPosition = "set_cover_position"
)

var serviceCommands = map[string]cover.Command{
	ServiceOpen:        cover.CommandOpen,
	ServiceClose:       cover.CommandClose,
	ServiceStop:        cover.CommandStop,
	ServiceSetPosition: cover.CommandSetPosition,
}

// EntityID returns the Home Assistant entity id for a cover
func EntityID(uniqueID string) string {
	return EntityDomain + "." + uniqueID
}

// Manager keeps Home Assistant in step with the covers
type Manager struct {
	covers   *cover.Registry
	haClient ha.HAClient
	writer   ha.StateSetter
	logger   *zap.Logger
	readOnly bool

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	running      bool
	availability map[string]cover.Availability
	subscription ha.Subscription
}

// NewManager creates a new Home Assistant bridge
func NewManager(covers *cover.Registry, haClient ha.HAClient, writer ha.StateSetter, logger *zap.Logger, readOnly bool) *Manager {
	return &Manager{
		covers:       covers,
		haClient:     haClient,
		writer:       writer,
		logger:       logger.Named("habridge"),
		readOnly:     readOnly,
		availability: make(map[string]cover.Availability),
	}
}

// Start publishes every cover's state and subscribes to cover service calls
func (m *Manager) Start() error {
	m.logger.Info("Starting Home Assistant bridge", zap.Bool("read_only", m.readOnly))

	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.running = true
	m.mu.Unlock()

	if !m.readOnly {
		sub, err := m.haClient.SubscribeServiceCalls(EntityDomain, m.handleServiceCall)
		if err != nil {
			m.Stop()
			return fmt.Errorf("failed to subscribe to %s service calls: %w", EntityDomain, err)
		}
		m.mu.Lock()
		m.subscription = sub
		m.mu.Unlock()
	}

	m.covers.OnChange(m.handleChange)

	for _, c := range m.covers.Covers() {
		m.handleChange(c.Snapshot())
	}

	m.logger.Info("Home Assistant bridge started", zap.Int("covers", len(m.covers.Covers())))
	return nil
}

// Stop unsubscribes and ignores further cover changes
func (m *Manager) Stop() {
	m.logger.Info("Stopping Home Assistant bridge")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	if m.cancel != nil {
		m.cancel()
	}
	if m.subscription != nil {
		if err := m.subscription.Unsubscribe(); err != nil {
			m.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
		m.subscription = nil
	}
}

func (m *Manager) isRunning() (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx, m.running
}

// handleChange writes the cover's entity and raises or clears an unavailability notification
func (m *Manager) handleChange(s cover.State) {
	ctx, running := m.isRunning()
	if !running {
		return
	}

	entityID := EntityID(s.UniqueID)
	stateCtx, cancel := context.WithTimeout(ctx, stateTimeout)
	defer cancel()

	if err := m.writer.SetState(stateCtx, entityID, EntityState(s)); err != nil {
		m.logger.Warn("Failed to write cover state",
			zap.String("entity_id", entityID),
			zap.Error(err))
	}

	m.mu.Lock()
	previous, seen := m.availability[s.UniqueID]
	m.availability[s.UniqueID] = s.Availability
	m.mu.Unlock()

	switch {
	case s.Availability == cover.Unavailable && previous != cover.Unavailable:
		m.notify("create", map[string]interface{}{
			"notification_id": notificationID(s.UniqueID),
			"title":           "Blind unavailable",
			"message":         fmt.Sprintf("%s (%s) is not responding to the controller", s.Name, entityID),
		})
	case seen && previous == cover.Unavailable && s.Availability == cover.Available:
		m.notify("dismiss", map[string]interface{}{
			"notification_id": notificationID(s.UniqueID),
		})
	}
}

func (m *Manager) notify(service string, data map[string]interface{}) {
	if err := m.haClient.CallService(notificationDomain, service, data); err != nil {
		m.logger.Warn("Failed to update notification",
			zap.String("service", service),
			zap.Error(err))
	}
}

// handleServiceCall runs a cover service against every targeted cover this bridge owns
func (m *Manager) handleServiceCall(call ha.ServiceCall) {
	ctx, running := m.isRunning()
	if !running {
		return
	}

	cmd, ok := serviceCommands[call.Service]
	if !ok {
		m.logger.Debug("Ignoring cover service", zap.String("service", call.Service))
		return
	}

	pos := 0
	if cmd == cover.CommandSetPosition {
		if pos, ok = call.Int("position"); !ok {
			m.logger.Warn("set_cover_position without a numeric position",
				zap.Any("service_data", call.ServiceData))
			return
		}
	}

	for _, entityID := range call.EntityIDs() {
		uniqueID, ok := strings.CutPrefix(entityID, EntityDomain+".")
		if !ok {
			continue
		}
		c, err := m.covers.Get(uniqueID)
		if err != nil {
			// another integration's cover
			continue
		}

		m.logger.Info("Executing cover service",
			zap.String("service", call.Service),
			zap.String("entity_id", entityID),
			zap.Int("position", pos))

		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		err = c.Execute(cmdCtx, cmd, pos)
		cancel()
		if err != nil {
			m.logger.Warn("Cover service failed",
				zap.String("service", call.Service),
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
	}
}

// EntityState converts a cover snapshot into a Home Assistant entity state
func EntityState(s cover.State) ha.EntityState {
	return ha.EntityState{
		State: s.Status(),
		Attributes: map[string]interface{}{
			"current_position":   s.Position,
			"friendly_name":      s.Name,
			"device_class":       cover.DeviceClass,
			"supported_features": cover.SupportedFeatures,
		},
	}
}

func notificationID(uniqueID string) string {
	return "blindscontrol_" + uniqueID
}
