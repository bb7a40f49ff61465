// Package mqttbridge publishes cover state over MQTT and accepts commands on
// <prefix>/<unique_id>/set and <prefix>/<unique_id>/set_position.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"blindscontrol/internal/cover"
	"blindscontrol/internal/mqtt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

// Manager connects covers to MQTT topics
type Manager struct {
	covers    *cover.Registry
	messenger mqtt.Messenger
	topics    mqtt.Topics
	logger    *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	filters []string
}

// NewManager creates a new MQTT bridge
func NewManager(covers *cover.Registry, messenger mqtt.Messenger, logger *zap.Logger) *Manager {
	return &Manager{
		covers:    covers,
		messenger: messenger,
		topics:    messenger.Topics(),
		logger:    logger.Named("mqttbridge"),
	}
}

// Start subscribes to command topics and publishes every cover's state
func (m *Manager) Start() error {
	m.logger.Info("Starting MQTT bridge", zap.String("prefix", m.topics.Prefix))

	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.running = true
	m.mu.Unlock()

	subs := map[string]mqtt.MessageHandler{
		m.topics.AllCovers(mqtt.LeafSet):         m.handleSet,
		m.topics.AllCovers(mqtt.LeafSetPosition): m.handleSetPosition,
	}
	for filter, handler := range subs {
		if err := m.messenger.Subscribe(filter, handler); err != nil {
			m.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
		}
		m.mu.Lock()
		m.filters = append(m.filters, filter)
		m.mu.Unlock()
	}

	m.covers.OnChange(m.handleChange)
	for _, c := range m.covers.Covers() {
		m.handleChange(c.Snapshot())
	}

	m.logger.Info("MQTT bridge started")
	return nil
}

// Stop unsubscribes from command topics and ignores further cover changes
func (m *Manager) Stop() {
	m.logger.Info("Stopping MQTT bridge")

	m.mu.Lock()
	m.running = false
	if m.cancel != nil {
		m.cancel()
	}
	filters := m.filters
	m.filters = nil
	m.mu.Unlock()

	for _, filter := range filters {
		if err := m.messenger.Unsubscribe(filter); err != nil {
			m.logger.Warn("Failed to unsubscribe", zap.String("topic", filter), zap.Error(err))
		}
	}
}

func (m *Manager) runContext() (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx, m.running
}

// Publish writes a cover's retained state, position and availability topics
func (m *Manager) Publish(s cover.State) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode state of %s: %w", s.UniqueID, err)
	}

	return multierr.Combine(
		m.messenger.Publish(m.topics.Cover(s.UniqueID, mqtt.LeafState), body, true),
		m.messenger.Publish(m.topics.Cover(s.UniqueID, mqtt.LeafPosition), []byte(strconv.Itoa(s.Position)), true),
		m.messenger.Publish(m.topics.Cover(s.UniqueID, mqtt.LeafAvailability), []byte(s.Availability.String()), true),
	)
}

func (m *Manager) handleChange(s cover.State) {
	if _, running := m.runContext(); !running {
		return
	}
	if err := m.Publish(s); err != nil {
		m.logger.Warn("Failed to publish cover state",
			zap.String("unique_id", s.UniqueID),
			zap.Error(err))
	}
}

// handleSet accepts OPEN, CLOSE and STOP
func (m *Manager) handleSet(topic string, payload []byte) error {
	cmd, err := cover.ParseCommand(string(payload))
	if err != nil {
		return err
	}
	if cmd == cover.CommandSetPosition {
		return fmt.Errorf("%w: use the %s topic", cover.ErrUnknownCommand, mqtt.LeafSetPosition)
	}
	return m.execute(topic, cmd, 0)
}

// handleSetPosition accepts an integer percentage; values outside 0-100 are clamped
func (m *Manager) handleSetPosition(topic string, payload []byte) error {
	pos, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", payload, err)
	}
	return m.execute(topic, cover.CommandSetPosition, pos)
}

func (m *Manager) execute(topic string, cmd cover.Command, pos int) error {
	ctx, running := m.runContext()
	if !running {
		return nil
	}

	uniqueID, _, ok := m.topics.ParseCover(topic)
	if !ok {
		return fmt.Errorf("%w: %s", mqtt.ErrInvalidTopic, topic)
	}
	c, err := m.covers.Get(uniqueID)
	if err != nil {
		return err
	}

	m.logger.Info("Executing MQTT command",
		zap.String("unique_id", uniqueID),
		zap.String("command", string(cmd)),
		zap.Int("position", pos))

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return c.Execute(cmdCtx, cmd, pos)
}
