// Package mqtt wraps paho.mqtt.golang with connection status on a retained last-will
// topic and subscriptions that are restored after a reconnect.
package mqtt

import (
	"fmt"
	"sync"
	"time"

	"blindscontrol/internal/config"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout    = 10 * time.Second
	operationTimeout  = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds

	statusOnline  = "online"
	statusOffline = "offline"
)

// MessageHandler is called for every message on a subscribed topic
type MessageHandler func(topic string, payload []byte) error

// Messenger is what the bridge needs from a broker connection
type Messenger interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topic string) error
	Topics() Topics
}

// Client is a connected MQTT client
type Client struct {
	client pahomqtt.Client
	qos    byte
	topics Topics
	logger *zap.Logger

	subscriptions map[string]MessageHandler
	subMu         sync.RWMutex

	// handlers counts messages still being processed
	handlers sync.WaitGroup
}

// Connect dials the broker with a retained "offline" last will on the bridge status topic
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := newClient(cfg, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetWill(c.topics.BridgeStatus(), statusOffline, c.qos, true)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("Connection lost", zap.Error(err))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
	return c, nil
}

func newClient(cfg config.MQTTConfig, logger *zap.Logger) *Client {
	return &Client{
		qos:           byte(cfg.QoS),
		topics:        Topics{Prefix: cfg.TopicPrefix},
		logger:        logger.Named("mqtt"),
		subscriptions: make(map[string]MessageHandler),
	}
}

// handleConnect runs on the first connect and on every reconnect
func (c *Client) handleConnect() {
	c.subMu.RLock()
	for topic, handler := range c.subscriptions {
		c.client.Subscribe(topic, c.qos, c.wrapHandler(handler))
	}
	c.subMu.RUnlock()

	c.client.Publish(c.topics.BridgeStatus(), c.qos, true, statusOnline)
}

// Topics returns the topic builder for the configured prefix
func (c *Client) Topics() Topics {
	return c.topics
}

// IsConnected reports whether the broker connection is up
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publish sends a payload with the configured QoS
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers a handler. The subscription is restored after reconnects.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, c.qos, c.wrapHandler(handler))
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()
	return nil
}

// Unsubscribe stops delivery for a topic
func (c *Client) Unsubscribe(topic string) error {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("failed to unsubscribe from %s: timeout", topic)
	}
	return token.Error()
}

// Close waits for in-flight handlers, publishes a retained "offline" status and disconnects
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.handlers.Wait()
	if c.IsConnected() {
		token := c.client.Publish(c.topics.BridgeStatus(), c.qos, true, statusOffline)
		token.WaitTimeout(operationTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	c.logger.Info("Disconnected from MQTT broker")
	return nil
}

// wrapHandler adapts a MessageHandler to paho with panic recovery and error logging.
// Each message is handled on its own goroutine so paho's ordered router never blocks.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.handlers.Add(1)
		go c.handle(handler, msg)
	}
}

func (c *Client) handle(handler MessageHandler, msg pahomqtt.Message) {
	defer c.handlers.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("MQTT handler panic recovered",
				zap.String("topic", msg.Topic()),
				zap.Any("panic", r))
		}
	}()

	if err := handler(msg.Topic(), msg.Payload()); err != nil {
		c.logger.Warn("MQTT handler returned error",
			zap.String("topic", msg.Topic()),
			zap.Error(err))
	}
}
