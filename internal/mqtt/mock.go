package mqtt

import (
	"strings"
	"sync"
)

// Published is a message sent through MockMessenger
type Published struct {
	Topic    string
	Payload  string
	Retained bool
}

// MockMessenger implements Messenger in memory for testing
type MockMessenger struct {
	topics    Topics
	mu        sync.Mutex
	published []Published
	handlers  map[string]MessageHandler
	err       error
}

// NewMockMessenger creates a mock rooted at prefix
func NewMockMessenger(prefix string) *MockMessenger {
	return &MockMessenger{
		topics:   Topics{Prefix: prefix},
		handlers: make(map[string]MessageHandler),
	}
}

// Topics returns the topic builder
func (m *MockMessenger) Topics() Topics { return m.topics }

// Publish records the message, or fails with the error set by Fail
func (m *MockMessenger) Publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, Published{Topic: topic, Payload: string(payload), Retained: retained})
	return nil
}

// Subscribe records the handler
func (m *MockMessenger) Subscribe(topic string, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.handlers[topic] = handler
	return nil
}

// Unsubscribe drops the handler
func (m *MockMessenger) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

// Fail makes every later Publish and Subscribe return err
func (m *MockMessenger) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Deliver runs every handler whose filter matches topic and returns the first error
func (m *MockMessenger) Deliver(topic string, payload []byte) error {
	m.mu.Lock()
	var matched []MessageHandler
	for filter, h := range m.handlers {
		if topicMatches(filter, topic) {
			matched = append(matched, h)
		}
	}
	m.mu.Unlock()

	var first error
	for _, h := range matched {
		if err := h(topic, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Published returns every recorded message
func (m *MockMessenger) Published() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.published...)
}

// Last returns the latest message on a topic
func (m *MockMessenger) Last(topic string) (Published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i], true
		}
	}
	return Published{}, false
}

// HasSubscription reports whether a filter is subscribed
func (m *MockMessenger) HasSubscription(filter string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[filter]
	return ok
}

// topicMatches applies MQTT + and # wildcards
func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
