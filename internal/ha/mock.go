package ha

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient implements HAClient interface for testing
type MockClient struct {
	subscribers  map[string][]subscriberEntry
	subsMu       sync.RWMutex
	nextSubID    int
	connected    bool
	connMu       sync.RWMutex
	serviceCalls []RecordedCall
	callsMu      sync.Mutex
	callErr      error
}

// RecordedCall is a service call made through the mock
type RecordedCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		subscribers: make(map[string][]subscriberEntry),
	}
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting and drops subscriptions
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	m.subsMu.Lock()
	m.subscribers = make(map[string][]subscriberEntry)
	m.subsMu.Unlock()
	return nil
}

// IsConnected returns the simulated connection state
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// CallService records the call, or fails with the error set by FailCalls
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	if m.callErr != nil {
		return m.callErr
	}
	m.serviceCalls = append(m.serviceCalls, RecordedCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	return nil
}

// FailCalls makes every later CallService return err; nil restores success
func (m *MockClient) FailCalls(err error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.callErr = err
}

// SubscribeServiceCalls registers a handler for one domain
func (m *MockClient) SubscribeServiceCalls(domain string, handler ServiceCallHandler) (Subscription, error) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subID := m.nextSubID
	m.nextSubID++
	m.subscribers[domain] = append(m.subscribers[domain], subscriberEntry{subID: subID, handler: handler})
	return &subscription{domain: domain, subID: subID, client: m}, nil
}

func (m *MockClient) unsubscribe(domain string, subID int) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	entries := m.subscribers[domain]
	for i, entry := range entries {
		if entry.subID == subID {
			m.subscribers[domain] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(m.subscribers[domain]) == 0 {
		delete(m.subscribers, domain)
	}
	return nil
}

// SimulateServiceCall delivers a call_service event to the domain's subscribers.
// Handlers run synchronously so tests can assert right after.
func (m *MockClient) SimulateServiceCall(call ServiceCall) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers[call.Domain]...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(call)
	}
}

// SubscriberCount returns the number of handlers for a domain
func (m *MockClient) SubscriberCount(domain string) int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subscribers[domain])
}

// GetServiceCalls returns all recorded service calls
func (m *MockClient) GetServiceCalls() []RecordedCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]RecordedCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// ClearServiceCalls clears the service call history
func (m *MockClient) ClearServiceCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = nil
}

// MockStateWriter records entity states instead of posting them
type MockStateWriter struct {
	mu     sync.Mutex
	states map[string]EntityState
	err    error
}

// NewMockStateWriter creates an empty MockStateWriter
func NewMockStateWriter() *MockStateWriter {
	return &MockStateWriter{states: make(map[string]EntityState)}
}

// SetState records the state, or fails with the error set by Fail
func (w *MockStateWriter) SetState(ctx context.Context, entityID string, state EntityState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.states[entityID] = state
	return nil
}

// Fail makes every later SetState return err
func (w *MockStateWriter) Fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// State returns the last state written for an entity
func (w *MockStateWriter) State(entityID string) (EntityState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.states[entityID]
	return s, ok
}
