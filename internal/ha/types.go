package ha

import (
	"encoding/json"
	"time"
)

// Message represents a base WebSocket message to/from Home Assistant
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// Error represents an error response from Home Assistant
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage represents authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// Event represents an event message from Home Assistant
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
}

// ServiceCall is the data of a call_service event
type ServiceCall struct {
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data"`
}

// EntityIDs returns the targeted entities. entity_id may be a string or a list.
func (s ServiceCall) EntityIDs() []string {
	switch v := s.ServiceData["entity_id"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if id, ok := item.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}

// Int reads a numeric service data field
func (s ServiceCall) Int(key string) (int, bool) {
	switch v := s.ServiceData[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// request is an outgoing message that expects a result
type request interface {
	messageID() int
}

// CallServiceRequest represents a call_service request
type CallServiceRequest struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data,omitempty"`
}

func (r *CallServiceRequest) messageID() int { return r.ID }

// SubscribeEventsRequest represents a subscribe_events request
type SubscribeEventsRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

func (r *SubscribeEventsRequest) messageID() int { return r.ID }

// ServiceCallHandler is called for every call_service event in a subscribed domain
type ServiceCallHandler func(call ServiceCall)

// Subscription represents an active event subscription
type Subscription interface {
	Unsubscribe() error
}

// subscriptionRemover is implemented by clients that hand out subscriptions
type subscriptionRemover interface {
	unsubscribe(domain string, subID int) error
}

type subscription struct {
	domain string
	subID  int
	client subscriptionRemover
}

func (s *subscription) Unsubscribe() error {
	return s.client.unsubscribe(s.domain, s.subID)
}
