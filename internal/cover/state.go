package cover

import (
	"time"
)

// Availability is the cover's reachability as last observed
type Availability int

const (
	// Unknown means no call has completed yet
	Unknown Availability = iota
	// Available means the last call reached the controller
	Available
	// Unavailable means the last call failed in transport or decoding
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the availability by name
func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Supported feature bits, using Home Assistant's CoverEntityFeature values
const (
	FeatureOpen        = 1
	FeatureClose       = 2
	FeatureSetPosition = 4
	FeatureStop        = 8

	SupportedFeatures = FeatureOpen | FeatureClose | FeatureSetPosition | FeatureStop
)

// DeviceClass is reported for every cover
const DeviceClass = "blind"

// State is an immutable snapshot of a cover
type State struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	UniqueID     string       `json:"unique_id"`
	Availability Availability `json:"availability"`
	Position     int          `json:"position"`
	Closed       bool         `json:"closed"`
	RawPosition  *int         `json:"raw_position,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Status is the Home Assistant cover state string
func (s State) Status() string {
	switch s.Availability {
	case Unavailable:
		return "unavailable"
	case Unknown:
		return "unknown"
	}
	if s.Closed {
		return "closed"
	}
	return "open"
}

// Listener receives a snapshot after every state transition
type Listener func(State)
