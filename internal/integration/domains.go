// Package integration defines the two blind integrations, their config flow and the
// lifecycle of config entries.
package integration

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// DomainBlindsControl reads calibration from the controller
	DomainBlindsControl = "blinds_control"
	// DomainBoldtBlinds always uses identity calibration on port 80
	DomainBoldtBlinds = "boldt_blinds"

	DefaultHost = "localhost"
	DefaultPort = 80
)

var (
	// ErrUnknownDomain is returned for a domain that is not registered
	ErrUnknownDomain = errors.New("unknown integration domain")
	// ErrUnknownEntry is returned when unloading an entry that was never set up
	ErrUnknownEntry = errors.New("unknown config entry")
	// ErrDuplicateEntry is returned when two entries resolve to the same id
	ErrDuplicateEntry = errors.New("duplicate config entry id")
)

// Integration describes one domain
type Integration struct {
	Domain string
	Title  string

	// ConfigurablePort is false when the port is fixed at DefaultPort
	ConfigurablePort bool
	UseCalibration   bool

	// DefaultNames and DefaultBlinds apply when an entry does not set its own
	DefaultNames  map[int]string
	DefaultBlinds []int
}

var livingSpaceNames = map[int]string{
	1:  "Living Room Left",
	2:  "Living Room Right",
	3:  "Dining Room Left",
	4:  "Dining Room Right",
	5:  "Kitchen Window",
	6:  "Kitchen Door Left",
	7:  "Kitchen Door Right",
	8:  "Master Bedroom Left",
	9:  "Master Bedroom Right",
	10: "Guest Bedroom Left",
	11: "Guest Bedroom Right",
	12: "Office Left",
	13: "Office Right",
	14: "Kitchen Door",
}

var integrations = map[string]Integration{
	DomainBlindsControl: {
		Domain:           DomainBlindsControl,
		Title:            "Blinds Control",
		ConfigurablePort: true,
		UseCalibration:   true,
		DefaultNames:     livingSpaceNames,
		DefaultBlinds:    []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
	},
	DomainBoldtBlinds: {
		Domain: DomainBoldtBlinds,
		Title:  "Boldt Blinds",
	},
}

// Lookup returns the integration registered for domain
func Lookup(domain string) (Integration, error) {
	in, ok := integrations[domain]
	if !ok {
		return Integration{}, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	return in, nil
}

// Domains lists the registered domains in sorted order
func Domains() []string {
	out := make([]string, 0, len(integrations))
	for d := range integrations {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// names merges the entry's names over the domain defaults
func (in Integration) names(entry Entry) map[int]string {
	out := make(map[int]string, len(in.DefaultNames)+len(entry.Names))
	for id, n := range in.DefaultNames {
		out[id] = n
	}
	for id, n := range entry.Names {
		out[id] = n
	}
	return out
}

// blinds returns the entry's fallback blind ids, or the domain default
func (in Integration) blinds(entry Entry) []int {
	if len(entry.Blinds) > 0 {
		return entry.Blinds
	}
	return in.DefaultBlinds
}
