package controller

import (
	"fmt"
	"sort"

	"blindscontrol/internal/position"
)

// BlindConfig is one entry of the controller's /download_config document
type BlindConfig struct {
	GPIO  int `json:"gpio"`
	Open  int `json:"open"`
	Close int `json:"close"`
}

// Calibration returns the blind's calibration, or an error if open equals close
func (b BlindConfig) Calibration() (position.Calibration, error) {
	return position.NewCalibration(b.Open, b.Close)
}

// DeviceConfig maps blind id to its configuration
type DeviceConfig map[int]BlindConfig

// IDs returns the blind ids in ascending order
func (d DeviceConfig) IDs() []int {
	ids := make([]int, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Result is what the controller reported for a command it accepted.
// Position is the raw actuator coordinate when the controller included one.
type Result struct {
	Position *int
}

// HasPosition reports whether the controller returned a coordinate
func (r Result) HasPosition() bool {
	return r.Position != nil
}

// commandResponse covers every JSON shape the controller answers with
type commandResponse struct {
	Success         *bool  `json:"success"`
	ActualPosition  *int   `json:"actual_position"`
	CurrentPosition *int   `json:"current_position"`
	Error           string `json:"error"`
}

// CommandError is returned when the controller answered but refused the command
type CommandError struct {
	BlindID int
	Op      string
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("blind %d: %s rejected: %s", e.BlindID, e.Op, e.Reason)
}

// Unwrap lets errors.Is match ErrCommandRejected
func (e *CommandError) Unwrap() error {
	return ErrCommandRejected
}
