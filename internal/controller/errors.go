package controller

import "errors"

var (
	// ErrUnreachable is returned when the request never got a usable HTTP answer
	ErrUnreachable = errors.New("controller unreachable")

	// ErrInvalidResponse is returned when the body could not be decoded
	ErrInvalidResponse = errors.New("invalid controller response")

	// ErrCommandRejected is wrapped by CommandError when the controller reports failure
	ErrCommandRejected = errors.New("command rejected by controller")
)
