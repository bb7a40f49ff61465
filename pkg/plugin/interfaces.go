// Package plugin lets bridges between covers and the outside world register
// themselves from init() functions and be created in a fixed startup order.
package plugin

// Plugin is a bridge or automation running alongside the covers
type Plugin interface {
	// Name returns the unique identifier used for registration and logging.
	Name() string

	// Start subscribes to cover changes and external sources.
	Start() error

	// Stop releases subscriptions and stops background goroutines.
	Stop()
}

// Resettable is implemented by plugins that recalculate their state after a
// configuration reload.
type Resettable interface {
	Reset() error
}

// Factory creates a plugin instance from the shared context
type Factory func(ctx *Context) (Plugin, error)
