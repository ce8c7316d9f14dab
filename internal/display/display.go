// Package display provides the "is any display on" signal with hardware abstraction.
// The gpio implementation uses the Linux GPIO character device, the drm
// implementation polls sysfs connector state, and the fake implementation
// allows testing without hardware.
package display

// Signal reports whether any display is on.
type Signal interface {
	// IsAnyDisplayOn is a point-in-time query of the display state.
	IsAnyDisplayOn() (bool, error)

	// Changes delivers a notification whenever the state could have changed.
	// Consumers re-check with IsAnyDisplayOn. Notifications may be coalesced.
	Changes() <-chan struct{}

	// Close releases resources and stops notifications.
	Close() error
}

// Default GPIO settings for a panel-power sense line.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 17
)

// notifier coalesces change notifications into a single-slot channel.
type notifier struct {
	ch chan struct{}
}

func newNotifier() notifier {
	return notifier{ch: make(chan struct{}, 1)}
}

func (n notifier) notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}
