// Package gpio provides edge waiting on sensor input lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"errors"
)

// Line is one sensor input that can be waited on for activation edges.
type Line interface {
	// WaitRisingEdge blocks until the line sees an inactive-to-active edge or
	// ctx is done. Edges that occur while nobody is waiting are not latched.
	WaitRisingEdge(ctx context.Context) error

	// Close releases the line.
	Close() error
}

// ErrClosed is returned when waiting on a closed line.
var ErrClosed = errors.New("gpio: line closed")

// Bias selects the line's internal pull resistor.
type Bias string

const (
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
	BiasDisabled Bias = "disabled"
)

// Options configures line requests.
type Options struct {
	Bias      Bias
	ActiveLow bool
	Consumer  string
}
