//go:build !linux

package gpio

import (
	"context"
	"errors"
)

// RealLine is not available on non-Linux platforms.
type RealLine struct{}

// RequestLines returns an error on non-Linux platforms.
func RequestLines(chipName string, offsets []int, opts Options) ([]*RealLine, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// WaitRisingEdge is not implemented on non-Linux platforms.
func (l *RealLine) WaitRisingEdge(ctx context.Context) error {
	return errors.New("gpio: not supported")
}

// Offset is not implemented on non-Linux platforms.
func (l *RealLine) Offset() int {
	return -1
}

// Close is not implemented on non-Linux platforms.
func (l *RealLine) Close() error {
	return nil
}
