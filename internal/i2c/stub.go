//go:build !linux

package i2c

import (
	"errors"
	"time"
)

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// Open returns an error on non-Linux platforms.
func Open(path string, timeout time.Duration) (*RealBus, error) {
	return nil, errors.New("i2c: not supported on this platform (requires Linux)")
}

// Tx is not implemented on non-Linux platforms.
func (b *RealBus) Tx(addr uint16, w, r []byte) error {
	return errors.New("i2c: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error {
	return nil
}
