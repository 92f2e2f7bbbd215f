// Package i2c provides the I2C bus used to reach the relay expander.
// The real implementation uses the Linux i2c-dev character device.
// The fake implementation records transactions for tests.
package i2c

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Bus is an I2C bus that can be closed. Drivers only see drivers.I2C.
type Bus interface {
	drivers.I2C
	Close() error
}

// DefaultDevice is the i2c-dev node the expander hangs off.
const DefaultDevice = "/dev/i2c-1"

// ErrClosed is returned by transactions on a closed bus.
var ErrClosed = errors.New("i2c: bus closed")

// Unavailable returns a bus whose every transaction fails with err. It
// stands in for a device node that could not be opened, so the daemon keeps
// running and each relay write reports the cause.
func Unavailable(err error) Bus {
	return unavailable{err: err}
}

type unavailable struct {
	err error
}

func (u unavailable) Tx(addr uint16, w, r []byte) error {
	return u.err
}

func (u unavailable) Close() error {
	return nil
}
