//go:build linux

package i2c

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// i2c-dev ioctl requests (linux/i2c-dev.h).
const (
	ioctlTimeout = 0x0702 // I2C_TIMEOUT, units of 10ms
	ioctlSlave   = 0x0703 // I2C_SLAVE
)

// RealBus talks to an adapter through /dev/i2c-N.
type RealBus struct {
	mu     sync.Mutex
	fd     int
	path   string
	addr   uint16
	hasSet bool
}

// Open opens the i2c-dev node. A positive timeout is programmed into the
// adapter so a wedged bus fails the transaction instead of stalling forever.
func Open(path string, timeout time.Duration) (*RealBus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if timeout > 0 {
		ticks := int((timeout + 10*time.Millisecond - 1) / (10 * time.Millisecond))
		if err := unix.IoctlSetInt(fd, ioctlTimeout, ticks); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("set timeout on %s: %w", path, err)
		}
	}

	return &RealBus{fd: fd, path: path}, nil
}

// Tx writes w then reads len(r) bytes from the device at addr.
// Either slice may be empty.
func (b *RealBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return ErrClosed
	}

	if !b.hasSet || b.addr != addr {
		if err := unix.IoctlSetInt(b.fd, ioctlSlave, int(addr)); err != nil {
			return fmt.Errorf("select address 0x%02x: %w", addr, err)
		}
		b.addr = addr
		b.hasSet = true
	}

	if len(w) > 0 {
		n, err := unix.Write(b.fd, w)
		if err != nil {
			return fmt.Errorf("write 0x%02x: %w", addr, err)
		}
		if n != len(w) {
			return fmt.Errorf("write 0x%02x: short write %d/%d", addr, n, len(w))
		}
	}

	if len(r) > 0 {
		n, err := unix.Read(b.fd, r)
		if err != nil {
			return fmt.Errorf("read 0x%02x: %w", addr, err)
		}
		if n != len(r) {
			return fmt.Errorf("read 0x%02x: short read %d/%d", addr, n, len(r))
		}
	}

	return nil
}

// Close releases the device node.
func (b *RealBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	if err != nil {
		return fmt.Errorf("close %s: %w", b.path, err)
	}
	return nil
}
