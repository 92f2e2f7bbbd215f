// Package expander drives the TCA9554 8-bit I2C I/O expander that switches
// the relay board.
package expander

import (
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/sweeney/prop-controller/internal/logic"
)

// DefaultAddress is the TCA9554 address with A0..A2 strapped low.
const DefaultAddress uint16 = 0x20

// Register pointers.
const (
	RegInput    byte = 0x00
	RegOutput   byte = 0x01
	RegPolarity byte = 0x02
	RegConfig   byte = 0x03
)

// NumPins is the width of the output register.
const NumPins = 8

// Device is a TCA9554 with every pin used as an output. It keeps a shadow of
// the output register so single-pin changes can be written as a whole byte.
//
// Device is not safe for concurrent use; the relay executor serializes access.
type Device struct {
	bus    drivers.I2C
	addr   uint16
	shadow uint8
	w      [2]byte
	r      [1]byte
}

// New creates a driver for the expander at addr. No bus traffic happens
// until Init.
func New(bus drivers.I2C, addr uint16) *Device {
	return &Device{bus: bus, addr: addr}
}

// Address returns the device address.
func (d *Device) Address() uint16 {
	return d.addr
}

// Init configures every pin as an output and drives them all low.
func (d *Device) Init() error {
	if err := d.writeRegister(RegConfig, 0x00); err != nil {
		return fmt.Errorf("configure pins: %w", err)
	}
	if err := d.writeRegister(RegOutput, 0x00); err != nil {
		return fmt.Errorf("clear outputs: %w", err)
	}
	d.shadow = 0x00
	return nil
}

// SetOutput drives one pin. Pins outside 0..7 are ignored without touching
// the bus.
//
// The shadow is updated before the write and is not rolled back when the
// write fails, so after a bus error it holds the attempted mask rather than
// what the relays show.
func (d *Device) SetOutput(pin uint8, level logic.Level) error {
	if pin >= NumPins {
		return nil
	}
	if level == logic.Asserted {
		d.shadow |= 1 << pin
	} else {
		d.shadow &^= 1 << pin
	}
	return d.writeRegister(RegOutput, d.shadow)
}

// AllOff drives every pin low.
func (d *Device) AllOff() error {
	d.shadow = 0x00
	return d.writeRegister(RegOutput, 0x00)
}

// Shadow returns the last attempted output mask.
func (d *Device) Shadow() uint8 {
	return d.shadow
}

// ReadOutputs reads the output register back from the device.
func (d *Device) ReadOutputs() (uint8, error) {
	d.w[0] = RegOutput
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) writeRegister(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	return d.bus.Tx(d.addr, d.w[:2], nil)
}
