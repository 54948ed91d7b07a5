// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serlcd

import (
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"
)

// byteDelay paces I²C writes. OpenLCD has a 32 byte receive buffer and
// needs time to drain it; pushing bytes back to back locks the firmware up.
const byteDelay = 40 * time.Microsecond

// csSettle is how long the display needs after the chip select line changes.
const csSettle = 10 * time.Millisecond

// A transport carries framed byte sequences to the display over one physical
// interface. open marks the start of a frame, send carries one byte and
// close ends the frame. Implementations must return rather than block when
// the hardware reports a fault; any error aborts the rest of the frame.
type transport interface {
	open() error
	send(b byte) error
	close() error
	String() string
}

// i2cTransport sends every byte as its own checked transaction. The periph
// bus API owns the start/stop conditions, so open and close put nothing on
// the wire; the per byte status from Tx is the contract callers rely on.
type i2cTransport struct {
	d     *i2c.Dev
	buf   [1]byte
	sleep func(time.Duration)
}

func (t *i2cTransport) open() error {
	return nil
}

func (t *i2cTransport) send(b byte) error {
	t.buf[0] = b
	if err := t.d.Tx(t.buf[:], nil); err != nil {
		return err
	}
	t.sleep(byteDelay)
	return nil
}

func (t *i2cTransport) close() error {
	return nil
}

// setAddr retargets the transport after a successful address change command.
func (t *i2cTransport) setAddr(addr uint16) {
	t.d.Addr = addr
}

func (t *i2cTransport) String() string {
	return t.d.String()
}

// spiTransport frames commands by asserting the chip select line around the
// transfer. The display needs a settle period after each edge before it
// accepts data.
type spiTransport struct {
	c     spi.Conn
	cs    gpio.PinOut
	buf   [1]byte
	sleep func(time.Duration)
}

func (t *spiTransport) open() error {
	if err := t.cs.Out(gpio.Low); err != nil {
		return err
	}
	t.sleep(csSettle)
	return nil
}

func (t *spiTransport) send(b byte) error {
	t.buf[0] = b
	return t.c.Tx(t.buf[:], nil)
}

func (t *spiTransport) close() error {
	err := t.cs.Out(gpio.High)
	t.sleep(csSettle)
	return err
}

func (t *spiTransport) String() string {
	return fmt.Sprintf("SPI(%s, CS=%s)", t.c, t.cs.Name())
}

// serialTransport writes to a byte stream, typically a UART. The stream has
// no framing, so open and close are no-ops.
type serialTransport struct {
	w   io.Writer
	buf [1]byte
}

func (t *serialTransport) open() error {
	return nil
}

func (t *serialTransport) send(b byte) error {
	t.buf[0] = b
	_, err := t.w.Write(t.buf[:])
	return err
}

func (t *serialTransport) close() error {
	return nil
}

func (t *serialTransport) String() string {
	if s, ok := t.w.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", t.w)
}
