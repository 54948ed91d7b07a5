// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serlcd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/display/displaytest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/host/v3"
)

// Set the SERLCD environment variable to run the live test against a real
// display on the first available I²C bus. All other tests run against
// playback and fakes.
var liveDevice = os.Getenv("SERLCD") != ""

func init() {
	if _, err := host.Init(); err != nil {
		fmt.Println(err)
	}
}

// initOps is the wire traffic NewI2C produces while initializing the
// display, one checked transaction per byte.
func initOps(addr uint16) []i2ctest.IO {
	var ops []i2ctest.IO
	for _, b := range []byte{specialMode, 0x0c, specialMode, 0x06, settingMode, clearCmd} {
		ops = append(ops, i2ctest.IO{Addr: addr, W: []byte{b}})
	}
	return ops
}

func byteOps(addr uint16, p ...byte) []i2ctest.IO {
	var ops []i2ctest.IO
	for _, b := range p {
		ops = append(ops, i2ctest.IO{Addr: addr, W: []byte{b}})
	}
	return ops
}

// playbackDev returns a Dev connected to a playback bus preloaded with the
// init sequence plus ops.
func playbackDev(t *testing.T, ops ...i2ctest.IO) (*Dev, *i2ctest.Playback) {
	t.Helper()
	pb := &i2ctest.Playback{Ops: append(initOps(DefaultAddr), ops...), DontPanic: true}
	dev, err := NewI2C(pb, nil)
	if err != nil {
		t.Fatal(err)
	}
	return dev, pb
}

func TestI2CInit(t *testing.T) {
	dev, pb := playbackDev(t)
	if pb.Count != len(pb.Ops) {
		t.Errorf("consumed %d of %d init ops", pb.Count, len(pb.Ops))
	}
	if got := dev.String(); !strings.Contains(got, "20x4") {
		t.Errorf("String() = %q", got)
	}
}

func TestI2CWrite(t *testing.T) {
	dev, pb := playbackDev(t, byteOps(DefaultAddr, 'H', 'I')...)
	n, err := dev.WriteString("HI")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	if pb.Count != len(pb.Ops) {
		t.Errorf("consumed %d of %d ops", pb.Count, len(pb.Ops))
	}
}

func TestI2CContrast(t *testing.T) {
	dev, _ := playbackDev(t, byteOps(DefaultAddr, settingMode, contrastCmd, 40)...)
	if err := dev.Contrast(40); err != nil {
		t.Fatal(err)
	}
}

// A successful address change must retarget the very next transaction.
func TestSetAddressRetargets(t *testing.T) {
	ops := byteOps(DefaultAddr, settingMode, addressCmd, 0x71)
	ops = append(ops, byteOps(0x71, specialMode, lcdReturnHome)...)
	dev, pb := playbackDev(t, ops...)
	if err := dev.SetAddress(0x71); err != nil {
		t.Fatal(err)
	}
	if err := dev.Home(); err != nil {
		t.Fatal(err)
	}
	if pb.Count != len(pb.Ops) {
		t.Errorf("consumed %d of %d ops", pb.Count, len(pb.Ops))
	}
}

// A failed address change must leave the driver on the old address.
func TestSetAddressFailureKeepsOldAddress(t *testing.T) {
	// Only the setting marker makes it out before the bus faults.
	dev, _ := playbackDev(t, byteOps(DefaultAddr, settingMode)...)
	if err := dev.SetAddress(0x71); err == nil {
		t.Fatal("expected failure")
	}
	if dev.addr != DefaultAddr {
		t.Errorf("addr = %#x, want %#x", dev.addr, DefaultAddr)
	}
	if tr := dev.t.(*i2cTransport); tr.d.Addr != DefaultAddr {
		t.Errorf("transport addr = %#x, want %#x", tr.d.Addr, DefaultAddr)
	}
}

func TestI2CBusFaultSurfaces(t *testing.T) {
	// An exhausted playback reports every transaction as a fault.
	dev, _ := playbackDev(t)
	if err := dev.Home(); err == nil {
		t.Fatal("expected bus fault to surface")
	}
}

func TestHalt(t *testing.T) {
	ops := byteOps(DefaultAddr, settingMode, clearCmd)
	ops = append(ops, byteOps(DefaultAddr, specialMode, lcdDisplayControl)...)
	dev, _ := playbackDev(t, ops...)
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}
}

// closeRecorder checks Halt closes a closable serial writer.
type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestHaltClosesSerialWriter(t *testing.T) {
	w := &closeRecorder{}
	dev, err := NewSerial(w, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}
	if !w.closed {
		t.Error("Halt did not close the writer")
	}
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return 0, errors.New("stream fault")
}

func TestSerialWriterErrorPropagates(t *testing.T) {
	if _, err := NewSerial(errWriter{}, nil); err == nil {
		t.Fatal("expected init to surface the stream fault")
	}
}

// This exercises the whole TextDisplay surface against the serial
// transport.
func TestTextDisplayInterface(t *testing.T) {
	var buf bytes.Buffer
	dev, err := NewSerial(&buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, err := range displaytest.TestTextDisplay(dev, false) {
		if !errors.Is(err, display.ErrNotImplemented) {
			t.Error(err)
		}
	}
	if buf.Len() == 0 {
		t.Error("no bytes reached the transport")
	}
}

// TestLiveDevice runs a short visible demo on real hardware. Skipped unless
// the SERLCD environment variable is set.
func TestLiveDevice(t *testing.T) {
	if !liveDevice {
		t.Skip("set SERLCD to test against a live display")
	}
	b, err := i2creg.Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	// Record the stream so failures can be diffed against the playbacks.
	rec := &i2ctest.Record{Bus: b}
	var bus i2c.Bus = rec
	dev, err := NewI2C(bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { t.Logf("%#v", rec.Ops) }()

	if _, err := dev.WriteString("serlcd live test"); err != nil {
		t.Fatal(err)
	}
	if err := dev.SetCursor(0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := dev.WriteString(time.Now().Format("15:04:05")); err != nil {
		t.Fatal(err)
	}
	if err := dev.SetFastBacklight(0, 0xff, 0x80); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Second)
	if err := dev.SetFastBacklight(0xff, 0xff, 0xff); err != nil {
		t.Fatal(err)
	}
	if err := dev.Clear(); err != nil {
		t.Fatal(err)
	}
}
