// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serlcd

import (
	"bytes"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"
)

func TestSPIInit(t *testing.T) {
	var ops []conntest.IO
	for _, b := range []byte{specialMode, 0x0c, specialMode, 0x06, settingMode, clearCmd} {
		ops = append(ops, conntest.IO{W: []byte{b}})
	}
	port := &spitest.Playback{Playback: conntest.Playback{Ops: ops, DontPanic: true}}
	cs := &gpiotest.Pin{N: "CS"}
	dev, err := NewSPI(port, cs, nil)
	if err != nil {
		t.Fatal(err)
	}
	// The frame must end with the display deselected.
	if cs.L != gpio.High {
		t.Error("CS left asserted after init frame")
	}
	if got := dev.String(); got == "" {
		t.Error("empty String()")
	}
}

func TestSPIFaultSurfaces(t *testing.T) {
	// No ops queued: the first init byte faults.
	port := &spitest.Playback{Playback: conntest.Playback{DontPanic: true}}
	cs := &gpiotest.Pin{N: "CS"}
	if _, err := NewSPI(port, cs, nil); err == nil {
		t.Fatal("expected init to surface the SPI fault")
	}
	if cs.L != gpio.High {
		t.Error("CS left asserted after a failed frame")
	}
}

func TestSerialTransportStream(t *testing.T) {
	var buf bytes.Buffer
	dev, err := NewSerial(&buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{specialMode, 0x0c, specialMode, 0x06, settingMode, clearCmd}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("init stream = %#v, want %#v", buf.Bytes(), want)
	}
	buf.Reset()
	if _, err := dev.WriteString("ok"); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), []byte("ok")) {
		t.Errorf("write stream = %#v", buf.Bytes())
	}
}

func TestOptsDefaults(t *testing.T) {
	o := fillOpts(nil)
	if o.Rows != 4 || o.Cols != 20 || o.Addr != DefaultAddr {
		t.Errorf("defaults = %+v", o)
	}
	o = fillOpts(&Opts{Rows: 2, Cols: 16})
	if o.Rows != 2 || o.Cols != 16 {
		t.Errorf("override = %+v", o)
	}
	if o.Addr != DefaultAddr || o.Freq == 0 {
		t.Errorf("unset fields not defaulted: %+v", o)
	}
}
