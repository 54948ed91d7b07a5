// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// serlcd-demo exercises a SparkFun SerLCD over any of its three buses, or
// against the termlcd console emulator when no hardware is attached.
package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"periph.io/x/serlcd"
	"periph.io/x/serlcd/glyph"
	"periph.io/x/serlcd/termlcd"
)

func main() {
	transport := flag.String("transport", "term", "bus to use: i2c, spi, serial or term")
	i2cName := flag.String("i2c", "", "I²C bus to use (default: first available)")
	addr := flag.Uint("addr", uint(serlcd.DefaultAddr), "I²C device address")
	spiName := flag.String("spi", "", "SPI port to use (default: first available)")
	csName := flag.String("cs", "GPIO8", "chip select GPIO pin")
	portName := flag.String("port", "/dev/ttyUSB0", "OS serial port")
	baud := flag.Int("baud", 9600, "serial baud rate")
	rows := flag.Int("rows", 4, "panel rows")
	cols := flag.Int("cols", 20, "panel columns")
	text := flag.String("text", "Hello from Go", "text to display")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if flag.NArg() != 0 {
		log.Fatalf("unexpected argument: %s", flag.Arg(0))
	}

	opts := serlcd.DefaultOpts
	opts.Rows = *rows
	opts.Cols = *cols
	opts.Addr = uint16(*addr)

	dev, cleanup, err := open(*transport, &opts, *i2cName, *spiName, *csName, *portName, *baud)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()
	log.Debugf("connected: %s", dev)

	if err := demo(dev, *text); err != nil {
		log.Fatal(err)
	}
	if err := dev.Halt(); err != nil {
		log.Fatal(err)
	}
}

// open binds a display to the requested bus. The returned cleanup releases
// the bus resources but not the display itself.
func open(transport string, opts *serlcd.Opts, i2cName, spiName, csName, portName string, baud int) (*serlcd.Dev, func(), error) {
	if transport != "term" {
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
	}
	switch transport {
	case "i2c":
		b, err := i2creg.Open(i2cName)
		if err != nil {
			return nil, nil, err
		}
		dev, err := serlcd.NewI2C(b, opts)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		return dev, func() { b.Close() }, nil
	case "spi":
		p, err := spireg.Open(spiName)
		if err != nil {
			return nil, nil, err
		}
		cs := gpioreg.ByName(csName)
		if cs == nil {
			p.Close()
			return nil, nil, fmt.Errorf("no GPIO pin named %q", csName)
		}
		dev, err := serlcd.NewSPI(p, cs, opts)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		return dev, func() { p.Close() }, nil
	case "serial":
		port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, nil, fmt.Errorf("open serial port %s: %w", portName, err)
		}
		dev, err := serlcd.NewSerial(port, opts)
		if err != nil {
			port.Close()
			return nil, nil, err
		}
		return dev, func() {}, nil
	case "term":
		emu := termlcd.New(&termlcd.Opts{Rows: opts.Rows, Cols: opts.Cols})
		dev, err := serlcd.NewSerial(emu, opts)
		if err != nil {
			return nil, nil, err
		}
		return dev, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", transport)
	}
}

// demo runs a short tour of the display features.
func demo(dev *serlcd.Dev, text string) error {
	log.Debug("programming glyphs")
	if err := dev.CreateChar(0, glyph.Heart); err != nil {
		return err
	}
	if err := dev.CreateChar(1, glyph.ArrowRight); err != nil {
		return err
	}

	log.Debug("writing text")
	if err := dev.SetFastBacklight(0, 0x80, 0xff); err != nil {
		// Firmware before v1.1 lacks the single RGB command.
		log.Warnf("fast backlight failed, falling back: %v", err)
		if err := dev.SetBacklight(0, 0x80, 0xff); err != nil {
			return err
		}
	}
	if err := dev.Clear(); err != nil {
		return err
	}
	if _, err := dev.WriteString(text); err != nil {
		return err
	}
	if err := dev.SetCursor(0, 1); err != nil {
		return err
	}
	if err := dev.WriteChar(1); err != nil {
		return err
	}
	if _, err := io.WriteString(dev, " Go "); err != nil {
		return err
	}
	if err := dev.WriteChar(0); err != nil {
		return err
	}

	log.Debug("blinking cursor")
	if err := dev.BlinkCursor(true); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	if err := dev.BlinkCursor(false); err != nil {
		return err
	}

	log.Debug("scrolling")
	for i := 0; i < 4; i++ {
		if err := dev.Move(display.Forward); err != nil {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		if err := dev.Move(display.Backward); err != nil {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}

	log.Debug("cycling backlight")
	for _, c := range []uint32{0xff0000, 0x00ff00, 0x0000ff, 0xffffff} {
		if err := dev.SetFastBacklightColor(c); err != nil {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}
