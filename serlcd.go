// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serlcd drives the SparkFun SerLCD intelligent character display
// (OpenLCD firmware) over I²C, SPI or a byte stream such as a UART.
//
// The OpenLCD protocol is write only: the firmware never reports its flag
// state back, so the driver keeps shadow copies of the display control and
// entry mode registers and resends the full register on every toggle. All
// shadow state, including the I²C device address, is committed only after
// the corresponding command frame transmits successfully.
//
// Unlike the stock SparkFun Arduino library, the I²C path sends every byte
// as a checked transaction, so a bus fault surfaces as an error instead of
// wedging the caller.
//
// Implements periph.io/x/conn/v3/display.TextDisplay.
//
// # Datasheet
//
// https://learn.sparkfun.com/tutorials/avr-based-serial-enabled-lcds-hookup-guide
package serlcd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// DefaultAddr is the 7-bit I²C address OpenLCD ships with.
const DefaultAddr uint16 = 0x72

// Mode markers. Every command frame starts with one of these.
const (
	settingMode byte = 0x7c // '|', enter setting mode
	specialMode byte = 254  // enter special (HD44780) command mode
)

// Setting mode commands.
const (
	clearCmd        byte = 0x2d // '-', clear display and move cursor home
	contrastCmd     byte = 0x18 // contrast change, followed by one value byte
	addressCmd      byte = 0x19 // I²C address change, followed by one value byte
	setRGBCmd       byte = 0x2b // '+', fast RGB backlight, followed by three bytes
	splashToggleCmd byte = 0x09 // enable/disable the power-on splash screen
	splashSaveCmd   byte = 0x0a // save the current text as the splash screen
	versionCmd      byte = 0x2c // ',', show the firmware version
	programCharCmd  byte = 27   // program custom character, plus slot 0-7
	writeCharCmd    byte = 35   // render custom character, plus slot 0-7
)

// Special mode (HD44780) command bases.
const (
	lcdReturnHome     byte = 0x02
	lcdEntryModeSet   byte = 0x04
	lcdDisplayControl byte = 0x08
	lcdCursorShift    byte = 0x10
	lcdSetDDRAMAddr   byte = 0x80
)

// Entry mode flags.
const (
	entryLeft           byte = 0x02
	entryShiftIncrement byte = 0x01
)

// Display control flags.
const (
	displayOn byte = 0x04
	cursorOn  byte = 0x02
	blinkOn   byte = 0x01
)

// Cursor/display shift flags.
const (
	displayMove byte = 0x08
	cursorMove  byte = 0x00
	moveRight   byte = 0x04
	moveLeft    byte = 0x00
)

// rowOffsets maps a row index to its base address in display memory.
var rowOffsets = [4]byte{0, 64, 20, 84}

// Settle delays the firmware needs after a command frame. These are fixed
// processing pauses, not timeouts.
const (
	settleShort = 10 * time.Millisecond // setting commands, raw writes
	settleLong  = 50 * time.Millisecond // special commands, glyphs, addressing
)

var errNotInitialized = errors.New("serlcd: no transport bound")

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("serlcd: %w", err)
}

// Opts holds the configuration for the display.
type Opts struct {
	// Rows and Cols describe the attached panel. OpenLCD ships on 20x4 and
	// 16x2 panels.
	Rows int
	Cols int
	// Addr is the I²C device address. Used by NewI2C only.
	Addr uint16
	// Freq and Mode configure the SPI port. Used by NewSPI only.
	Freq physic.Frequency
	Mode spi.Mode
}

// DefaultOpts is the configuration for a stock 20x4 SerLCD.
var DefaultOpts = Opts{
	Rows: 4,
	Cols: 20,
	Addr: DefaultAddr,
	Freq: 100 * physic.KiloHertz,
	Mode: spi.Mode0,
}

// Dev is a handle to a SerLCD display bound to one transport.
type Dev struct {
	t    transport
	rows int
	cols int

	// Shadow copies of the write only firmware registers.
	displayControl byte
	displayMode    byte
	addr           uint16

	sleep func(time.Duration)
}

// NewI2C returns a Dev that talks to the display over an I²C bus.
//
// Pass nil opts for the defaults. The display is initialized to a known
// state: display on, left to right text, cleared.
func NewI2C(bus i2c.Bus, opts *Opts) (*Dev, error) {
	o := fillOpts(opts)
	t := &i2cTransport{d: &i2c.Dev{Bus: bus, Addr: o.Addr}, sleep: time.Sleep}
	return newDev(t, o)
}

// NewSPI returns a Dev that talks to the display over a SPI port, using cs
// as the chip select line.
//
// The port is connected with the frequency and mode from opts; the defaults
// are the 100kHz Mode0 MSB-first setup the display expects.
func NewSPI(port spi.Port, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	o := fillOpts(opts)
	c, err := port.Connect(o.Freq, o.Mode, 8)
	if err != nil {
		return nil, wrap(err)
	}
	// Deselect before the first frame, in case the line floated low.
	if err := cs.Out(gpio.High); err != nil {
		return nil, wrap(err)
	}
	t := &spiTransport{c: c, cs: cs, sleep: time.Sleep}
	return newDev(t, o)
}

// NewSerial returns a Dev that writes the display's byte stream to w. That
// can be a UART port or any other io.Writer carrying bytes to the display.
//
// The stream carries no status back, so transmission faults are only
// detected if w reports them.
func NewSerial(w io.Writer, opts *Opts) (*Dev, error) {
	return newDev(&serialTransport{w: w}, fillOpts(opts))
}

func fillOpts(opts *Opts) *Opts {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Rows == 0 {
		o.Rows = DefaultOpts.Rows
	}
	if o.Cols == 0 {
		o.Cols = DefaultOpts.Cols
	}
	if o.Addr == 0 {
		o.Addr = DefaultOpts.Addr
	}
	if o.Freq == 0 {
		o.Freq = DefaultOpts.Freq
	}
	return &o
}

func newDev(t transport, o *Opts) (*Dev, error) {
	d := &Dev{
		t:              t,
		rows:           o.Rows,
		cols:           o.Cols,
		displayControl: displayOn,
		displayMode:    entryLeft,
		addr:           o.Addr,
		sleep:          time.Sleep,
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

// init puts the display into a known state. It may have been left in any
// state by a previous user.
func (d *Dev) init() error {
	err := d.frame(func(t transport) error {
		return sendAll(t,
			specialMode, lcdDisplayControl|d.displayControl,
			specialMode, lcdEntryModeSet|d.displayMode,
			settingMode, clearCmd)
	})
	if err != nil {
		return err
	}
	d.sleep(settleLong)
	return nil
}

// frame runs fn inside one open/close transaction on the bound transport.
// close is attempted on every exit path, even after a failed send, so the
// bus is never left held. The first error wins.
func (d *Dev) frame(fn func(t transport) error) error {
	if d.t == nil {
		return errNotInitialized
	}
	if err := d.t.open(); err != nil {
		return wrap(err)
	}
	err := fn(d.t)
	if cerr := d.t.close(); err == nil {
		err = cerr
	}
	return wrap(err)
}

func sendAll(t transport, p ...byte) error {
	for _, b := range p {
		if err := t.send(b); err != nil {
			return err
		}
	}
	return nil
}

// command sends one setting mode command and waits out the settle delay.
func (d *Dev) command(cmd byte) error {
	err := d.frame(func(t transport) error {
		return sendAll(t, settingMode, cmd)
	})
	if err != nil {
		return err
	}
	d.sleep(settleShort)
	return nil
}

// specialCommand sends one special mode command. Special commands change
// display structure and need the longer settle delay.
func (d *Dev) specialCommand(cmd byte) error {
	return d.specialCommandN(cmd, 1)
}

// specialCommandN sends the same special command count times within a single
// frame, settling once at the end. count of zero sends nothing but still
// frames and settles.
func (d *Dev) specialCommandN(cmd byte, count int) error {
	err := d.frame(func(t transport) error {
		for i := 0; i < count; i++ {
			if err := sendAll(t, specialMode, cmd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.sleep(settleLong)
	return nil
}

// setDisplayControl transmits the full display control register and commits
// the shadow copy on success.
func (d *Dev) setDisplayControl(mask byte) error {
	if err := d.specialCommand(lcdDisplayControl | mask); err != nil {
		return err
	}
	d.displayControl = mask
	return nil
}

// setDisplayMode transmits the full entry mode register and commits the
// shadow copy on success.
func (d *Dev) setDisplayMode(mask byte) error {
	if err := d.specialCommand(lcdEntryModeSet | mask); err != nil {
		return err
	}
	d.displayMode = mask
	return nil
}

// Clear the display and move the cursor home. Clearing is firmware slow, so
// an extra settle follows the usual command delay.
func (d *Dev) Clear() error {
	if err := d.command(clearCmd); err != nil {
		return err
	}
	d.sleep(settleShort)
	return nil
}

// Home moves the cursor to the top left without clearing the display.
func (d *Dev) Home() error {
	return d.specialCommand(lcdReturnHome)
}

// SetCursor moves the cursor to the given column and row. The row is
// clamped to the panel; the column is the caller's responsibility.
func (d *Dev) SetCursor(col, row int) error {
	if row < 0 {
		row = 0
	}
	if max := len(rowOffsets) - 1; row > max {
		row = max
	}
	return d.specialCommand(lcdSetDDRAMAddr | (rowOffsets[row] + byte(col)))
}

// MoveTo moves the cursor to an arbitrary position. Unlike SetCursor it
// rejects positions outside the panel, per the TextDisplay contract.
func (d *Dev) MoveTo(row, col int) error {
	if row < d.MinRow() || row >= d.rows || col < d.MinCol() || col >= d.cols {
		return fmt.Errorf("serlcd: invalid MoveTo(%d, %d)", row, col)
	}
	return d.specialCommand(lcdSetDDRAMAddr | (rowOffsets[row] + byte(col)))
}

// CreateChar programs one of the 8 custom character slots with a 5x8
// pattern, one byte per pixel row. The slot is masked to 0-7.
func (d *Dev) CreateChar(slot byte, pattern [8]byte) error {
	slot &= 0x7
	err := d.frame(func(t transport) error {
		if err := sendAll(t, settingMode, programCharCmd+slot); err != nil {
			return err
		}
		return sendAll(t, pattern[:]...)
	})
	if err != nil {
		return err
	}
	d.sleep(settleLong)
	return nil
}

// WriteChar renders a previously programmed custom character at the cursor.
// The slot is masked to 0-7.
func (d *Dev) WriteChar(slot byte) error {
	return d.command(writeCharCmd + (slot & 0x7))
}

// Write streams p to the display at the cursor position within a single
// frame. An empty p still frames and settles but carries nothing.
func (d *Dev) Write(p []byte) (int, error) {
	n := 0
	err := d.frame(func(t transport) error {
		for _, b := range p {
			if err := t.send(b); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	d.sleep(settleShort)
	return n, nil
}

// WriteByte writes a single character at the cursor position.
func (d *Dev) WriteByte(b byte) error {
	_, err := d.Write([]byte{b})
	return err
}

// WriteString writes text at the cursor position.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write([]byte(text))
}

// Display turns the display on or off without touching its contents.
func (d *Dev) Display(on bool) error {
	mask := d.displayControl &^ displayOn
	if on {
		mask |= displayOn
	}
	return d.setDisplayControl(mask)
}

// UnderlineCursor turns the underline cursor on or off.
func (d *Dev) UnderlineCursor(on bool) error {
	mask := d.displayControl &^ cursorOn
	if on {
		mask |= cursorOn
	}
	return d.setDisplayControl(mask)
}

// BlinkCursor turns the blinking block cursor on or off.
func (d *Dev) BlinkCursor(on bool) error {
	mask := d.displayControl &^ blinkOn
	if on {
		mask |= blinkOn
	}
	return d.setDisplayControl(mask)
}

// Cursor sets the cursor mode. You can pass multiple arguments:
// Cursor(CursorUnderline, CursorBlink).
func (d *Dev) Cursor(mode ...display.CursorMode) error {
	mask := d.displayControl &^ (cursorOn | blinkOn)
	for _, m := range mode {
		switch m {
		case display.CursorOff:
		case display.CursorUnderline:
			mask |= cursorOn
		case display.CursorBlink, display.CursorBlock:
			mask |= blinkOn
		default:
			return wrap(display.ErrInvalidCommand)
		}
	}
	return d.setDisplayControl(mask)
}

// LeftToRight makes text flow left to right from the cursor.
func (d *Dev) LeftToRight() error {
	return d.setDisplayMode(d.displayMode | entryLeft)
}

// RightToLeft makes text flow right to left from the cursor.
func (d *Dev) RightToLeft() error {
	return d.setDisplayMode(d.displayMode &^ entryLeft)
}

// AutoScroll enables or disables autoscroll. When enabled the display
// shifts on every write, right justifying text at the cursor.
func (d *Dev) AutoScroll(enabled bool) error {
	mask := d.displayMode &^ entryShiftIncrement
	if enabled {
		mask |= entryShiftIncrement
	}
	return d.setDisplayMode(mask)
}

// Scroll shifts the displayed text count characters backward (left) or
// forward (right) without changing display memory. All count steps go out
// in one frame with a single settle at the end.
func (d *Dev) Scroll(dir display.CursorDirection, count int) error {
	return d.shift(displayMove, dir, count)
}

// MoveCursor moves the cursor count characters backward or forward.
func (d *Dev) MoveCursor(dir display.CursorDirection, count int) error {
	return d.shift(cursorMove, dir, count)
}

// Move moves the cursor one character backward or forward.
func (d *Dev) Move(dir display.CursorDirection) error {
	return d.MoveCursor(dir, 1)
}

func (d *Dev) shift(target byte, dir display.CursorDirection, count int) error {
	var m byte
	switch dir {
	case display.Backward:
		m = moveLeft
	case display.Forward:
		m = moveRight
	default:
		return wrap(display.ErrNotImplemented)
	}
	if count < 0 {
		return fmt.Errorf("serlcd: negative shift count %d", count)
	}
	return d.specialCommandN(lcdCursorShift|target|m, count)
}

// scaleBacklight maps a 0-255 channel value into one of the firmware
// brightness bands: red 128-157, green 158-187, blue 188-217.
func scaleBacklight(v, base byte) byte {
	return base + byte(int(v)*29/255)
}

// SetBacklight sets the backlight color using the original per-channel
// brightness commands. The display is blanked for the duration of the frame
// to hide the firmware's confirmation text, and is left on afterwards.
//
// Each change is written to EEPROM; prefer SetFastBacklight on firmware
// that supports it.
func (d *Dev) SetBacklight(r, g, b byte) error {
	off := d.displayControl &^ displayOn
	err := d.frame(func(t transport) error {
		return sendAll(t,
			specialMode, lcdDisplayControl|off,
			settingMode, scaleBacklight(r, 128),
			settingMode, scaleBacklight(g, 158),
			settingMode, scaleBacklight(b, 188),
			specialMode, lcdDisplayControl|off|displayOn)
	})
	if err != nil {
		return err
	}
	d.displayControl = off | displayOn
	d.sleep(settleLong)
	return nil
}

// SetBacklightColor is SetBacklight with a packed 0x00RRGGBB value.
func (d *Dev) SetBacklightColor(rgb uint32) error {
	return d.SetBacklight(byte(rgb>>16), byte(rgb>>8), byte(rgb))
}

// SetFastBacklight sets the backlight color with the single RGB command.
// The channel values go out raw, the display stays on, and only the short
// settle applies.
func (d *Dev) SetFastBacklight(r, g, b byte) error {
	err := d.frame(func(t transport) error {
		return sendAll(t, settingMode, setRGBCmd, r, g, b)
	})
	if err != nil {
		return err
	}
	d.sleep(settleShort)
	return nil
}

// SetFastBacklightColor is SetFastBacklight with a packed 0x00RRGGBB value.
func (d *Dev) SetFastBacklightColor(rgb uint32) error {
	return d.SetFastBacklight(byte(rgb>>16), byte(rgb>>8), byte(rgb))
}

// Backlight sets the backlight to a grey intensity, 0 off to 255 maximum.
func (d *Dev) Backlight(intensity display.Intensity) error {
	return d.SetFastBacklight(byte(intensity), byte(intensity), byte(intensity))
}

// RGBBacklight sets the backlight color, 0 off to 255 maximum per channel.
func (d *Dev) RGBBacklight(red, green, blue display.Intensity) error {
	return d.SetFastBacklight(byte(red), byte(green), byte(blue))
}

// Contrast sets the character contrast. The value is written to EEPROM, so
// use it sparingly. The factory default is 40.
func (d *Dev) Contrast(contrast display.Contrast) error {
	err := d.frame(func(t transport) error {
		return sendAll(t, settingMode, contrastCmd, byte(contrast))
	})
	if err != nil {
		return err
	}
	d.sleep(settleShort)
	return nil
}

// SetAddress changes the device I²C address. The change persists in the
// display EEPROM; a bad value may require a hardware reset to recover.
//
// The driver retargets itself only after the command transmits, so a failed
// change leaves it talking to the old, still valid address.
func (d *Dev) SetAddress(addr byte) error {
	err := d.frame(func(t transport) error {
		return sendAll(t, settingMode, addressCmd, addr)
	})
	if err != nil {
		return err
	}
	d.addr = uint16(addr)
	if t, ok := d.t.(*i2cTransport); ok {
		t.setAddr(uint16(addr))
	}
	d.sleep(settleLong)
	return nil
}

// ToggleSplash enables or disables the power-on splash screen.
func (d *Dev) ToggleSplash() error {
	return d.command(splashToggleCmd)
}

// SaveSplash stores the currently displayed text as the splash screen.
func (d *Dev) SaveSplash() error {
	return d.command(splashSaveCmd)
}

// ShowFirmwareVersion makes the display show its firmware version.
func (d *Dev) ShowFirmwareVersion() error {
	return d.command(versionCmd)
}

// Cols returns the number of columns the display supports.
func (d *Dev) Cols() int {
	return d.cols
}

// Rows returns the number of rows the display supports.
func (d *Dev) Rows() int {
	return d.rows
}

// MinCol returns the minimum column position.
func (d *Dev) MinCol() int {
	return 0
}

// MinRow returns the minimum row position.
func (d *Dev) MinRow() int {
	return 0
}

// Halt clears the display and turns it off. If a serial transport's writer
// implements io.Closer, it is closed.
func (d *Dev) Halt() error {
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.Display(false); err != nil {
		return err
	}
	if t, ok := d.t.(*serialTransport); ok {
		if cl, ok := t.w.(io.Closer); ok {
			return wrap(cl.Close())
		}
	}
	return nil
}

func (d *Dev) String() string {
	if d.t == nil {
		return fmt.Sprintf("SparkFun SerLCD %dx%d Display - unbound", d.cols, d.rows)
	}
	return fmt.Sprintf("SparkFun SerLCD %dx%d Display - %s", d.cols, d.rows, d.t)
}

var _ display.TextDisplay = &Dev{}
var _ display.DisplayContrast = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ display.DisplayRGBBacklight = &Dev{}
var _ conn.Resource = &Dev{}
var _ io.Writer = &Dev{}
