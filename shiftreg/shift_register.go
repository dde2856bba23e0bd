// Package shiftreg drives serial-in/parallel-out shift register chains such
// as the 74HC595 over plain GPIO lines.
//
// ShiftRegister is the raw protocol: bits and bytes are shifted MSB first,
// a latch pulse moves the shifted data to the outputs. StateBasedRegister
// keeps a shadow copy of the whole chain and re-sends it on every change, so
// single outputs can be addressed without reading the hardware back.
package shiftreg

import (
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit/pins"
)

// SettleDelay is the pulse width, in microseconds, used for clock, latch
// and clear pulses. 74HC595 parts need about 100ns at 2V.
const SettleDelay = 5

var ErrMissingLine = errors.New("required line not set")

// Lines assigns driver pin ids to the register inputs. Data, Clock and
// Latch are required, the rest may be pins.None.
type Lines struct {
	Data  pins.Line // SER
	Clock pins.Line // SRCLK
	Latch pins.Line // RCLK

	Clear        pins.Line // SRCLR, active low
	DataOut      pins.Line // QH' of the last register in the chain
	OutputEnable pins.Line // OE, active low
}

type Option func(*ShiftRegister)

// WithChainBytes tells the protocol how many registers are chained, which
// Clear needs when no clear line is wired.
func WithChainBytes(n int) Option {
	return func(sr *ShiftRegister) {
		if n > 0 {
			sr.chainBytes = n
		}
	}
}

type ShiftRegister struct {
	driver pins.Driver
	lines  Lines

	chainBytes int
}

// New configures every wired line and leaves the chain with clear released
// and outputs enabled.
func New(driver pins.Driver, lines Lines, opts ...Option) (*ShiftRegister, error) {
	if driver == nil {
		return nil, errors.New("shift register needs a pin driver")
	}
	required := []struct {
		name string
		line pins.Line
	}{
		{"data", lines.Data},
		{"clock", lines.Clock},
		{"latch", lines.Latch},
	}
	for _, r := range required {
		if !r.line.Present() {
			return nil, errors.Wrapf(ErrMissingLine, "%s line", r.name)
		}
	}

	sr := &ShiftRegister{driver: driver, lines: lines}
	for _, opt := range opts {
		opt(sr)
	}

	outputs := []pins.Line{lines.Data, lines.Clock, lines.Latch, lines.Clear, lines.OutputEnable}
	for _, line := range outputs {
		if err := sr.configure(line, pins.Output); err != nil {
			return nil, err
		}
	}
	if err := sr.configure(lines.DataOut, pins.Input); err != nil {
		return nil, err
	}

	if err := sr.set(lines.Clear, pins.High); err != nil {
		return nil, errors.Wrap(err, "failed to release clear line")
	}
	if err := sr.SetOutputEnabled(true); err != nil {
		return nil, errors.Wrap(err, "failed to enable outputs")
	}

	return sr, nil
}

func (sr *ShiftRegister) configure(line pins.Line, dir pins.Direction) error {
	if !line.Present() {
		return nil
	}
	err := sr.driver.ConfigureDirection(line.ID(), dir)
	if err != nil {
		return errors.Wrapf(err, "failed to configure pin %d as %s", line.ID(), dir)
	}
	return nil
}

func (sr *ShiftRegister) set(line pins.Line, level pins.Level) error {
	if !line.Present() {
		return nil
	}
	return sr.driver.SetLevel(line.ID(), level)
}

// pulse drives line to active, waits SettleDelay and drives it back.
func (sr *ShiftRegister) pulse(line pins.Line, active pins.Level) error {
	if err := sr.set(line, active); err != nil {
		return err
	}
	sr.driver.DelayMicroseconds(SettleDelay)
	return sr.set(line, !active)
}

func (sr *ShiftRegister) Lines() Lines {
	return sr.lines
}

func (sr *ShiftRegister) HasClearLine() bool {
	return sr.lines.Clear.Present()
}

func (sr *ShiftRegister) HasDataOut() bool {
	return sr.lines.DataOut.Present()
}

func (sr *ShiftRegister) HasOutputEnable() bool {
	return sr.lines.OutputEnable.Present()
}

// PushBit shifts one bit into the chain. Outputs do not change until Show.
func (sr *ShiftRegister) PushBit(state bool) error {
	if err := sr.set(sr.lines.Data, pins.Level(state)); err != nil {
		return errors.Wrap(err, "failed to set data line")
	}
	if err := sr.pulse(sr.lines.Clock, pins.High); err != nil {
		return errors.Wrap(err, "failed to pulse clock line")
	}
	return nil
}

// PushByte shifts b most significant bit first.
func (sr *ShiftRegister) PushByte(b byte) error {
	for mask := byte(0x80); mask > 0; mask >>= 1 {
		if err := sr.PushBit(b&mask != 0); err != nil {
			return err
		}
	}
	return nil
}

// ReadBit samples QH'. Without a data out line it always reads false.
func (sr *ShiftRegister) ReadBit() (bool, error) {
	if !sr.lines.DataOut.Present() {
		return false, nil
	}
	level, err := sr.driver.GetLevel(sr.lines.DataOut.ID())
	if err != nil {
		return false, errors.Wrap(err, "failed to read data out line")
	}
	return bool(level), nil
}

// ReadByte reads eight bits from the end of the chain, first bit in bit 7.
// With pushBack every bit read is shifted back in, leaving the chain content
// unchanged after a full rotation; otherwise zeros are shifted in.
func (sr *ShiftRegister) ReadByte(pushBack bool) (byte, error) {
	var b byte
	for mask := byte(0x80); mask > 0; mask >>= 1 {
		bit, err := sr.ReadBit()
		if err != nil {
			return b, err
		}
		if err = sr.PushBit(pushBack && bit); err != nil {
			return b, err
		}
		if bit {
			b |= mask
		}
	}
	return b, nil
}

// Clear empties the shift stages. Without a clear line it shifts in as many
// zero bytes as set by WithChainBytes, which is none by default.
func (sr *ShiftRegister) Clear() error {
	return sr.ClearChain(sr.chainBytes)
}

// ClearChain is Clear for a chain of n registers.
func (sr *ShiftRegister) ClearChain(n int) error {
	if sr.lines.Clear.Present() {
		if err := sr.pulse(sr.lines.Clear, pins.Low); err != nil {
			return errors.Wrap(err, "failed to pulse clear line")
		}
		return nil
	}

	for i := 0; i < n; i++ {
		if err := sr.PushByte(0); err != nil {
			return errors.Wrap(err, "failed to shift out zeros")
		}
	}
	return nil
}

// Show latches the shifted data to the output pins.
func (sr *ShiftRegister) Show() error {
	if err := sr.pulse(sr.lines.Latch, pins.High); err != nil {
		return errors.Wrap(err, "failed to pulse latch line")
	}
	return nil
}

// SetOutputEnabled drives OE (active low). A chain without OE wired is
// always enabled and this does nothing.
func (sr *ShiftRegister) SetOutputEnabled(state bool) error {
	return sr.set(sr.lines.OutputEnable, pins.Level(!state))
}
