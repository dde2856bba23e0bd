package shiftreg

import (
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit/pins"
)

var ErrInvalidSize = errors.New("register size must be at least one byte")

// StateBasedRegister addresses every output of an n byte chain on its own.
// It keeps the last latched state in a shadow buffer and re-sends the whole
// buffer on each change.
//
// Output p is bit p%8 of shadow byte p/8; byte n-1 is shifted first, so
// output 0 ends up on QA of the register nearest to the controller.
//
// StateBasedRegister is not safe for concurrent use.
type StateBasedRegister struct {
	sr     *ShiftRegister
	shadow []byte
}

// NewStateBased builds the protocol from lines and clears the chain.
func NewStateBased(driver pins.Driver, lines Lines, n int) (*StateBasedRegister, error) {
	if n < 1 {
		return nil, errors.Wrapf(ErrInvalidSize, "got %d", n)
	}
	sr, err := New(driver, lines, WithChainBytes(n))
	if err != nil {
		return nil, err
	}
	return NewStateBasedFrom(sr, n)
}

// NewStateBasedFrom takes over an already configured protocol. The caller
// should not use sr directly afterwards.
func NewStateBasedFrom(sr *ShiftRegister, n int) (*StateBasedRegister, error) {
	if sr == nil {
		return nil, errors.New("nil shift register")
	}
	if n < 1 {
		return nil, errors.Wrapf(ErrInvalidSize, "got %d", n)
	}

	reg := &StateBasedRegister{sr: sr, shadow: make([]byte, n)}
	if err := reg.Clear(); err != nil {
		return nil, errors.Wrap(err, "failed to clear register on start")
	}
	return reg, nil
}

// Size is the chain length in bytes.
func (reg *StateBasedRegister) Size() int {
	return len(reg.shadow)
}

// Len is the number of addressable outputs.
func (reg *StateBasedRegister) Len() int {
	return len(reg.shadow) * 8
}

// Clear zeroes the chain with the hardware clear line when wired, otherwise
// by shifting zeros through it, then latches the empty state. The shadow
// keeps the old state unless the latch was reached.
func (reg *StateBasedRegister) Clear() error {
	if err := reg.sr.ClearChain(len(reg.shadow)); err != nil {
		return err
	}

	latching, err := reg.flush(make([]byte, len(reg.shadow)))
	if latching {
		for i := range reg.shadow {
			reg.shadow[i] = 0
		}
	}
	return err
}

// Write sets output pin and latches the whole chain. Pins outside
// [0, Len()) are ignored.
func (reg *StateBasedRegister) Write(pin int, state bool) error {
	if pin < 0 || pin >= reg.Len() {
		return nil
	}

	index, mask := pin/8, byte(1)<<(pin%8)
	previous := reg.shadow[index]
	if state {
		reg.shadow[index] |= mask
	} else {
		reg.shadow[index] &^= mask
	}

	latching, err := reg.flush(reg.shadow)
	if err != nil {
		// once the latch pulse started the outputs may already show the new bit
		if !latching {
			reg.shadow[index] = previous
		}
		return errors.Wrapf(err, "failed to write pin %d", pin)
	}
	return nil
}

// State reports the last latched state of pin, false when out of range.
func (reg *StateBasedRegister) State(pin int) bool {
	if pin < 0 || pin >= reg.Len() {
		return false
	}
	return reg.shadow[pin/8]&(1<<(pin%8)) != 0
}

// Bytes returns a copy of the shadow buffer.
func (reg *StateBasedRegister) Bytes() []byte {
	out := make([]byte, len(reg.shadow))
	copy(out, reg.shadow)
	return out
}

// SetOutputEnabled toggles OE without touching the latched data.
func (reg *StateBasedRegister) SetOutputEnabled(state bool) error {
	return reg.sr.SetOutputEnabled(state)
}

// flush shifts buf out, highest byte first, and latches it. latching is
// false when the error came before the latch pulse.
func (reg *StateBasedRegister) flush(buf []byte) (latching bool, err error) {
	for i := len(buf) - 1; i >= 0; i-- {
		if err = reg.sr.PushByte(buf[i]); err != nil {
			return false, err
		}
	}
	return true, reg.sr.Show()
}
