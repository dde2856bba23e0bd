//go:build tinygo

package pins

import (
	"machine"

	"github.com/pkg/errors"
)

// MachineDriver runs on microcontrollers through TinyGo's machine package.
type MachineDriver struct{}

func (md *MachineDriver) String() string {
	return "machine"
}

func (md *MachineDriver) ConfigureDirection(id int, dir Direction) error {
	if id < 0 || id > 255 {
		return errors.Wrapf(ErrPinOutOfRange, "machine pin %d", id)
	}
	mode := machine.PinInput
	if dir == Output {
		mode = machine.PinOutput
	}
	machine.Pin(id).Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (md *MachineDriver) SetLevel(id int, level Level) error {
	machine.Pin(id).Set(bool(level))
	return nil
}

func (md *MachineDriver) GetLevel(id int) (Level, error) {
	return Level(machine.Pin(id).Get()), nil
}

func (md *MachineDriver) DelayMicroseconds(us int) {
	BusyWait(us)
}
