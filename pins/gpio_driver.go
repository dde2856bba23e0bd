package pins

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"

// GpioDriver drives Raspberry Pi header pins through /dev/gpiomem.
type GpioDriver struct {
	isOpen bool
}

func (gp *GpioDriver) Open() error {
	err := rpio.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open gpio memory")
	}
	gp.isOpen = true
	return nil
}

func (gp *GpioDriver) Close() error {
	if !gp.isOpen {
		return nil
	}
	gp.isOpen = false
	return rpio.Close()
}

func (gp *GpioDriver) String() string {
	return gpioDriverName
}

func (gp *GpioDriver) pin(id int) (rpio.Pin, error) {
	if !gp.isOpen {
		return 0, errors.New("gpio driver not opened")
	}
	if id < 0 || id > 255 {
		return 0, errors.Wrapf(ErrPinOutOfRange, "gpio pin %d (takes 0-255)", id)
	}
	return rpio.Pin(id), nil
}

func (gp *GpioDriver) ConfigureDirection(id int, dir Direction) error {
	pin, err := gp.pin(id)
	if err != nil {
		return err
	}
	if dir == Output {
		pin.Output()
	} else {
		pin.Input()
	}
	return nil
}

func (gp *GpioDriver) SetLevel(id int, level Level) error {
	pin, err := gp.pin(id)
	if err != nil {
		return err
	}
	if level {
		pin.High()
	} else {
		pin.Low()
	}
	return nil
}

func (gp *GpioDriver) GetLevel(id int) (Level, error) {
	pin, err := gp.pin(id)
	if err != nil {
		return Low, err
	}
	return pin.Read() == rpio.High, nil
}

func (gp *GpioDriver) DelayMicroseconds(us int) {
	BusyWait(us)
}
