package pins

import (
	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"
)

const mcpDriverName = "mcp23017"
const mcpPinCount = 16

// McpDriver bit-bangs the chain through an MCP23017 I2C expander. Every
// level change is an I2C transaction, so it is slow but needs no header pins.
type McpDriver struct {
	BusNo uint8
	DevNo uint8

	device *mcp23017.Device
}

func (mcp *McpDriver) Open() (err error) {
	mcp.device, err = mcp23017.Open(mcp.BusNo, mcp.DevNo)
	if err != nil {
		return errors.Wrapf(err, "failed to open mcp23017 (bus %d, dev %d)", mcp.BusNo, mcp.DevNo)
	}
	return nil
}

func (mcp *McpDriver) Close() error {
	if mcp.device == nil {
		return nil
	}
	err := mcp.device.Close()
	mcp.device = nil
	return err
}

func (mcp *McpDriver) String() string {
	return mcpDriverName
}

func (mcp *McpDriver) pin(id int) (uint8, error) {
	if mcp.device == nil {
		return 0, errors.New("mcp23017 driver not opened")
	}
	if id < 0 || id >= mcpPinCount {
		return 0, errors.Wrapf(ErrPinOutOfRange, "mcp23017 pin %d (has %d pins)", id, mcpPinCount)
	}
	return uint8(id), nil
}

func (mcp *McpDriver) ConfigureDirection(id int, dir Direction) error {
	pin, err := mcp.pin(id)
	if err != nil {
		return err
	}
	mode := mcp23017.INPUT
	if dir == Output {
		mode = mcp23017.OUTPUT
	}
	return mcp.device.PinMode(pin, mode)
}

func (mcp *McpDriver) SetLevel(id int, level Level) error {
	pin, err := mcp.pin(id)
	if err != nil {
		return err
	}
	return mcp.device.DigitalWrite(pin, mcp23017.PinLevel(level))
}

func (mcp *McpDriver) GetLevel(id int) (Level, error) {
	pin, err := mcp.pin(id)
	if err != nil {
		return Low, err
	}
	raw, err := mcp.device.DigitalRead(pin)
	if err != nil {
		return Low, err
	}
	return Level(raw), nil
}

func (mcp *McpDriver) DelayMicroseconds(us int) {
	BusyWait(us)
}
