package drivers

import (
	"context"

	"github.com/hubertat/shiftkit/mqtt"
)

type IoDriver interface {
	Setup(ctx context.Context) error
	SetMqtt(publisher mqtt.Publisher, prefix string) []mqtt.MqttHandler
	Close() error
	String() string
	IsReady() bool
	GetOutput(pin uint16) (DigitalOutput, error)
	GetAllIo() (outputs []uint16)
}

type DigitalOutput interface {
	GetState() (bool, error)
	Set(bool) error
}

// StateListener is notified after an output changed and was latched.
type StateListener interface {
	OutputChanged(pin uint16, state bool)
}
