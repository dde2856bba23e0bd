// Package pins is the thin capability the shift register code drives: pin
// direction, level writes and reads, and microsecond waits. Backends talk
// to real hardware (go-rpio, MCP23017, TinyGo) or simulate a 74HC595 chain.
package pins

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrPinOutOfRange is returned by backends for ids they cannot address.
var ErrPinOutOfRange = errors.New("pin out of range")

type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Driver is implemented by every pin backend. Callers never pass an id that
// belongs to an absent Line.
type Driver interface {
	ConfigureDirection(id int, dir Direction) error
	SetLevel(id int, level Level) error
	GetLevel(id int) (Level, error)
	DelayMicroseconds(us int)
}

// Line is an optional pin identifier.
type Line struct {
	id      int
	present bool
}

// None marks a line that is not wired.
var None = Line{}

func Pin(id int) Line {
	return Line{id: id, present: true}
}

// Optional converts a config value, nil meaning not wired.
func Optional(id *int) Line {
	if id == nil {
		return None
	}
	return Pin(*id)
}

func (l Line) Present() bool {
	return l.present
}

func (l Line) ID() int {
	return l.id
}

func (l Line) String() string {
	if !l.present {
		return "none"
	}
	return fmt.Sprintf("%d", l.id)
}

// BusyWait spins for us microseconds. Sleeping would hand the goroutine to
// the scheduler and overshoot by orders of magnitude.
func BusyWait(us int) {
	if us <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}
