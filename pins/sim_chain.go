package pins

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const simDriverName = "sim"

type EventOp string

const (
	EventConfigure EventOp = "configure"
	EventSet       EventOp = "set"
	EventGet       EventOp = "get"
	EventDelay     EventOp = "delay"
)

// Event is one recorded call into the simulated driver.
type Event struct {
	Op        EventOp
	ID        int
	Level     Level
	Direction Direction
	Micros    int
}

func (e Event) String() string {
	switch e.Op {
	case EventConfigure:
		return fmt.Sprintf("configure(%d, %s)", e.ID, e.Direction)
	case EventSet:
		return fmt.Sprintf("set(%d, %s)", e.ID, e.Level)
	case EventGet:
		return fmt.Sprintf("get(%d) = %s", e.ID, e.Level)
	default:
		return fmt.Sprintf("delay(%dus)", e.Micros)
	}
}

// SimWiring tells the simulated chain which ids are connected to which
// 74HC595 inputs.
type SimWiring struct {
	Data  int
	Clock int
	Latch int

	Clear        Line
	DataOut      Line
	OutputEnable Line
}

// SimChain models a chain of daisy-chained 74HC595 registers behind a
// Driver. Stage 0 is QA of the first device (the one fed by SER), the last
// stage is QH of the last device and is what QH' reports.
type SimChain struct {
	wiring SimWiring

	stages  []bool
	outputs []bool

	levels     map[int]Level
	directions map[int]Direction
	events     []Event

	monitor io.Writer
}

func NewSimChain(bytes int, wiring SimWiring) *SimChain {
	if bytes < 1 {
		bytes = 1
	}
	return &SimChain{
		wiring:     wiring,
		stages:     make([]bool, bytes*8),
		outputs:    make([]bool, bytes*8),
		levels:     make(map[int]Level),
		directions: make(map[int]Direction),
	}
}

func (sc *SimChain) String() string {
	return simDriverName
}

func (sc *SimChain) Close() error {
	return nil
}

func (sc *SimChain) wired(id int) bool {
	w := sc.wiring
	switch id {
	case w.Data, w.Clock, w.Latch:
		return true
	}
	for _, l := range []Line{w.Clear, w.DataOut, w.OutputEnable} {
		if l.Present() && l.ID() == id {
			return true
		}
	}
	return false
}

func (sc *SimChain) is(l Line, id int) bool {
	return l.Present() && l.ID() == id
}

func (sc *SimChain) ConfigureDirection(id int, dir Direction) error {
	sc.events = append(sc.events, Event{Op: EventConfigure, ID: id, Direction: dir})
	if !sc.wired(id) {
		return errors.Errorf("sim: pin %d not wired", id)
	}
	sc.directions[id] = dir
	return nil
}

func (sc *SimChain) SetLevel(id int, level Level) error {
	sc.events = append(sc.events, Event{Op: EventSet, ID: id, Level: level})
	if !sc.wired(id) {
		return errors.Errorf("sim: pin %d not wired", id)
	}
	if dir, ok := sc.directions[id]; !ok || dir != Output {
		return errors.Errorf("sim: pin %d is not configured as output", id)
	}

	previous := sc.levels[id]
	sc.levels[id] = level
	rising := previous == Low && level == High

	switch {
	case id == sc.wiring.Clock && rising:
		sc.shift()
	case id == sc.wiring.Latch && rising:
		sc.latch()
	case sc.is(sc.wiring.Clear, id) && level == Low:
		sc.clearStages()
	}
	return nil
}

func (sc *SimChain) GetLevel(id int) (Level, error) {
	level, err := sc.read(id)
	sc.events = append(sc.events, Event{Op: EventGet, ID: id, Level: level})
	return level, err
}

func (sc *SimChain) read(id int) (Level, error) {
	if !sc.wired(id) {
		return Low, errors.Errorf("sim: pin %d not wired", id)
	}
	if _, ok := sc.directions[id]; !ok {
		return Low, errors.Errorf("sim: pin %d direction not configured", id)
	}
	if sc.is(sc.wiring.DataOut, id) {
		return Level(sc.stages[len(sc.stages)-1]), nil
	}
	return sc.levels[id], nil
}

func (sc *SimChain) DelayMicroseconds(us int) {
	sc.events = append(sc.events, Event{Op: EventDelay, Micros: us})
}

func (sc *SimChain) clearHeld() bool {
	return sc.wiring.Clear.Present() && sc.levels[sc.wiring.Clear.ID()] == Low
}

func (sc *SimChain) shift() {
	if sc.clearHeld() {
		return
	}
	copy(sc.stages[1:], sc.stages[:len(sc.stages)-1])
	sc.stages[0] = bool(sc.levels[sc.wiring.Data])
}

func (sc *SimChain) latch() {
	for i, state := range sc.stages {
		if sc.monitor != nil && sc.outputs[i] != state {
			fmt.Fprintf(sc.monitor, "[output %d] state changed to %v\n", i, state)
		}
		sc.outputs[i] = state
	}
}

func (sc *SimChain) clearStages() {
	for i := range sc.stages {
		sc.stages[i] = false
	}
}

// Preload fills both the shift and storage stages with pattern, standing in
// for the undefined state a real chain powers up with.
func (sc *SimChain) Preload(pattern byte) {
	for i := range sc.stages {
		bit := pattern&(1<<(i%8)) != 0
		sc.stages[i] = bit
		sc.outputs[i] = bit
	}
}

// Outputs returns the latched output pins, index 0 being QA of the first
// device.
func (sc *SimChain) Outputs() []bool {
	out := make([]bool, len(sc.outputs))
	copy(out, sc.outputs)
	return out
}

// OutputBytes packs the latched outputs eight per byte, output 0 in bit 0
// of byte 0.
func (sc *SimChain) OutputBytes() []byte {
	return pack(sc.outputs)
}

// StageBytes packs the internal shift stages the same way as OutputBytes.
func (sc *SimChain) StageBytes() []byte {
	return pack(sc.stages)
}

func pack(bits []bool) []byte {
	packed := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}

// OutputsEnabled reports the OE state; a chain without OE wired is always
// enabled.
func (sc *SimChain) OutputsEnabled() bool {
	if !sc.wiring.OutputEnable.Present() {
		return true
	}
	return sc.levels[sc.wiring.OutputEnable.ID()] == Low
}

func (sc *SimChain) Level(id int) Level {
	return sc.levels[id]
}

func (sc *SimChain) Direction(id int) (Direction, bool) {
	dir, ok := sc.directions[id]
	return dir, ok
}

func (sc *SimChain) Events() []Event {
	events := make([]Event, len(sc.events))
	copy(events, sc.events)
	return events
}

func (sc *SimChain) ResetEvents() {
	sc.events = nil
}

// MonitorOutputs prints every latched output change to writer.
func (sc *SimChain) MonitorOutputs(writer io.Writer) {
	sc.monitor = writer
}
