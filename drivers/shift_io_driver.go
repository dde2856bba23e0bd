package drivers

import (
	"context"
	"encoding/hex"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit/config"
	"github.com/hubertat/shiftkit/pins"
	"github.com/hubertat/shiftkit/shiftreg"
)

const shiftioDriverName = "shiftio"

type pinBackend interface {
	pins.Driver
	Close() error
	String() string
}

// ShiftIO exposes every output of a shift register chain as a
// DigitalOutput. The register itself has no locking, so all access goes
// through ShiftIO's mutex.
type ShiftIO struct {
	Config config.Shift

	open      func() (pinBackend, error)
	backend   pinBackend
	sim       *pins.SimChain
	register  *shiftreg.StateBasedRegister
	outputs   []*ShiftOutput
	listeners []StateListener
	enabled   bool
	isReady   bool

	logger *log.Logger
	lock   sync.Mutex
}

type ShiftOutput struct {
	pin uint16
	io  *ShiftIO
}

func (so *ShiftOutput) GetState() (bool, error) {
	return so.io.state(so.pin)
}

func (so *ShiftOutput) Set(state bool) error {
	return so.io.set(so.pin, state)
}

func (so *ShiftOutput) Pin() uint16 {
	return so.pin
}

// State is a point in time copy of the chain.
type State struct {
	Bytes   []byte `json:"-"`
	Hex     string `json:"hex"`
	Outputs []bool `json:"outputs"`
	Enabled bool   `json:"enabled"`
}

func NewShiftIO(cfg config.Shift) *ShiftIO {
	return &ShiftIO{
		Config: cfg,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "ShiftIO: ",
			Level:  log.GetLevel(),
		}),
	}
}

func (sio *ShiftIO) lines() shiftreg.Lines {
	return shiftreg.Lines{
		Data:         pins.Optional(sio.Config.Data),
		Clock:        pins.Optional(sio.Config.Clock),
		Latch:        pins.Optional(sio.Config.Latch),
		Clear:        pins.Optional(sio.Config.Clear),
		DataOut:      pins.Optional(sio.Config.DataOut),
		OutputEnable: pins.Optional(sio.Config.OutputEnable),
	}
}

func (sio *ShiftIO) openBackend() (pinBackend, error) {
	switch sio.Config.Backend {
	case "", "gpio":
		gp := &pins.GpioDriver{}
		return gp, gp.Open()
	case "mcp23017":
		mcp := &pins.McpDriver{BusNo: sio.Config.BusNo, DevNo: sio.Config.DevNo}
		return mcp, mcp.Open()
	case "sim":
		lines := sio.lines()
		if !lines.Data.Present() || !lines.Clock.Present() || !lines.Latch.Present() {
			return nil, errors.Wrap(shiftreg.ErrMissingLine, "sim backend")
		}
		sio.sim = pins.NewSimChain(sio.Config.Bytes, pins.SimWiring{
			Data:         lines.Data.ID(),
			Clock:        lines.Clock.ID(),
			Latch:        lines.Latch.ID(),
			Clear:        lines.Clear,
			DataOut:      lines.DataOut,
			OutputEnable: lines.OutputEnable,
		})
		return sio.sim, nil
	}
	return nil, errors.Errorf("unknown backend %q", sio.Config.Backend)
}

func (sio *ShiftIO) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sio.logger == nil {
		sio.logger = log.Default()
	}

	sio.lock.Lock()
	defer sio.lock.Unlock()

	open := sio.openBackend
	if sio.open != nil {
		open = sio.open
	}
	backend, err := open()
	if err != nil {
		return errors.Wrapf(err, "failed to open %s backend", sio.Config.Backend)
	}
	sio.backend = backend

	sio.register, err = shiftreg.NewStateBased(backend, sio.lines(), sio.Config.Bytes)
	if err != nil {
		backend.Close()
		return errors.Wrap(err, "failed to set up shift register")
	}
	sio.enabled = true

	sio.outputs = nil
	for pin := 0; pin < sio.register.Len(); pin++ {
		sio.outputs = append(sio.outputs, &ShiftOutput{pin: uint16(pin), io: sio})
		if sio.Config.InvertOutputs {
			if err = sio.register.Write(pin, true); err != nil {
				backend.Close()
				return errors.Wrap(err, "failed to switch inverted outputs off")
			}
		}
	}

	sio.isReady = true
	sio.logger.Info("shift register ready", "backend", backend.String(), "bytes", sio.register.Size(), "lines", sio.lines())
	return nil
}

func (sio *ShiftIO) String() string {
	return shiftioDriverName
}

func (sio *ShiftIO) IsReady() bool {
	return sio.isReady
}

// Sim returns the simulated chain when running on the sim backend.
func (sio *ShiftIO) Sim() *pins.SimChain {
	return sio.sim
}

func (sio *ShiftIO) Subscribe(listener StateListener) {
	sio.lock.Lock()
	defer sio.lock.Unlock()

	sio.listeners = append(sio.listeners, listener)
}

func (sio *ShiftIO) notify(changed []uint16, states []bool) {
	sio.lock.Lock()
	listeners := append([]StateListener{}, sio.listeners...)
	sio.lock.Unlock()

	for i, pin := range changed {
		for _, l := range listeners {
			l.OutputChanged(pin, states[i])
		}
	}
}

func (sio *ShiftIO) logical(pin int) bool {
	return sio.register.State(pin) != sio.Config.InvertOutputs
}

func (sio *ShiftIO) state(pin uint16) (bool, error) {
	sio.lock.Lock()
	defer sio.lock.Unlock()

	if !sio.isReady {
		return false, errors.New("shiftio driver not ready")
	}
	return sio.logical(int(pin)), nil
}

func (sio *ShiftIO) set(pin uint16, state bool) error {
	sio.lock.Lock()
	if !sio.isReady {
		sio.lock.Unlock()
		return errors.New("shiftio driver not ready")
	}

	previous := sio.logical(int(pin))
	err := sio.register.Write(int(pin), state != sio.Config.InvertOutputs)
	sio.lock.Unlock()
	if err != nil {
		return err
	}

	sio.logger.Debug("output set", "pin", pin, "state", state)
	if previous != state {
		sio.notify([]uint16{pin}, []bool{state})
	}
	return nil
}

// Clear drives every output of the chain low and latches it.
func (sio *ShiftIO) Clear() error {
	sio.lock.Lock()
	if !sio.isReady {
		sio.lock.Unlock()
		return errors.New("shiftio driver not ready")
	}

	before := make([]bool, sio.register.Len())
	for pin := range before {
		before[pin] = sio.logical(pin)
	}
	err := sio.register.Clear()

	var changed []uint16
	var states []bool
	for pin, was := range before {
		if now := sio.logical(pin); now != was {
			changed = append(changed, uint16(pin))
			states = append(states, now)
		}
	}
	sio.lock.Unlock()

	if err != nil {
		return errors.Wrap(err, "failed to clear chain")
	}
	sio.logger.Info("chain cleared")
	sio.notify(changed, states)
	return nil
}

func (sio *ShiftIO) SetOutputEnabled(state bool) error {
	sio.lock.Lock()
	defer sio.lock.Unlock()

	if !sio.isReady {
		return errors.New("shiftio driver not ready")
	}
	if err := sio.register.SetOutputEnabled(state); err != nil {
		return errors.Wrap(err, "failed to set output enable")
	}
	sio.enabled = state
	return nil
}

func (sio *ShiftIO) Snapshot() (st State, err error) {
	sio.lock.Lock()
	defer sio.lock.Unlock()

	if !sio.isReady {
		err = errors.New("shiftio driver not ready")
		return
	}
	st.Bytes = sio.register.Bytes()
	st.Hex = hex.EncodeToString(st.Bytes)
	st.Outputs = make([]bool, sio.register.Len())
	for pin := range st.Outputs {
		st.Outputs[pin] = sio.logical(pin)
	}
	st.Enabled = sio.enabled
	return
}

func (sio *ShiftIO) GetOutput(pin uint16) (DigitalOutput, error) {
	if int(pin) >= len(sio.outputs) {
		return nil, errors.Errorf("ShiftIO output (pin: %d) not found, chain has %d outputs", pin, len(sio.outputs))
	}
	return sio.outputs[pin], nil
}

func (sio *ShiftIO) GetAllIo() (outputs []uint16) {
	for _, output := range sio.outputs {
		outputs = append(outputs, output.pin)
	}
	return
}

// Close clears the chain and releases the backend.
func (sio *ShiftIO) Close() error {
	sio.lock.Lock()
	defer sio.lock.Unlock()

	if !sio.isReady {
		return nil
	}
	sio.isReady = false

	clearErr := sio.register.Clear()
	closeErr := sio.backend.Close()
	if clearErr != nil {
		return errors.Wrap(clearErr, "failed to clear chain on close")
	}
	return closeErr
}

var _ IoDriver = &ShiftIO{}
