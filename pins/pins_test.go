package pins

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestLine(t *testing.T) {
	assertBools(t, None.Present(), false)
	assertBools(t, Pin(0).Present(), true)

	if Pin(17).ID() != 17 {
		t.Errorf("got id %d want 17", Pin(17).ID())
	}

	id := 4
	assertBools(t, Optional(&id).Present(), true)
	assertBools(t, Optional(nil).Present(), false)

	if None.String() != "none" || Pin(3).String() != "3" {
		t.Errorf("got %s and %s", None, Pin(3))
	}
}

func TestBusyWait(t *testing.T) {
	start := time.Now()
	BusyWait(200)
	if elapsed := time.Since(start); elapsed < 200*time.Microsecond {
		t.Errorf("returned after %v", elapsed)
	}

	BusyWait(0)
	BusyWait(-5)
}

func newTestChain(bytes int) *SimChain {
	return NewSimChain(bytes, SimWiring{
		Data:         1,
		Clock:        2,
		Latch:        3,
		Clear:        Pin(4),
		DataOut:      Pin(5),
		OutputEnable: Pin(6),
	})
}

func configureAll(t testing.TB, sc *SimChain) {
	t.Helper()

	for _, id := range []int{1, 2, 3, 4, 6} {
		if err := sc.ConfigureDirection(id, Output); err != nil {
			t.Fatalf("configure %d: %v", id, err)
		}
	}
	if err := sc.ConfigureDirection(5, Input); err != nil {
		t.Fatalf("configure 5: %v", err)
	}
	sc.SetLevel(4, High)
}

func clockIn(sc *SimChain, bit bool) {
	sc.SetLevel(1, Level(bit))
	sc.SetLevel(2, High)
	sc.SetLevel(2, Low)
}

func TestSimChainShiftAndLatch(t *testing.T) {
	sc := newTestChain(2)
	configureAll(t, sc)

	clockIn(sc, true)
	clockIn(sc, false)
	clockIn(sc, true)

	if got := sc.StageBytes(); got[0] != 0x05 || got[1] != 0 {
		t.Errorf("got stages % x want 05 00", got)
	}
	if got := sc.OutputBytes(); got[0] != 0 {
		t.Errorf("outputs changed before latch: % x", got)
	}

	sc.SetLevel(3, High)
	sc.SetLevel(3, Low)
	if got := sc.OutputBytes(); got[0] != 0x05 {
		t.Errorf("got outputs % x want 05", got)
	}
}

func TestSimChainDataOut(t *testing.T) {
	sc := newTestChain(1)
	configureAll(t, sc)

	clockIn(sc, true)
	level, _ := sc.GetLevel(5)
	assertBools(t, bool(level), false)

	for i := 0; i < 7; i++ {
		clockIn(sc, false)
	}
	level, _ = sc.GetLevel(5)
	assertBools(t, bool(level), true)
}

func TestSimChainClear(t *testing.T) {
	sc := newTestChain(1)
	configureAll(t, sc)
	sc.Preload(0xFF)

	sc.SetLevel(4, Low)
	clockIn(sc, true)
	if got := sc.StageBytes(); got[0] != 0 {
		t.Errorf("got stages % x while clear held low", got)
	}
	sc.SetLevel(4, High)

	if got := sc.OutputBytes(); got[0] != 0xFF {
		t.Errorf("clear should not touch latched outputs, got % x", got)
	}
}

func TestSimChainRejectsMisuse(t *testing.T) {
	sc := newTestChain(1)

	if err := sc.SetLevel(1, High); err == nil {
		t.Error("got nil error driving an unconfigured pin")
	}
	if err := sc.ConfigureDirection(9, Output); err == nil {
		t.Error("got nil error configuring an unwired pin")
	}
	if _, err := sc.GetLevel(5); err == nil {
		t.Error("got nil error reading an unconfigured pin")
	}
	sc.ConfigureDirection(5, Input)
	if err := sc.SetLevel(5, High); err == nil {
		t.Error("got nil error driving an input")
	}
}

func TestSimChainOutputEnable(t *testing.T) {
	sc := newTestChain(1)
	configureAll(t, sc)

	sc.SetLevel(6, Low)
	assertBools(t, sc.OutputsEnabled(), true)
	sc.SetLevel(6, High)
	assertBools(t, sc.OutputsEnabled(), false)

	noOE := NewSimChain(1, SimWiring{Data: 1, Clock: 2, Latch: 3})
	assertBools(t, noOE.OutputsEnabled(), true)
}

func TestSimChainMonitorAndEvents(t *testing.T) {
	sc := newTestChain(1)
	configureAll(t, sc)
	buf := &bytes.Buffer{}
	sc.MonitorOutputs(buf)
	sc.ResetEvents()

	clockIn(sc, true)
	sc.DelayMicroseconds(5)
	sc.SetLevel(3, High)
	sc.SetLevel(3, Low)

	if got := buf.String(); got != "[output 0] state changed to true\n" {
		t.Errorf("got monitor output %q", got)
	}

	events := sc.Events()
	if len(events) != 6 {
		t.Fatalf("got %d events want 6: %v", len(events), events)
	}
	if events[3].Op != EventDelay || events[3].Micros != 5 {
		t.Errorf("got %s want delay(5us)", events[3])
	}
	if !strings.HasPrefix(events[0].String(), "set(1, high)") {
		t.Errorf("got %s", events[0])
	}
}

func TestBackendPinRange(t *testing.T) {
	gp := &GpioDriver{isOpen: true}
	if err := gp.ConfigureDirection(256, Output); !errors.Is(err, ErrPinOutOfRange) {
		t.Errorf("gpio: got err %v want ErrPinOutOfRange", err)
	}
	if err := gp.SetLevel(-1, High); !errors.Is(err, ErrPinOutOfRange) {
		t.Errorf("gpio: got err %v want ErrPinOutOfRange", err)
	}

	closed := &McpDriver{}
	if err := closed.SetLevel(3, High); err == nil {
		t.Error("mcp23017: got nil error before Open")
	}
}
