package shiftreg

import (
	"testing"

	"github.com/hubertat/shiftkit/pins"
)

const (
	testData = iota + 2
	testClock
	testLatch
	testClear
	testDataOut
	testOutputEnable
)

type wiring struct {
	clear, dataOut, outputEnable bool
}

var fullWiring = wiring{clear: true, dataOut: true, outputEnable: true}
var minimalWiring = wiring{}

func optionalLine(wired bool, id int) pins.Line {
	if !wired {
		return pins.None
	}
	return pins.Pin(id)
}

func (w wiring) lines() Lines {
	return Lines{
		Data:         pins.Pin(testData),
		Clock:        pins.Pin(testClock),
		Latch:        pins.Pin(testLatch),
		Clear:        optionalLine(w.clear, testClear),
		DataOut:      optionalLine(w.dataOut, testDataOut),
		OutputEnable: optionalLine(w.outputEnable, testOutputEnable),
	}
}

func newChain(bytes int, w wiring) *pins.SimChain {
	lines := w.lines()
	return pins.NewSimChain(bytes, pins.SimWiring{
		Data:         testData,
		Clock:        testClock,
		Latch:        testLatch,
		Clear:        lines.Clear,
		DataOut:      lines.DataOut,
		OutputEnable: lines.OutputEnable,
	})
}

func mustNew(t testing.TB, chain *pins.SimChain, w wiring, opts ...Option) *ShiftRegister {
	t.Helper()

	sr, err := New(chain, w.lines(), opts...)
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}
	return sr
}

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func assertBytes(t testing.TB, got, want []byte) {
	t.Helper()

	if len(got) != len(want) {
		t.Errorf("len(got) = %d len(want) = %d", len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("byte [%d] got: %#02x want: %#02x", i, got[i], want[i])
		}
	}
}

func assertNoErr(t testing.TB, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertUntouched fails when any recorded event used id.
func assertUntouched(t testing.TB, events []pins.Event, id int) {
	t.Helper()

	for _, ev := range events {
		if ev.Op != pins.EventDelay && ev.ID == id {
			t.Errorf("pin %d should not be used, got %s", id, ev)
		}
	}
}
