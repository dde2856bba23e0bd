package shiftkit

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hubertat/shiftkit/config"
)

func intp(v int) *int {
	return &v
}

func simKit(t testing.TB, outlets ...config.Outlet) *ShiftKit {
	t.Helper()

	cfg := &config.Config{
		Name: "test",
		Shift: config.Shift{
			Backend: "sim",
			Bytes:   2,
			Data:    intp(0),
			Clock:   intp(1),
			Latch:   intp(2),
			Clear:   intp(3),
		},
		Outlets: outlets,
	}
	sk := New(cfg)
	if err := sk.InitDrivers(context.Background()); err != nil {
		t.Fatalf("InitDrivers returned err: %v", err)
	}
	return sk
}

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestOutlets(t *testing.T) {
	sk := simKit(t,
		config.Outlet{Name: "pump", Pin: 3},
		config.Outlet{Name: "lamp", Pin: 12, DisableHomekit: true},
	)
	if err := sk.InitOutlets(); err != nil {
		t.Fatalf("InitOutlets returned err: %v", err)
	}

	pump, lamp := sk.Outlets[0], sk.Outlets[1]
	pump.SetValue(true)
	lamp.Toggle()

	sim := sk.Shift.Sim()
	got := sim.OutputBytes()
	if got[0] != 0x08 || got[1] != 0x10 {
		t.Errorf("got outputs % x want 08 10", got)
	}
	assertBools(t, pump.GetState(), true)
	assertBools(t, pump.IsFaulty, false)

	out, _ := sk.Shift.GetOutput(3)
	out.Set(false)
	assertBools(t, pump.hk.Outlet.On.Value(), false)

	accessories := sk.GetHkAccessories("1.0")
	if len(accessories) != 1 {
		t.Fatalf("got %d accessories want 1", len(accessories))
	}
	if accessories[0].Id != pump.GetUniqueId() {
		t.Error("accessory id not taken from outlet")
	}
}

func TestOutletsSharingPin(t *testing.T) {
	sk := simKit(t,
		config.Outlet{Name: "a", Pin: 1},
		config.Outlet{Name: "b", Pin: 1},
	)
	if err := sk.InitOutlets(); err == nil {
		t.Error("got nil error for outlets sharing a pin")
	}
}

func TestOutletInitOutOfRange(t *testing.T) {
	sk := simKit(t, config.Outlet{Name: "far", Pin: 16})
	if err := sk.InitOutlets(); err == nil {
		t.Error("got nil error for outlet past the chain")
	}
}

func TestPrintIoStatus(t *testing.T) {
	sk := simKit(t, config.Outlet{Name: "pump", Pin: 3})
	if err := sk.InitOutlets(); err != nil {
		t.Fatalf("InitOutlets returned err: %v", err)
	}
	sk.Outlets[0].SetValue(true)

	buf := &bytes.Buffer{}
	sk.PrintIoStatus(buf)

	for _, want := range []string{"backend: sim", "state: 0800", "03 pump: true"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status missing %q:\n%s", want, buf.String())
		}
	}
}

func TestCloseClearsChain(t *testing.T) {
	sk := simKit(t, config.Outlet{Name: "pump", Pin: 3})
	sk.InitOutlets()
	sk.Outlets[0].SetValue(true)
	sim := sk.Shift.Sim()

	if err := sk.Close(); err != nil {
		t.Fatalf("Close returned err: %v", err)
	}
	got := sim.OutputBytes()
	if got[0] != 0 || got[1] != 0 {
		t.Errorf("got outputs % x after Close", got)
	}
}

func TestInitMqttWithoutBroker(t *testing.T) {
	sk := simKit(t)
	if err := sk.InitMqtt(); err == nil {
		t.Error("got nil error without broker")
	}
	if err := sk.StartHttp(); err == nil {
		t.Error("got nil error without http config")
	}
}
