//go:build tinygo

package main

import (
	"time"

	"github.com/hubertat/shiftkit/pins"
	"github.com/hubertat/shiftkit/shiftreg"
)

const chainBytes = 2

// Knight rider on a two register chain wired to GP2 (SER), GP3 (SRCLK),
// GP4 (RCLK) and GP5 (SRCLR).
func main() {
	reg, err := shiftreg.NewStateBased(&pins.MachineDriver{}, shiftreg.Lines{
		Data:  pins.Pin(2),
		Clock: pins.Pin(3),
		Latch: pins.Pin(4),
		Clear: pins.Pin(5),
	}, chainBytes)
	if err != nil {
		println("setup failed:", err.Error())
		panic(err)
	}

	println("setup OK!")

	pin, dir := 0, 1
	for {
		reg.Write(pin, true)
		time.Sleep(80 * time.Millisecond)
		reg.Write(pin, false)

		if pin+dir < 0 || pin+dir >= reg.Len() {
			dir = -dir
		}
		pin += dir
	}
}
