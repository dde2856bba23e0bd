package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/shiftkit"
	"github.com/hubertat/shiftkit/config"
)

var (
	Version string

	httpAddr = flag.String("http", "", "serve http control on this address (token: mock)")
	step     = flag.Duration("step", 500*time.Millisecond, "pause between demo steps")
)

func intp(v int) *int {
	return &v
}

// Runs a two byte chain on the simulated backend, prints every latched
// change and walks through a short demo. Works anywhere, no GPIO needed.
func main() {
	flag.Parse()
	log.SetLevel(log.DebugLevel)
	log.Info("shiftkit mock started", "version", Version)

	cfg := &config.Config{
		Name: "shiftkit-mock",
		Shift: config.Shift{
			Backend:      "sim",
			Bytes:        2,
			Data:         intp(17),
			Clock:        intp(27),
			Latch:        intp(22),
			OutputEnable: intp(23),
		},
		Outlets: []config.Outlet{
			{Name: "fake pump", Pin: 0},
			{Name: "fake lamp", Pin: 15},
		},
		Http: config.Http{Address: *httpAddr, Token: "mock"},
	}

	sk := shiftkit.New(cfg)
	defer sk.Close()
	fatal := func(msg string, err error) {
		sk.Close()
		log.Fatal(msg, "err", err)
	}

	err := sk.InitDrivers(context.Background())
	if err != nil {
		fatal("driver init failed", err)
	}
	if err = sk.InitOutlets(); err != nil {
		fatal("outlets init failed", err)
	}

	sk.Shift.Sim().MonitorOutputs(os.Stdout)

	for _, ou := range sk.Outlets {
		log.Info("switching on", "outlet", ou.Name)
		ou.SetValue(true)
		sk.PrintIoStatus(os.Stdout)
		time.Sleep(*step)
	}

	log.Info("clearing chain")
	if err = sk.Shift.Clear(); err != nil {
		log.Error("clear failed", "err", err)
	}
	sk.PrintIoStatus(os.Stdout)

	if len(*httpAddr) > 0 {
		if err = sk.StartHttp(); err != nil {
			fatal("failed to start http control", err)
		}
		fatal("http control stopped", <-sk.Http.Err())
	}
}
