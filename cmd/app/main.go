package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit"
	"github.com/hubertat/shiftkit/config"
)

var (
	Version string
	Build   string

	configPath  = flag.String("config", "config.json", "path of the configuration file")
	flagInstall = flag.Bool("install", false, "Install service in os")

	skService = servicemaker.ServiceMaker{
		User:               "shiftkit",
		UserGroups:         []string{"gpio", "i2c"},
		ServicePath:        "/etc/systemd/system/shiftkit.service",
		ServiceDescription: "ShiftKit service: HomeKit/MQTT/HTTP controlled 74HC595 shift register outputs. github.com/hubertat/shiftkit",
		ExecDir:            "/srv/shiftkit",
		ExecName:           "shiftkit",
	}
)

func main() {
	flag.Parse()
	log.Info("shiftkit started", "version", Version, "build", Build)

	if *flagInstall {
		err := skService.InstallService()
		if err != nil {
			log.Fatal("failed to install service", "err", err)
		}
		log.Info("service installed!")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("can't load config, will terminate", "path", *configPath, "err", err)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", cfg.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = run(ctx, shiftkit.New(cfg))
	if err != nil {
		log.Fatal("shiftkit stopped", "err", err)
	}
	log.Info("shutting down")
}

// run returns once ctx is done or HomeKit stops. The chain is cleared and
// released on every return path.
func run(ctx context.Context, sk *shiftkit.ShiftKit) (err error) {
	defer func() {
		if closeErr := sk.Close(); closeErr != nil {
			log.Error("failed to close shiftkit", "err", closeErr)
		}
	}()

	log.Info("will init shift register driver...")
	err = sk.InitDrivers(ctx)
	if err != nil {
		return errors.Wrap(err, "driver init failed")
	}

	log.Info("will init outlets...")
	err = sk.InitOutlets()
	if err != nil {
		return errors.Wrap(err, "outlets init failed")
	}

	if len(sk.MqttBroker) > 0 {
		err = sk.InitMqtt()
		if err != nil {
			log.Error("mqtt not available, we will proceed...", "err", err)
		}
	}

	if sk.Http != nil {
		err = sk.StartHttp()
		if err != nil {
			return errors.Wrap(err, "failed to start http control")
		}
		go func() {
			if httpErr := <-sk.Http.Err(); httpErr != nil {
				log.Error("http control stopped", "err", httpErr)
			}
		}()
	}

	sk.PrintIoStatus(os.Stdout)

	if len(sk.HkPin) == 8 {
		log.Info("Starting with HomeKit server")
		err = sk.StartHomeKit(ctx, Version)
		if err != nil && ctx.Err() == nil {
			return errors.Wrap(err, "HomeKit server stopped")
		}
		return nil
	}

	log.Info("HomeKit not configured, disabled")
	<-ctx.Done()
	return nil
}
