package shiftkit

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	dnslog "github.com/brutella/dnssd/log"
	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit/config"
	"github.com/hubertat/shiftkit/drivers"
	"github.com/hubertat/shiftkit/mqtt"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "shiftkit"
const homeKitBridgeAuthor = "github.com/hubertat"

// ShiftKit wires a shift register chain to HomeKit, MQTT and HTTP.
type ShiftKit struct {
	Name string

	Outlets []*Outlet

	HkPin       string
	HkDirectory string
	HkAddress   string
	HkDebug     bool

	MqttBroker string
	MqttPrefix string

	Shift  *drivers.ShiftIO
	Http   *drivers.HttpControl
	Influx *drivers.InfluxHistory

	mqttClient *mqtt.MqttClient
	logger     *log.Logger
}

func New(cfg *config.Config) *ShiftKit {
	sk := &ShiftKit{
		Name:        cfg.Name,
		HkPin:       cfg.HomeKit.Pin,
		HkDirectory: cfg.HomeKit.Directory,
		HkAddress:   cfg.HomeKit.Address,
		HkDebug:     cfg.HomeKit.Debug,
		MqttBroker:  cfg.Mqtt.Broker,
		MqttPrefix:  cfg.Mqtt.Prefix,
		Shift:       drivers.NewShiftIO(cfg.Shift),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "ShiftKit: ",
			Level:  log.GetLevel(),
		}),
	}

	for _, o := range cfg.Outlets {
		sk.Outlets = append(sk.Outlets, &Outlet{Name: o.Name, OutPin: o.Pin, DisableHomekit: o.DisableHomekit})
	}

	if len(cfg.Http.Address) > 0 {
		sk.Http = drivers.NewHttpControl(sk.Shift, cfg.Http.Address, cfg.Http.Token)
	}

	if len(cfg.Influx.Host) > 0 {
		sk.Influx = &drivers.InfluxHistory{
			Host:         cfg.Influx.Host,
			Token:        cfg.Influx.Token,
			Organization: cfg.Influx.Organization,
			Bucket:       cfg.Influx.Bucket,
			Measurement:  cfg.Influx.Measurement,
			DeviceName:   cfg.Name,
		}
	}

	return sk
}

func (sk *ShiftKit) InitDrivers(ctx context.Context) error {
	if sk.Shift == nil {
		return errors.New("shift driver not configured")
	}

	err := sk.Shift.Setup(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s driver", sk.Shift)
	}

	if sk.Influx != nil {
		sk.Influx.Setup()
		sk.Shift.Subscribe(sk.Influx)
	}

	return nil
}

func (sk *ShiftKit) InitOutlets() error {
	used := map[uint16]string{}
	for _, ou := range sk.Outlets {
		if other, taken := used[ou.OutPin]; taken {
			return errors.Errorf("outlets %s and %s share pin %d", other, ou.Name, ou.OutPin)
		}
		used[ou.OutPin] = ou.Name

		err := ou.Init(sk.Shift)
		if err != nil {
			return errors.Wrapf(err, "failed to init outlet")
		}
		sk.Shift.Subscribe(ou)
	}

	return nil
}

func (sk *ShiftKit) GetHkAccessories(firmwareVersion string) (acc []*accessory.A) {
	acc = []*accessory.A{}

	for _, ou := range sk.Outlets {
		a := ou.GetHk()
		if a != nil {
			if a.Info != nil && a.Info.FirmwareRevision != nil {
				a.Info.FirmwareRevision.SetValue(firmwareVersion)
			}
			a.Id = ou.GetUniqueId()
			acc = append(acc, a)
		}
	}

	return
}

func (sk *ShiftKit) StartHttp() error {
	if sk.Http == nil {
		return errors.New("http control not configured")
	}
	return sk.Http.Start()
}

func (sk *ShiftKit) InitMqtt() (err error) {
	if len(sk.MqttBroker) == 0 {
		err = errors.New("mqtt broker not set")
		return
	}

	mc, err := mqtt.NewMqttClient(sk.MqttBroker, sk.Name)
	if err != nil {
		err = errors.Wrap(err, "failed to create mqtt client")
		return
	}

	sk.mqttClient = mc

	err = mc.Connect(sk.Shift.SetMqtt(mc, sk.MqttPrefix))
	if err != nil {
		err = errors.Wrap(err, "failed to connect to mqtt broker")
	}

	return
}

func (sk *ShiftKit) Close() (err error) {
	ctx := context.Background()

	if sk.Http != nil {
		if httpErr := sk.Http.Close(ctx); httpErr != nil {
			sk.logger.Error("failed to stop http control", "err", httpErr)
		}
	}
	if sk.mqttClient != nil {
		if mqttErr := sk.mqttClient.Disconnect(ctx); mqttErr != nil {
			sk.logger.Error("failed to disconnect mqtt", "err", mqttErr)
		}
	}
	if sk.Influx != nil {
		sk.Influx.Close()
	}
	if sk.Shift != nil {
		err = sk.Shift.Close()
	}

	return
}

func (sk *ShiftKit) PrintIoStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== shift register ===")
	state, err := sk.Shift.Snapshot()
	if err != nil {
		fmt.Fprintf(writer, "| not ready: %v\n", err)
		fmt.Fprintln(writer, "-----------------------------")
		return
	}
	fmt.Fprintf(writer, "| driver: %s, backend: %s\n", sk.Shift, sk.Shift.Config.Backend)
	fmt.Fprintf(writer, "| bytes: %d, outputs enabled: %v\n", len(state.Bytes), state.Enabled)
	fmt.Fprintf(writer, "| state: %s\n", state.Hex)
	fmt.Fprintln(writer, "| outlets:")
	for _, ou := range sk.Outlets {
		fmt.Fprintf(writer, "|   %02d %s: %v\n", ou.OutPin, ou.Name, state.Outputs[ou.OutPin])
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}

func (sk *ShiftKit) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	hkName := sk.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
		Firmware:     firmwareVersion,
	})

	var store hap.Store
	if len(sk.HkDirectory) > 1 {
		store = hap.NewFsStore(sk.HkDirectory)
	} else {
		store = hap.NewFsStore(defaultHomeKitDirectory)
	}
	hkServer, err := hap.NewServer(store, bridge.A, sk.GetHkAccessories(firmwareVersion)...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = sk.HkPin
	if len(sk.HkAddress) > 0 {
		hkServer.Addr = sk.HkAddress
	}

	if sk.HkDebug {
		hklog.Debug.Enable()
		dnslog.Debug.Enable()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return hkServer.ListenAndServe(ctx)
}
