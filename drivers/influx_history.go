package drivers

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const influxWriteTimeout = 2 * time.Second

// InfluxHistory records output changes as points in an InfluxDB bucket.
type InfluxHistory struct {
	Host         string
	Organization string
	Bucket       string
	Measurement  string
	Token        string
	DeviceName   string

	client   influxdb2.Client
	writeApi api.WriteAPIBlocking
	logger   *log.Logger
}

func (ih *InfluxHistory) Setup() {
	ih.client = influxdb2.NewClient(ih.Host, ih.Token)
	ih.writeApi = ih.client.WriteAPIBlocking(ih.Organization, ih.Bucket)
	ih.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "InfluxHistory: ",
		Level:  log.GetLevel(),
	})
}

func (ih *InfluxHistory) point(pin uint16, state bool, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		ih.Measurement,
		map[string]string{"device": ih.DeviceName, "pin": strconv.Itoa(int(pin))},
		map[string]interface{}{"state": state},
		ts,
	)
}

func (ih *InfluxHistory) OutputChanged(pin uint16, state bool) {
	if ih.writeApi == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), influxWriteTimeout)
	defer cancel()

	err := ih.writeApi.WritePoint(ctx, ih.point(pin, state, time.Now()))
	if err != nil {
		ih.logger.Error("failed to write output change", "pin", pin, "err", err)
	}
}

func (ih *InfluxHistory) Close() error {
	if ih.client != nil {
		ih.client.Close()
	}
	return nil
}
