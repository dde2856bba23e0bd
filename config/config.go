// Package config loads the shiftkit configuration file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "SHIFTKIT"

type Config struct {
	Name    string   `mapstructure:"name"`
	Log     Log      `mapstructure:"log"`
	Shift   Shift    `mapstructure:"shift"`
	Outlets []Outlet `mapstructure:"outlets"`
	HomeKit HomeKit  `mapstructure:"homekit"`
	Mqtt    Mqtt     `mapstructure:"mqtt"`
	Http    Http     `mapstructure:"http"`
	Influx  Influx   `mapstructure:"influx"`
}

type Log struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Shift describes the chain and how its lines are wired. Pin numbers are in
// the backend's own numbering (BCM for gpio, 0-15 for mcp23017). Optional
// lines are left out when not connected.
type Shift struct {
	Backend string `mapstructure:"backend"` // gpio, mcp23017, sim
	Bytes   int    `mapstructure:"bytes"`

	Data         *int `mapstructure:"data"`
	Clock        *int `mapstructure:"clock"`
	Latch        *int `mapstructure:"latch"`
	Clear        *int `mapstructure:"clear"`
	DataOut      *int `mapstructure:"data_out"`
	OutputEnable *int `mapstructure:"output_enable"`

	BusNo         uint8 `mapstructure:"bus_no"`
	DevNo         uint8 `mapstructure:"dev_no"`
	InvertOutputs bool  `mapstructure:"invert_outputs"`
}

type Outlet struct {
	Name           string `mapstructure:"name"`
	Pin            uint16 `mapstructure:"pin"`
	DisableHomekit bool   `mapstructure:"disable_homekit"`
}

type HomeKit struct {
	Pin       string `mapstructure:"pin"`
	Directory string `mapstructure:"directory"`
	Address   string `mapstructure:"address"`
	Debug     bool   `mapstructure:"debug"`
}

type Mqtt struct {
	Broker string `mapstructure:"broker"`
	Prefix string `mapstructure:"prefix"`
}

type Http struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

type Influx struct {
	Host         string `mapstructure:"host"`
	Token        string `mapstructure:"token"`
	Organization string `mapstructure:"organization"`
	Bucket       string `mapstructure:"bucket"`
	Measurement  string `mapstructure:"measurement"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "shiftkit")
	v.SetDefault("log.level", "info")
	v.SetDefault("shift.backend", "gpio")
	v.SetDefault("shift.bytes", 1)
	v.SetDefault("homekit.directory", "./homekit")
	v.SetDefault("influx.measurement", "shift_outputs")
}

// Load reads the file at path (format picked by extension). Any key can be
// overridden from the environment, e.g. SHIFTKIT_HTTP_TOKEN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Shift.Backend = strings.ToLower(c.Shift.Backend)
	switch c.Shift.Backend {
	case "gpio", "mcp23017", "sim":
	default:
		return errors.Errorf("unknown shift backend %q", c.Shift.Backend)
	}

	if c.Shift.Bytes < 1 {
		return errors.Errorf("shift.bytes must be at least 1, got %d", c.Shift.Bytes)
	}

	outputs := c.Shift.Bytes * 8
	seen := map[string]bool{}
	for _, o := range c.Outlets {
		if int(o.Pin) >= outputs {
			return errors.Errorf("outlet %q pin %d out of range (chain has %d outputs)", o.Name, o.Pin, outputs)
		}
		if seen[o.Name] {
			return errors.Errorf("duplicate outlet name %q", o.Name)
		}
		seen[o.Name] = true
	}

	if len(c.HomeKit.Pin) > 0 && len(c.HomeKit.Pin) != 8 {
		return errors.Errorf("homekit pin must have 8 digits")
	}

	return nil
}
