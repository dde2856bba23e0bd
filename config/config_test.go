package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed writing config: %v", err)
	}
	return path
}

func assertInts(t testing.TB, got, want int) {
	t.Helper()

	if got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func assertStrings(t testing.TB, got, want string) {
	t.Helper()

	if got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestLoadJson(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"name": "garden",
		"shift": {"backend": "GPIO", "bytes": 2, "data": 17, "clock": 27, "latch": 22, "output_enable": 23},
		"outlets": [{"name": "pump", "pin": 3}, {"name": "lamp", "pin": 15, "disable_homekit": true}],
		"http": {"address": ":8080", "token": "secret"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned err: %v", err)
	}

	assertStrings(t, cfg.Name, "garden")
	assertStrings(t, cfg.Shift.Backend, "gpio")
	assertInts(t, cfg.Shift.Bytes, 2)
	assertInts(t, *cfg.Shift.Data, 17)
	assertInts(t, *cfg.Shift.Clock, 27)
	assertInts(t, *cfg.Shift.Latch, 22)
	assertInts(t, *cfg.Shift.OutputEnable, 23)
	if cfg.Shift.Clear != nil || cfg.Shift.DataOut != nil {
		t.Error("unset optional lines should stay nil")
	}
	assertInts(t, len(cfg.Outlets), 2)
	if !cfg.Outlets[1].DisableHomekit {
		t.Error("disable_homekit not decoded")
	}
	assertStrings(t, cfg.Http.Token, "secret")
	assertStrings(t, cfg.Log.Level, "info")
	assertStrings(t, cfg.Influx.Measurement, "shift_outputs")
}

func TestLoadYamlWithEnv(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
shift:
  backend: sim
  data: 0
  clock: 1
  latch: 2
  clear: 3
http:
  token: from-file
`)
	t.Setenv("SHIFTKIT_HTTP_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned err: %v", err)
	}

	assertInts(t, cfg.Shift.Bytes, 1)
	assertInts(t, *cfg.Shift.Data, 0)
	assertInts(t, *cfg.Shift.Clear, 3)
	assertStrings(t, cfg.Http.Token, "from-env")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Error("got nil error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Shift: Shift{Backend: "sim", Bytes: 1}}
	}

	cases := map[string]func(c *Config){
		"backend":      func(c *Config) { c.Shift.Backend = "spi" },
		"bytes":        func(c *Config) { c.Shift.Bytes = 0 },
		"outlet range": func(c *Config) { c.Outlets = []Outlet{{Name: "a", Pin: 8}} },
		"outlet names": func(c *Config) { c.Outlets = []Outlet{{Name: "a", Pin: 1}, {Name: "a", Pin: 2}} },
		"homekit pin":  func(c *Config) { c.HomeKit.Pin = "1234" },
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			breakIt(&c)
			if err := c.Validate(); err == nil {
				t.Error("got nil error")
			}
		})
	}
}
