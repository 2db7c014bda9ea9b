package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bluetooth:
  backend: simulated
scan:
  timeout: 8000
poll:
  interval: 250
commands:
  queue_size: 32
simulation:
  devices:
    - address: "C4:2B:0A:00:00:01"
      name: "LHB-1"
      state: standby
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
  qos: 1
schedules:
  - name: nightly
    cron: "0 23 * * *"
    state: sleep
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bluetooth.Backend != BackendSimulated {
		t.Errorf("Bluetooth.Backend = %q, want %q", cfg.Bluetooth.Backend, BackendSimulated)
	}
	if cfg.GetScanTimeout() != 8*time.Second {
		t.Errorf("GetScanTimeout() = %v, want 8s", cfg.GetScanTimeout())
	}
	if cfg.GetPollInterval() != 250*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want 250ms", cfg.GetPollInterval())
	}
	if cfg.Commands.QueueSize != 32 {
		t.Errorf("Commands.QueueSize = %d, want 32", cfg.Commands.QueueSize)
	}
	if len(cfg.Simulation.Devices) != 1 || cfg.Simulation.Devices[0].State != "standby" {
		t.Errorf("Simulation.Devices = %+v", cfg.Simulation.Devices)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Name != "nightly" {
		t.Errorf("Schedules = %+v", cfg.Schedules)
	}
	// Unset keys keep their defaults.
	if cfg.Poll.Concurrency != 4 {
		t.Errorf("Poll.Concurrency = %d, want default 4", cfg.Poll.Concurrency)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
bluetooth:
  backend: usb
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for unknown backend, got nil")
	}
	if !strings.Contains(err.Error(), "bluetooth.backend") {
		t.Errorf("Load() error = %v, want mention of bluetooth.backend", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Bluetooth.Backend = "serial" },
			wantErr: "bluetooth.backend",
		},
		{
			name:    "bad characteristic uuid",
			mutate:  func(c *Config) { c.Bluetooth.CharacteristicUUID = "power" },
			wantErr: "characteristic_uuid",
		},
		{
			name:    "zero scan timeout",
			mutate:  func(c *Config) { c.Scan.Timeout = 0 },
			wantErr: "scan.timeout",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Poll.Interval = 0 },
			wantErr: "poll.interval",
		},
		{
			name:    "zero queue",
			mutate:  func(c *Config) { c.Commands.QueueSize = 0 },
			wantErr: "commands.queue_size",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "database disabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "simulated device without address",
			mutate: func(c *Config) {
				c.Simulation.Devices = []SimulatedDevice{{Name: "x"}}
			},
			wantErr: "simulation.devices[0].address",
		},
		{
			name: "simulated device bad state",
			mutate: func(c *Config) {
				c.Simulation.Devices = []SimulatedDevice{{Address: "AA", State: "starting"}}
			},
			wantErr: "simulation.devices[0].state",
		},
		{
			name: "bad cron",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Name: "x", Cron: "every night", State: "sleep"}}
			},
			wantErr: "schedules[0].cron",
		},
		{
			name: "bad schedule state",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleConfig{{Name: "x", Cron: "@daily", State: "unknown"}}
			},
			wantErr: "schedules[0].state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Scan.Timeout = 0
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	if !strings.Contains(err.Error(), "scan.timeout") || !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("Validate() error = %v, want both problems listed", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Scan:     ScanConfig{Timeout: 10000, CallTimeout: 1500},
		Poll:     PollConfig{Interval: 500, ReadTimeout: 2000, Breaker: BreakerConfig{OpenTimeout: 10}},
		Commands: CommandsConfig{WriteTimeout: 3000},
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"GetScanTimeout", cfg.GetScanTimeout(), 10 * time.Second},
		{"GetScanCallTimeout", cfg.GetScanCallTimeout(), 1500 * time.Millisecond},
		{"GetPollInterval", cfg.GetPollInterval(), 500 * time.Millisecond},
		{"GetReadTimeout", cfg.GetReadTimeout(), 2 * time.Second},
		{"GetBreakerOpenTimeout", cfg.GetBreakerOpenTimeout(), 10 * time.Second},
		{"GetWriteTimeout", cfg.GetWriteTimeout(), 3 * time.Second},
		{"GetAPIReadTimeout", cfg.GetAPIReadTimeout(), 30 * time.Second},
		{"GetAPIWriteTimeout", cfg.GetAPIWriteTimeout(), 45 * time.Second},
		{"GetAPIIdleTimeout", cfg.GetAPIIdleTimeout(), 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestConfig_CharacteristicUUID(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.CharacteristicUUID(); got != power.CharacteristicUUID {
		t.Errorf("CharacteristicUUID() = %v, want %v", got, power.CharacteristicUUID)
	}

	cfg.Bluetooth.CharacteristicUUID = "garbage"
	if got := cfg.CharacteristicUUID(); got != power.CharacteristicUUID {
		t.Errorf("CharacteristicUUID() fallback = %v, want %v", got, power.CharacteristicUUID)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("LIGHTHOUSE_BLUETOOTH_BACKEND", "simulated")
	t.Setenv("LIGHTHOUSE_BLUETOOTH_ADAPTER", "hci1")
	t.Setenv("LIGHTHOUSE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("LIGHTHOUSE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LIGHTHOUSE_MQTT_USERNAME", "testuser")
	t.Setenv("LIGHTHOUSE_MQTT_PASSWORD", "testpass")
	t.Setenv("LIGHTHOUSE_API_HOST", "192.168.1.1")
	t.Setenv("LIGHTHOUSE_API_PORT", "9000")
	t.Setenv("LIGHTHOUSE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("LIGHTHOUSE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Bluetooth.Backend", cfg.Bluetooth.Backend, "simulated"},
		{"Bluetooth.Adapter", cfg.Bluetooth.Adapter, "hci1"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9000},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("LIGHTHOUSE_API_PORT", "eighty")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want default 8420", cfg.API.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if cfg.Bluetooth.Backend != BackendBlueZ {
		t.Errorf("Bluetooth.Backend = %q, want %q", cfg.Bluetooth.Backend, BackendBlueZ)
	}
	if cfg.Scan.Timeout != 10000 {
		t.Errorf("Scan.Timeout = %d, want 10000", cfg.Scan.Timeout)
	}
	if cfg.Poll.Interval != 500 {
		t.Errorf("Poll.Interval = %d, want 500", cfg.Poll.Interval)
	}
	if cfg.Commands.QueueSize != 16 {
		t.Errorf("Commands.QueueSize = %d, want 16", cfg.Commands.QueueSize)
	}
	if !cfg.Scan.OnStartup {
		t.Error("Scan.OnStartup = false, want true")
	}
}
