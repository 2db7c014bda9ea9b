package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/config"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/logging"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// ─── Command line ──────────────────────────────────────────────────

func TestParseArgs(t *testing.T) {
	t.Setenv("LIGHTHOUSE_CONFIG", "")

	tests := []struct {
		name     string
		args     []string
		command  string
		config   string
		simulate bool
		wantErr  bool
	}{
		{"no args", nil, cmdServe, defaultConfigPath, false, false},
		{"flags only", []string{"-simulate"}, cmdServe, defaultConfigPath, true, false},
		{"tui with config", []string{"tui", "-config", "/etc/lh.yaml"}, cmdTUI, "/etc/lh.yaml", false, false},
		{"version", []string{"version"}, cmdVersion, defaultConfigPath, false, false},
		{"unknown command", []string{"flash"}, "", "", false, true},
		{"unknown flag", []string{"serve", "-verbose"}, "", "", false, true},
		{"extra args", []string{"serve", "-simulate", "extra"}, "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseArgs(%v) should fail", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if opts.command != tt.command {
				t.Errorf("command = %q, want %q", opts.command, tt.command)
			}
			if opts.configPath != tt.config {
				t.Errorf("configPath = %q, want %q", opts.configPath, tt.config)
			}
			if opts.simulate != tt.simulate {
				t.Errorf("simulate = %v, want %v", opts.simulate, tt.simulate)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LIGHTHOUSE_CONFIG", "")
	if path, explicit := getConfigPath(); path != defaultConfigPath || explicit {
		t.Errorf("getConfigPath() = %q, %v, want %q, false", path, explicit, defaultConfigPath)
	}

	t.Setenv("LIGHTHOUSE_CONFIG", "/custom/path/config.yaml")
	if path, explicit := getConfigPath(); path != "/custom/path/config.yaml" || !explicit {
		t.Errorf("getConfigPath() = %q, %v, want env override", path, explicit)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"version"}, &out); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "lighthouse "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

// ─── Configuration ─────────────────────────────────────────────────

func TestLoadConfig_MissingDefaultFallsBack(t *testing.T) {
	cfg, err := loadConfig(options{configPath: filepath.Join(t.TempDir(), "absent.yaml"), simulate: true})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bluetooth.Backend != config.BackendSimulated {
		t.Errorf("Backend = %q, want simulated", cfg.Bluetooth.Backend)
	}
}

func TestLoadConfig_MissingExplicitFails(t *testing.T) {
	_, err := loadConfig(options{configPath: "/nonexistent/path/config.yaml", explicit: true})
	if err == nil {
		t.Fatal("loadConfig() should fail for an explicit missing file")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("poll:\n  interval: 0\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	err := run(context.Background(), []string{"serve", "-config", path}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "poll.interval") {
		t.Errorf("run() error = %v, want poll.interval validation error", err)
	}
}

func TestSimulatedDevices(t *testing.T) {
	if got := simulatedDevices(nil); len(got) != 2 {
		t.Errorf("simulatedDevices(nil) = %d devices, want defaults", len(got))
	}

	got := simulatedDevices([]config.SimulatedDevice{
		{Address: "AA:BB:CC:DD:EE:01", Name: "LHB-1", State: "standby"},
		{Address: "AA:BB:CC:DD:EE:02", State: ""},
	})
	if len(got) != 2 {
		t.Fatalf("simulatedDevices() = %d devices, want 2", len(got))
	}
	if got[0].State != power.StateStandby || got[0].Name != "LHB-1" {
		t.Errorf("device[0] = %+v", got[0])
	}
	if got[1].State != power.StateSleep {
		t.Errorf("device[1].State = %q, want sleep", got[1].State)
	}
}

func TestEngineOptions(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	opts := engineOptions(cfg, nil, logging.New(config.LoggingConfig{Output: "discard"}, "test"))

	if opts.ScanWindow != 10*time.Second {
		t.Errorf("ScanWindow = %v, want 10s", opts.ScanWindow)
	}
	if opts.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", opts.PollInterval)
	}
	if opts.Service != power.CharacteristicUUID {
		t.Errorf("Service = %v, want power characteristic", opts.Service)
	}
	if opts.Breaker.MaxFailures != 5 || opts.Breaker.OpenTimeout != 10*time.Second {
		t.Errorf("Breaker = %+v", opts.Breaker)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

// TestRun_ServeSimulated starts the service against simulated stations with
// every network integration disabled and shuts it down via the context.
func TestRun_ServeSimulated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bluetooth:
  backend: simulated
scan:
  timeout: 200
poll:
  interval: 20
database:
  enabled: true
  path: "` + filepath.Join(dir, "lighthouse.db") + `"
mqtt:
  enabled: false
influxdb:
  enabled: false
api:
  enabled: false
schedules:
  - name: nightly
    cron: "0 23 * * *"
    state: sleep
logging:
  level: error
  output: discard
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"serve", "-config", path}, &bytes.Buffer{}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}

	if _, err := os.Stat(filepath.Join(dir, "lighthouse.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
