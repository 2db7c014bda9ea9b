// Lighthouse - SteamVR base station power control
//
// This is the main entry point for the lighthouse service. It discovers
// Valve base stations over Bluetooth LE, keeps their power state in sync
// and exposes power control through:
//   - a terminal UI (lighthouse tui)
//   - an HTTP/WebSocket API
//   - MQTT command and state topics
//   - cron power schedules
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/urholaukkarinen/steamvr-lighthouse-control/migrations"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/api"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/audit"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/automation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/bluetooth/bluez"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/bluetooth/simulated"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/bridges/mqttbridge"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/config"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/database"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/influxdb"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/logging"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/mdns"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/mqtt"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/tui"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Subcommands.
const (
	cmdServe   = "serve"
	cmdTUI     = "tui"
	cmdVersion = "version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	command    string
	configPath string
	explicit   bool // config path came from a flag or LIGHTHOUSE_CONFIG
	simulate   bool
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: command line arguments without the program name
//   - stdout: destination for version output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	if opts.command == cmdVersion {
		fmt.Fprintf(stdout, "lighthouse %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Log lines would tear the rendered table.
	if opts.command == cmdTUI && cfg.Logging.Output != "stderr" {
		cfg.Logging.Output = "discard"
	}

	return runApp(ctx, opts.command, cfg)
}

// parseArgs splits the optional subcommand from its flags. Flags without a
// subcommand run the service.
func parseArgs(args []string) (options, error) {
	opts := options{command: cmdServe}
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.command = args[0]
		args = args[1:]
	}

	switch opts.command {
	case cmdServe, cmdTUI, cmdVersion:
	default:
		return opts, fmt.Errorf("unknown command %q (want serve, tui or version)", opts.command)
	}

	flags := flag.NewFlagSet(opts.command, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml (default $LIGHTHOUSE_CONFIG or "+defaultConfigPath+")")
	flags.BoolVar(&opts.simulate, "simulate", false, "use simulated base stations instead of BlueZ")
	if err := flags.Parse(args); err != nil {
		return opts, fmt.Errorf("parsing flags: %w", err)
	}
	if flags.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}

	if opts.configPath != "" {
		opts.explicit = true
	} else {
		opts.configPath, opts.explicit = getConfigPath()
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses LIGHTHOUSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() (string, bool) {
	if path := os.Getenv("LIGHTHOUSE_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing file that was asked for is an error.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if opts.explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if cfg, err = config.Default(); err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
	}

	if opts.simulate {
		cfg.Bluetooth.Backend = config.BackendSimulated
	}
	return cfg, nil
}

// runApp starts the engine and every enabled integration, then either waits
// for the shutdown signal or runs the terminal UI.
func runApp(ctx context.Context, command string, cfg *config.Config) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.New(cfg.Logging, version)
	log.Info("starting lighthouse",
		"version", version,
		"commit", commit,
		"build_date", date,
		"mode", command,
		"backend", cfg.Bluetooth.Backend,
	)

	adapter, err := openAdapter(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening bluetooth adapter: %w", err)
	}
	defer func() {
		log.Info("closing bluetooth adapter")
		if closeErr := adapter.Close(); closeErr != nil {
			log.Error("error closing bluetooth adapter", "error", closeErr)
		}
	}()

	engine, err := basestation.New(engineOptions(cfg, adapter, log))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	checks := make(map[string]api.HealthChecker)
	var (
		auditRepo audit.Repository
		dbStats   api.DBStatsProvider
		mqttState api.ConnectionReporter
	)

	// Open database (optional)
	if cfg.Database.Enabled {
		db, dbErr := database.Open(database.ConfigFrom(cfg.Database))
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		retention := time.Duration(cfg.Database.AuditRetentionDays) * 24 * time.Hour
		recorder := audit.NewRecorder(repo, retention, log)
		engine.AddObserver(recorder)
		go recorder.Run(ctx)

		auditRepo = repo
		dbStats = db
		checks["database"] = db
	} else {
		log.Info("database disabled, command log unavailable")
	}

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, bridgeErr := mqttbridge.New(mqttbridge.Options{
			Client: mqttClient,
			Engine: engine,
			Topics: mqttClient.Topics(),
			QoS:    mqttClient.QoS(),
			Logger: log,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
		engine.AddObserver(bridge)

		mqttState = mqttClient
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		engine.AddObserver(influxdb.NewRecorder(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the engine. Deferred Stop runs before the integrations above
	// are closed so the last notifications still reach them.
	if startErr := engine.Start(ctx); startErr != nil {
		return fmt.Errorf("starting engine: %w", startErr)
	}
	defer func() {
		log.Info("stopping engine")
		engine.Stop()
	}()

	// Power schedules
	schedules, err := automation.FromConfig(cfg.Schedules)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}
	scheduler, err := automation.NewScheduler(engine, schedules, log)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if startErr := scheduler.Start(ctx); startErr != nil {
		return fmt.Errorf("starting scheduler: %w", startErr)
	}
	defer func() {
		log.Info("stopping scheduler")
		scheduler.Stop()
	}()
	log.Info("scheduler started", "schedules", len(schedules))

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Engine:   engine,
			Audit:    auditRepo,
			Checks:   checks,
			DB:       dbStats,
			MQTT:     mqttState,
			Schedule: scheduler,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		engine.AddObserver(server)
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()

		// mDNS advertisement of the API (optional)
		if cfg.Discovery.MDNS.Enabled {
			advertiser := mdns.New(cfg.Discovery.MDNS, cfg.API.Port, version, log)
			if adErr := advertiser.Start(); adErr != nil {
				log.Warn("mDNS advertisement failed, API still reachable directly", "error", adErr)
			} else {
				defer func() {
					log.Info("withdrawing mDNS advertisement")
					advertiser.Close()
				}()
			}
		}
	} else {
		log.Info("HTTP API disabled")
	}

	if command == cmdTUI {
		if tuiErr := tui.Run(ctx, engine, engine.AddObserver); tuiErr != nil {
			return tuiErr
		}
		log.Info("terminal UI closed, cleaning up")
	} else {
		log.Info("initialisation complete, waiting for shutdown signal")
		<-ctx.Done()
		log.Info("shutdown signal received, cleaning up")
	}

	// Deferred calls run in reverse order: mDNS, API, scheduler, engine,
	// InfluxDB, MQTT bridge, MQTT, database, adapter.
	log.Info("lighthouse stopped")
	return nil
}

// closableAdapter is a basestation.Adapter that owns a resource.
type closableAdapter interface {
	basestation.Adapter
	io.Closer
}

// openAdapter returns the configured Bluetooth backend.
func openAdapter(ctx context.Context, cfg *config.Config, log *logging.Logger) (closableAdapter, error) {
	switch cfg.Bluetooth.Backend {
	case config.BackendSimulated:
		devices := simulatedDevices(cfg.Simulation.Devices)
		log.Info("using simulated base stations", "devices", len(devices))
		return simulated.New(simulated.Config{
			Devices:       devices,
			StartupDelay:  cfg.GetStartupDelay(),
			FailDiscovery: cfg.Simulation.FailScan,
		}), nil
	default:
		adapter, err := bluez.Connect(ctx, bluez.Config{Adapter: cfg.Bluetooth.Adapter})
		if err != nil {
			return nil, err
		}
		adapter.SetLogger(log)
		log.Info("BlueZ adapter ready", "adapter", cfg.Bluetooth.Adapter)
		return adapter, nil
	}
}

// simulatedDevices converts the simulation section. An empty list yields
// the default pair of stations.
func simulatedDevices(in []config.SimulatedDevice) []simulated.DeviceSpec {
	if len(in) == 0 {
		return simulated.DefaultDevices()
	}
	out := make([]simulated.DeviceSpec, 0, len(in))
	for _, d := range in {
		state := power.StateSleep
		if t, err := power.ParseTarget(d.State); err == nil {
			state = t.State()
		}
		out = append(out, simulated.DeviceSpec{Address: d.Address, Name: d.Name, State: state})
	}
	return out
}

// engineOptions maps the configuration onto the engine.
func engineOptions(cfg *config.Config, adapter basestation.Adapter, log *logging.Logger) basestation.Options {
	return basestation.Options{
		Adapter:         adapter,
		Service:         cfg.CharacteristicUUID(),
		ScanWindow:      cfg.GetScanTimeout(),
		ScanCallTimeout: cfg.GetScanCallTimeout(),
		ScanOnStart:     cfg.Scan.OnStartup,
		PollInterval:    cfg.GetPollInterval(),
		ReadTimeout:     cfg.GetReadTimeout(),
		PollConcurrency: cfg.Poll.Concurrency,
		Breaker: basestation.BreakerConfig{
			MaxFailures: uint32(cfg.Poll.Breaker.MaxFailures), //nolint:gosec // validated non-negative
			OpenTimeout: cfg.GetBreakerOpenTimeout(),
		},
		QueueSize:    cfg.Commands.QueueSize,
		WriteTimeout: cfg.GetWriteTimeout(),
		Logger:       log.With("component", "engine"),
	}
}
