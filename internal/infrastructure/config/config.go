package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// Config is the root configuration structure for the lighthouse service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bluetooth  BluetoothConfig  `yaml:"bluetooth"`
	Scan       ScanConfig       `yaml:"scan"`
	Poll       PollConfig       `yaml:"poll"`
	Commands   CommandsConfig   `yaml:"commands"`
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Schedules  []ScheduleConfig `yaml:"schedules"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// Bluetooth backends.
const (
	BackendBlueZ     = "bluez"
	BackendSimulated = "simulated"
)

// BluetoothConfig selects the radio backend.
type BluetoothConfig struct {
	// Backend is "bluez" or "simulated".
	Backend string `yaml:"backend"`

	// Adapter is the BlueZ controller name.
	// Default: "hci0"
	Adapter string `yaml:"adapter"`

	// CharacteristicUUID overrides the power characteristic.
	CharacteristicUUID string `yaml:"characteristic_uuid"`
}

// ScanConfig contains discovery settings. Durations are in milliseconds.
type ScanConfig struct {
	Timeout     int  `yaml:"timeout"`
	CallTimeout int  `yaml:"call_timeout"`
	OnStartup   bool `yaml:"on_startup"`
}

// PollConfig contains power state polling settings. Durations are in
// milliseconds.
type PollConfig struct {
	Interval    int           `yaml:"interval"`
	ReadTimeout int           `yaml:"read_timeout"`
	Concurrency int           `yaml:"concurrency"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig isolates devices that repeatedly fail to answer reads.
type BreakerConfig struct {
	// MaxFailures opens the breaker after this many consecutive failures.
	// 0 disables the breaker.
	MaxFailures int `yaml:"max_failures"`

	// OpenTimeout is how long reads are skipped, in seconds.
	OpenTimeout int `yaml:"open_timeout"`
}

// CommandsConfig contains command queue settings.
type CommandsConfig struct {
	QueueSize    int `yaml:"queue_size"`
	WriteTimeout int `yaml:"write_timeout"` // milliseconds
}

// SimulationConfig configures the simulated backend.
type SimulationConfig struct {
	Devices      []SimulatedDevice `yaml:"devices"`
	StartupDelay int               `yaml:"startup_delay"` // milliseconds
	FailScan     bool              `yaml:"fail_scan"`
}

// SimulatedDevice describes one simulated base station.
type SimulatedDevice struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	State   string `yaml:"state"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// AuditRetentionDays prunes command log entries older than this.
	// 0 keeps everything.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`

	// SnapshotInterval is how often a full snapshot is pushed to clients, in
	// milliseconds. 0 pushes only on change.
	SnapshotInterval int `yaml:"snapshot_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiscoveryConfig contains LAN service advertisement settings.
type DiscoveryConfig struct {
	MDNS MDNSConfig `yaml:"mdns"`
}

// MDNSConfig configures the mDNS advertisement of the HTTP API.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// ScheduleConfig is a cron-driven power command.
type ScheduleConfig struct {
	Name string `yaml:"name"`

	// Cron is a standard five-field cron expression or a descriptor such as
	// "@daily".
	Cron string `yaml:"cron"`

	// State is the power target: on, standby or sleep.
	State string `yaml:"state"`

	// Addresses limits the schedule to these devices. Empty targets every
	// known device.
	Addresses []string `yaml:"addresses"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LIGHTHOUSE_SECTION_KEY
// For example: LIGHTHOUSE_BLUETOOTH_BACKEND, LIGHTHOUSE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration with environment overrides
// applied. It is used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bluetooth: BluetoothConfig{
			Backend:            BackendBlueZ,
			Adapter:            "hci0",
			CharacteristicUUID: power.CharacteristicUUID.String(),
		},
		Scan: ScanConfig{
			Timeout:     10000,
			CallTimeout: 5000,
			OnStartup:   true,
		},
		Poll: PollConfig{
			Interval:    500,
			ReadTimeout: 5000,
			Concurrency: 4,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 10,
			},
		},
		Commands: CommandsConfig{
			QueueSize:    16,
			WriteTimeout: 5000,
		},
		Simulation: SimulationConfig{
			StartupDelay: 2000,
		},
		Database: DatabaseConfig{
			Enabled:            true,
			Path:               "./data/lighthouse.db",
			WALMode:            true,
			BusyTimeout:        5,
			AuditRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lighthouse",
			},
			QoS:         1,
			TopicPrefix: "lighthouse",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8420,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:             "/ws",
			MaxMessageSize:   8192,
			PingInterval:     30,
			PongTimeout:      10,
			SnapshotInterval: 0,
		},
		Discovery: DiscoveryConfig{
			MDNS: MDNSConfig{
				Instance: "lighthouse",
				Service:  "_lighthouse._tcp",
				Domain:   "local.",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LIGHTHOUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bluetooth
	if v := os.Getenv("LIGHTHOUSE_BLUETOOTH_BACKEND"); v != "" {
		cfg.Bluetooth.Backend = v
	}
	if v := os.Getenv("LIGHTHOUSE_BLUETOOTH_ADAPTER"); v != "" {
		cfg.Bluetooth.Adapter = v
	}

	// Database
	if v := os.Getenv("LIGHTHOUSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("LIGHTHOUSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LIGHTHOUSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LIGHTHOUSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LIGHTHOUSE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("LIGHTHOUSE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("LIGHTHOUSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("LIGHTHOUSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bluetooth validation
	switch c.Bluetooth.Backend {
	case BackendBlueZ, BackendSimulated:
	default:
		errs = append(errs, fmt.Sprintf("bluetooth.backend must be %q or %q", BackendBlueZ, BackendSimulated))
	}
	if _, err := uuid.Parse(c.Bluetooth.CharacteristicUUID); err != nil {
		errs = append(errs, "bluetooth.characteristic_uuid is not a valid UUID")
	}

	// Engine timing validation
	if c.Scan.Timeout <= 0 {
		errs = append(errs, "scan.timeout must be positive")
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, "poll.interval must be positive")
	}
	if c.Poll.Concurrency < 1 {
		errs = append(errs, "poll.concurrency must be at least 1")
	}
	if c.Poll.Breaker.MaxFailures < 0 {
		errs = append(errs, "poll.breaker.max_failures must not be negative")
	}
	if c.Commands.QueueSize < 1 {
		errs = append(errs, "commands.queue_size must be at least 1")
	}

	// Simulation validation
	for i, d := range c.Simulation.Devices {
		if d.Address == "" {
			errs = append(errs, fmt.Sprintf("simulation.devices[%d].address is required", i))
		}
		if d.State != "" {
			if _, err := power.ParseTarget(d.State); err != nil {
				errs = append(errs, fmt.Sprintf("simulation.devices[%d].state must be on, standby or sleep", i))
			}
		}
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Schedule validation
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for i, s := range c.Schedules {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d].name is required", i))
		}
		if _, err := parser.Parse(s.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("schedules[%d].cron is invalid: %v", i, err))
		}
		if _, err := power.ParseTarget(s.State); err != nil {
			errs = append(errs, fmt.Sprintf("schedules[%d].state must be on, standby or sleep", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// CharacteristicUUID returns the configured power characteristic.
func (c *Config) CharacteristicUUID() uuid.UUID {
	id, err := uuid.Parse(c.Bluetooth.CharacteristicUUID)
	if err != nil {
		return power.CharacteristicUUID
	}
	return id
}

// GetScanTimeout returns the discovery window as a Duration.
func (c *Config) GetScanTimeout() time.Duration {
	return time.Duration(c.Scan.Timeout) * time.Millisecond
}

// GetScanCallTimeout returns the discovery call timeout as a Duration.
func (c *Config) GetScanCallTimeout() time.Duration {
	return time.Duration(c.Scan.CallTimeout) * time.Millisecond
}

// GetPollInterval returns the poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Millisecond
}

// GetReadTimeout returns the per-device read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Poll.ReadTimeout) * time.Millisecond
}

// GetBreakerOpenTimeout returns how long an open read breaker skips a device.
func (c *Config) GetBreakerOpenTimeout() time.Duration {
	return time.Duration(c.Poll.Breaker.OpenTimeout) * time.Second
}

// GetWriteTimeout returns the power command write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Commands.WriteTimeout) * time.Millisecond
}

// GetStartupDelay returns the simulated start-up delay as a Duration.
func (c *Config) GetStartupDelay() time.Duration {
	return time.Duration(c.Simulation.StartupDelay) * time.Millisecond
}

// GetAPIReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetAPIReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetAPIWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetAPIWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetAPIIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetAPIIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSnapshotInterval returns the websocket snapshot push interval.
func (c *Config) GetSnapshotInterval() time.Duration {
	return time.Duration(c.WebSocket.SnapshotInterval) * time.Millisecond
}
