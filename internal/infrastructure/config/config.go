package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Calor Home Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Transport TransportConfig `yaml:"transport"`
	Engine    EngineConfig    `yaml:"engine"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings for the packet log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TransportConfig selects and configures the frame transport.
type TransportConfig struct {
	// Variant is one of: serial, file, mqtt, loopback.
	Variant string `yaml:"variant"`

	// Autostart opens the inbound gate at construction instead of
	// waiting for the engine to resume reading.
	Autostart bool `yaml:"autostart"`

	// MinWriteGapMs paces outbound frames (radio duty-cycle limit).
	// Zero selects the built-in default.
	MinWriteGapMs int `yaml:"min_write_gap_ms"`

	Serial SerialTransportConfig `yaml:"serial"`
	File   FileTransportConfig   `yaml:"file"`
	MQTT   MQTTTransportConfig   `yaml:"mqtt"`
}

// SerialTransportConfig contains serial dongle settings.
type SerialTransportConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// FileTransportConfig contains packet-log replay settings.
type FileTransportConfig struct {
	Path string `yaml:"path"`
}

// MQTTTransportConfig contains the topics of a remote MQTT-bridged
// dongle. The broker connection itself comes from the mqtt section.
type MQTTTransportConfig struct {
	RxTopic string `yaml:"rx_topic"`
	TxTopic string `yaml:"tx_topic"`
}

// EngineConfig contains message-pipeline policy settings.
type EngineConfig struct {
	// Strict re-raises per-message processing failures instead of
	// logging and continuing.
	Strict bool `yaml:"strict"`

	// Discovery enables lazy entity creation for unknown devices.
	Discovery bool `yaml:"discovery"`

	// AllowList/BlockList filter which device addresses may become
	// entities. An empty allow list admits everything not blocked.
	AllowList []string `yaml:"allow_list"`
	BlockList []string `yaml:"block_list"`

	// QueueLimit caps the storage worker's submission queue; zero
	// means unbounded.
	QueueLimit int `yaml:"queue_limit"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// InfluxDBConfig contains InfluxDB connection settings for the
// telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RAMSES_SECTION_KEY
// For example: RAMSES_DATABASE_PATH, RAMSES_TRANSPORT_SERIAL_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Calor Home",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/ramses.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Transport: TransportConfig{
			Variant: "serial",
			Serial: SerialTransportConfig{
				Port: "/dev/ttyUSB0",
				Baud: 115200,
			},
			MQTT: MQTTTransportConfig{
				RxTopic: "ramses/gateway/rx",
				TxTopic: "ramses/gateway/tx",
			},
		},
		Engine: EngineConfig{
			Discovery: true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ramses-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RAMSES_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("RAMSES_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Transport
	if v := os.Getenv("RAMSES_TRANSPORT_VARIANT"); v != "" {
		cfg.Transport.Variant = v
	}
	if v := os.Getenv("RAMSES_TRANSPORT_SERIAL_PORT"); v != "" {
		cfg.Transport.Serial.Port = v
	}
	if v := os.Getenv("RAMSES_TRANSPORT_FILE_PATH"); v != "" {
		cfg.Transport.File.Path = v
	}

	// MQTT
	if v := os.Getenv("RAMSES_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RAMSES_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RAMSES_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("RAMSES_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Transport validation
	switch c.Transport.Variant {
	case "serial":
		if c.Transport.Serial.Port == "" {
			errs = append(errs, "transport.serial.port is required for the serial variant")
		}
	case "file":
		if c.Transport.File.Path == "" {
			errs = append(errs, "transport.file.path is required for the file variant")
		}
	case "mqtt":
		if c.Transport.MQTT.RxTopic == "" || c.Transport.MQTT.TxTopic == "" {
			errs = append(errs, "transport.mqtt.rx_topic and tx_topic are required for the mqtt variant")
		}
	case "loopback":
		// No settings.
	default:
		errs = append(errs, fmt.Sprintf("transport.variant %q is not one of serial, file, mqtt, loopback", c.Transport.Variant))
	}
	if c.Transport.MinWriteGapMs < 0 {
		errs = append(errs, "transport.min_write_gap_ms must not be negative")
	}

	// Engine validation
	if c.Engine.QueueLimit < 0 {
		errs = append(errs, "engine.queue_limit must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetBusyTimeout returns the database busy timeout as a Duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeout) * time.Second
}

// GetMinWriteGap returns the transport write pacing gap as a Duration.
func (c *Config) GetMinWriteGap() time.Duration {
	return time.Duration(c.Transport.MinWriteGapMs) * time.Millisecond
}
