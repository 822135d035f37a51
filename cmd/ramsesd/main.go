// Calor Home Core - RAMSES-II Protocol Engine
//
// This is the main entry point for the ramsesd daemon. It assembles the
// full message pipeline around a single RF gateway:
//   - Transport (serial dongle, MQTT-bridged remote, or packet-log replay)
//   - Packet codec and payload parsers
//   - Entity dispatch (devices, zones, systems)
//   - Most-recent-message index and durable SQLite store
//   - Optional InfluxDB telemetry export
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/calorhome/ramses-core/migrations"

	"github.com/calorhome/ramses-core/internal/dispatch"
	"github.com/calorhome/ramses-core/internal/engine"
	"github.com/calorhome/ramses-core/internal/index"
	"github.com/calorhome/ramses-core/internal/infrastructure/config"
	"github.com/calorhome/ramses-core/internal/infrastructure/database"
	"github.com/calorhome/ramses-core/internal/infrastructure/influxdb"
	"github.com/calorhome/ramses-core/internal/infrastructure/logging"
	"github.com/calorhome/ramses-core/internal/infrastructure/mqtt"
	"github.com/calorhome/ramses-core/internal/parsers"
	"github.com/calorhome/ramses-core/internal/store"
	"github.com/calorhome/ramses-core/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ramsesd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Most-recent-message index
	idx, err := index.New()
	if err != nil {
		return fmt.Errorf("creating message index: %w", err)
	}

	// Entity registry and dispatcher
	registry := dispatch.NewRegistry()
	registry.Discovery = cfg.Engine.Discovery
	registry.Filter = dispatch.Filter{
		Allow: cfg.Engine.AllowList,
		Block: cfg.Engine.BlockList,
	}
	dispatcher := dispatch.New(registry, idx, log, cfg.Engine.Strict)
	log.Info("dispatcher initialised",
		"strict", cfg.Engine.Strict,
		"discovery", cfg.Engine.Discovery,
	)

	// Durable storage worker
	worker := store.NewWorker(db.DB, log, store.Options{
		QueueLimit: cfg.Engine.QueueLimit,
	})

	// Connect to InfluxDB (optional)
	var telemetry engine.Telemetry
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble the engine before the transport: transports attach via
	// ConnectionMade during construction.
	eng := engine.New(dispatcher, idx, parsers.Default(), worker, telemetry, log, engine.Options{})

	opts := transport.Options{
		// Replay consumes its source from construction, so the gate
		// must be open or the head of the log is discarded.
		Autostart:   cfg.Transport.Autostart || cfg.Transport.Variant == "file",
		MinWriteGap: cfg.GetMinWriteGap(),
	}

	// Open the configured transport. The MQTT-bridged variant also
	// connects the broker client used for health checks.
	var mqttClient *mqtt.Client
	switch cfg.Transport.Variant {
	case "serial":
		_, err = transport.NewSerial(transport.SerialConfig{
			Port: cfg.Transport.Serial.Port,
			Baud: cfg.Transport.Serial.Baud,
		}, eng, log, opts)
		if err != nil {
			return fmt.Errorf("opening serial transport: %w", err)
		}
		log.Info("serial transport open", "port", cfg.Transport.Serial.Port)

	case "file":
		f, openErr := os.Open(cfg.Transport.File.Path)
		if openErr != nil {
			return fmt.Errorf("opening packet log: %w", openErr)
		}
		defer f.Close()
		transport.NewFileReplay(f, eng, log, opts)
		log.Info("packet log replay started", "path", cfg.Transport.File.Path)

	case "mqtt":
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
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

		_, err = transport.NewMQTTBridge(mqttClient,
			cfg.Transport.MQTT.RxTopic, cfg.Transport.MQTT.TxTopic,
			eng, log, opts)
		if err != nil {
			return fmt.Errorf("opening MQTT bridge: %w", err)
		}
		log.Info("MQTT bridge open",
			"rx_topic", cfg.Transport.MQTT.RxTopic,
			"tx_topic", cfg.Transport.MQTT.TxTopic,
		)

	case "loopback":
		transport.NewLoopback(eng, log, opts)
		log.Info("loopback transport open")

	default:
		return fmt.Errorf("unknown transport variant %q", cfg.Transport.Variant)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetry); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Open the inbound gate
	if err := eng.Start(); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	if id, ok := eng.GatewayID(); ok {
		log.Info("gateway identified", "gateway_id", id)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown or end of stream. A replayed packet log ends on
	// its own; a live transport runs until signalled.
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-eng.Done():
		if streamErr := eng.Err(); streamErr != nil {
			log.Error("transport stream failed", "error", streamErr)
		} else {
			log.Info("transport stream ended")
		}
	}

	// Engine teardown closes the transport, drains the store and
	// releases the index. Deferred Close() calls then run in reverse
	// order: MQTT/packet log, InfluxDB, database.
	if err := eng.Stop(); err != nil {
		return fmt.Errorf("stopping engine: %w", err)
	}

	stats := eng.Stats()
	log.Info("ramsesd stopped",
		"frames_total", stats.FramesTotal,
		"parse_errors", stats.ParseErrors,
		"store_dropped", stats.StoreDropped,
	)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RAMSES_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RAMSES_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and telemetry may be nil when the configuration does not
// use them.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetry engine.Telemetry) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (only connected for the mqtt transport variant)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient, ok := telemetry.(*influxdb.Client); ok {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
