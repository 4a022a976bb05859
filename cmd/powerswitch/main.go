// PowerSwitch Core
//
// This is the main entry point for the PowerSwitch persistence daemon. It
// owns the SQLite database holding apartments, rooms, receivers, scenes,
// gateways, geofences, timers, call events and history, and optionally
// mirrors every committed change to MQTT and InfluxDB. With MQTT enabled it
// also applies store commands received on {prefix}/command/{name}.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/backup"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/command"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/config"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/database"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/influxdb"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/logging"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/mqtt"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/notify"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/persistence"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// countsInterval is how often row counts are written to InfluxDB.
	countsInterval = time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting PowerSwitch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := persistence.NewStore(db.DB)
	store.SetLogger(log)

	var observers notify.Multi

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
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
			"prefix", mqttClient.Topics().Prefix,
		)

		obs := notify.NewMQTTObserver(mqttClient)
		obs.SetLogger(log)
		observers = append(observers, obs)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		observers = append(observers, notify.NewInfluxObserver(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	if len(observers) > 0 {
		store.SetObserver(observers)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	backups := backup.New(store, backup.Config{
		Dir:      cfg.Backup.Dir,
		Interval: cfg.Backup.Interval,
		Keep:     cfg.Backup.Keep,
	})
	backups.SetLogger(log)
	if cfg.Backup.OnStartup {
		if _, err := backups.Snapshot(ctx); err != nil {
			return fmt.Errorf("startup backup: %w", err)
		}
	}

	if mqttClient != nil {
		commands := command.NewHandler(store, backups)
		commands.SetLogger(log)
		if err := commands.Start(ctx, mqttClient); err != nil {
			return fmt.Errorf("starting command handler: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return backups.Run(gctx)
	})
	if influxClient != nil {
		g.Go(func() error {
			return reportCounts(gctx, store, influxClient, log)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("PowerSwitch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POWERSWITCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("POWERSWITCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when their integration is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// reportCounts writes the store's row counts every countsInterval until ctx
// is cancelled.
func reportCounts(ctx context.Context, src notify.CountSource, w notify.PointWriter, log *logging.Logger) error {
	ticker := time.NewTicker(countsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := notify.WriteCounts(ctx, src, w, now); err != nil {
				log.Warn("writing row counts failed", "error", err)
			}
		}
	}
}
