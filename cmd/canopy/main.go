// Canopy Core - Cultivation Automation Engine
//
// This is the main entry point for the Canopy Core daemon. Canopy
// watches a grow site through recurring AI analyses and drives the
// follow-up work: scheduled rules and workflows, batch analyses,
// anomaly and milestone detection, and notification delivery.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/canopyops/canopy-core/migrations"

	"github.com/canopyops/canopy-core/internal/action"
	"github.com/canopyops/canopy-core/internal/batch"
	"github.com/canopyops/canopy-core/internal/engine"
	"github.com/canopyops/canopy-core/internal/infrastructure/config"
	"github.com/canopyops/canopy-core/internal/infrastructure/database"
	"github.com/canopyops/canopy-core/internal/infrastructure/influxdb"
	"github.com/canopyops/canopy-core/internal/infrastructure/logging"
	"github.com/canopyops/canopy-core/internal/infrastructure/mqtt"
	"github.com/canopyops/canopy-core/internal/insight"
	"github.com/canopyops/canopy-core/internal/notify"
	"github.com/canopyops/canopy-core/internal/plant"
	"github.com/canopyops/canopy-core/internal/rule"
	"github.com/canopyops/canopy-core/internal/schedule"
	"github.com/canopyops/canopy-core/internal/workflow"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Canopy Core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	eng := buildEngine(cfg, db, mqttClient, influxClient, log)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, entering tick loop",
		"tick_interval", cfg.TickInterval().String(),
		"cleanup_interval", cfg.CleanupInterval().String(),
	)

	runTickLoop(ctx, eng, cfg.TickInterval(), log)

	log.Info("Canopy Core stopped")
	return nil
}

// buildEngine wires the automation components against the shared
// store and infrastructure clients.
func buildEngine(cfg *config.Config, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *engine.Engine {
	analyzer := plant.NewHTTPAnalyzer(cfg.Inference)

	historyRepo := plant.NewSQLiteHistoryRepository(db.DB)
	notifier := notify.NewNotifier(notify.NewSQLiteRepository(db.DB), mqttClient, log)
	dispatcher := action.NewDispatcher(analyzer, notifier, mqttClient, action.NewSQLiteTaskRepository(db.DB), log)

	ruleRepo := rule.NewSQLiteRepository(db.DB)
	ruleExecutor := rule.NewExecutor(ruleRepo, dispatcher, log)

	interpreter := workflow.NewInterpreter(workflow.NewSQLiteRepository(db.DB), dispatcher, log)

	anomalyRepo := insight.NewSQLiteAnomalyRepository(db.DB)
	detector := insight.NewDetector(anomalyRepo, historyRepo, log)
	milestones := insight.NewMilestoneGenerator(insight.NewSQLiteMilestoneRepository(db.DB), historyRepo, log)

	schedOpts := schedule.Options{Detector: detector, Logger: log}
	batchOpts := batch.Options{History: historyRepo, Logger: log}
	if influxClient != nil {
		schedOpts.Metrics = influxClient
		batchOpts.Metrics = influxClient
	}

	scheduler := schedule.NewScheduler(
		schedule.NewSQLiteRepository(db.DB),
		schedule.NewSQLiteSchedulerRepository(db.DB),
		ruleRepo,
		ruleExecutor,
		analyzer,
		historyRepo,
		schedOpts,
	)

	processor := batch.NewProcessor(batch.NewSQLiteRepository(db.DB), analyzer, batchOpts)

	return engine.New(engine.Deps{
		Scheduler:     scheduler,
		Rules:         ruleExecutor,
		Workflows:     interpreter,
		Batches:       processor,
		Anomalies:     detector,
		Milestones:    milestones,
		AnomalyStore:  anomalyRepo,
		Notifications: notify.NewSQLiteRepository(db.DB),
		History:       historyRepo,
		Publisher:     mqttClient,
		Logger:        log,
	}, engine.Policy{
		CleanupInterval:       cfg.CleanupInterval(),
		AnomalyLookback:       time.Duration(cfg.Engine.AnomalyLookbackHours) * time.Hour,
		MilestoneLookback:     time.Duration(cfg.Engine.MilestoneLookbackHours) * time.Hour,
		AnomalyRetention:      time.Duration(cfg.Engine.AnomalyRetentionDays) * 24 * time.Hour,
		NotificationRetention: time.Duration(cfg.Engine.NotificationRetentionDays) * 24 * time.Hour,
		HistoryKeepPerPlant:   cfg.Engine.HistoryKeepPerPlant,
	})
}

// runTickLoop drives the engine until the context is cancelled. The
// first tick runs immediately rather than waiting a full interval.
func runTickLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	eng.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			eng.RunTick(ctx)
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses CANOPY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CANOPY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
