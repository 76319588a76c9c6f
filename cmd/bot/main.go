package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"career_support_bot/internal/config"
	"career_support_bot/internal/dispatch"
	"career_support_bot/internal/health"
	"career_support_bot/internal/logging"
	"career_support_bot/internal/store"
	"career_support_bot/internal/store/filestore"
	"career_support_bot/internal/store/mongostore"
	"career_support_bot/internal/store/pgstore"
	"career_support_bot/internal/store/sheetstore"
	"career_support_bot/internal/telegram"
)

const (
	storeConnectTimeout     = 10 * time.Second
	schemaInitTimeout       = 10 * time.Second
	storeCloseTimeout       = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":   "startup",
		"backend": cfg.StoreBackend,
	}).Info("configuration loaded")

	st, stats := buildStore(cfg, logger)

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), schemaInitTimeout)
	if err := st.EnsureSchema(schemaCtx); err != nil {
		logger.WithField("event", "schema_init_failed").WithError(err).Error("schema initialization failed, continuing degraded")
	} else {
		logger.WithField("event", "schema_ready").Info("storage schema ensured")
	}
	cancelSchema()

	dispatcher := dispatch.New(st, stats, cfg.BotOwnerID, logger)

	tgClient, err := telegram.NewClient(cfg, dispatcher, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, st, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), storeCloseTimeout)
	if err := st.Close(closeCtx); err != nil {
		logger.WithError(err).Error("store close error")
	} else {
		logger.WithField("event", "store_closed").Info("store closed")
	}
	cancelClose()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

// buildStore selects the backend from configuration. Missing credentials or
// an unreachable database degrade to the disabled store instead of aborting:
// the bot keeps replying, writes fail and are logged.
func buildStore(cfg config.Config, logger *logrus.Entry) (store.Store, store.StatsReader) {
	primary := buildPrimaryStore(cfg, logger)

	var stats store.StatsReader
	if reader, ok := primary.(store.StatsReader); ok {
		stats = reader
	}

	if cfg.CSVMirror != "" && cfg.StoreBackend != config.BackendCSV {
		logger.WithFields(logging.Fields{
			"event": "csv_mirror_enabled",
			"path":  cfg.CSVMirror,
		}).Info("mirroring interactions to a delimited file")
		return store.NewComposite(primary, filestore.New(cfg.CSVMirror, logger)), stats
	}

	return primary, stats
}

func buildPrimaryStore(cfg config.Config, logger *logrus.Entry) store.Store {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := pgstore.New(cfg, logger)
		if err != nil {
			logger.WithFields(logging.Fields{
				"event":        "persistence_disabled",
				"missing_keys": cfg.MissingPostgresKeys(),
			}).WithError(err).Warn("postgres credentials incomplete, running without persistence")
			return store.Disabled{}
		}
		return pg

	case config.BackendMongo:
		if missing := cfg.MissingMongoKeys(); len(missing) > 0 {
			logger.WithFields(logging.Fields{
				"event":        "persistence_disabled",
				"missing_keys": missing,
			}).Warn("mongo credentials incomplete, running without persistence")
			return store.Disabled{}
		}

		connectCtx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
		mg, err := mongostore.New(connectCtx, cfg, logger)
		cancel()
		if err != nil {
			logger.WithField("event", "persistence_disabled").WithError(err).Warn("mongo is unreachable, running without persistence")
			return store.Disabled{}
		}
		return mg

	case config.BackendCSV:
		return filestore.New(cfg.CSVPath, logger)

	case config.BackendXLSX:
		return sheetstore.New(cfg.XLSXPath, logger)

	default:
		logger.WithField("event", "persistence_disabled").Info("storage backend disabled by configuration")
		return store.Disabled{}
	}
}
