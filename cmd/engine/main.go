package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/params"
	"github.com/uhyunpark/crossbook/pkg/api"
	"github.com/uhyunpark/crossbook/pkg/app/core/engine"
	"github.com/uhyunpark/crossbook/pkg/app/core/fee"
	"github.com/uhyunpark/crossbook/pkg/app/core/ledger"
	"github.com/uhyunpark/crossbook/pkg/app/core/risk"
	"github.com/uhyunpark/crossbook/pkg/events"
	"github.com/uhyunpark/crossbook/pkg/metrics"
	"github.com/uhyunpark/crossbook/pkg/sim"
	"github.com/uhyunpark/crossbook/pkg/storage"
	"github.com/uhyunpark/crossbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		logger, err = util.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("engine_failed", "err", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg params.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Sinks ----
	sinks := events.Multi{events.NewZapSink(sugar.Named("events"))}
	ledgerOpts := []ledger.Option{ledger.WithLogger(sugar.Named("ledger"))}

	if cfg.Storage.ArchiveDir != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.ArchiveDir), 0o755); err != nil {
			return err
		}
		store, err := storage.NewPebbleStore(cfg.Storage.ArchiveDir)
		if err != nil {
			return err
		}
		defer store.Close()

		lastSeq, err := store.LastTradeSeq()
		if err != nil {
			return err
		}
		ledgerOpts = append(ledgerOpts, ledger.WithArchive(store), ledger.WithStartSeq(lastSeq))
		sinks = append(sinks, storage.NewAuditSink(store, sugar.Named("audit")))
		sugar.Infow("archive_opened", "dir", cfg.Storage.ArchiveDir, "last_trade_seq", lastSeq)
	}

	if cfg.Storage.JournalFile != "" {
		journal, err := storage.NewJournal(cfg.Storage.JournalFile, sugar.Named("journal"))
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, journal)
		sugar.Infow("journal_opened", "path", cfg.Storage.JournalFile)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		var producer events.Producer
		switch cfg.Kafka.Client {
		case "sarama":
			p, err := events.NewSaramaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return err
			}
			producer = p
		default:
			producer = events.NewKafkaGoProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		}
		kafka := events.NewKafkaSink(producer, sugar.Named("kafka"))
		defer kafka.Close()
		sinks = append(sinks, kafka)
		sugar.Infow("kafka_enabled", "client", cfg.Kafka.Client, "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// ---- Risk ----
	var policy risk.Policy = risk.Unlimited{}
	switch {
	case cfg.Engine.RiskLimitsFile != "":
		limits, err := risk.LoadSymbolLimits(cfg.Engine.RiskLimitsFile)
		if err != nil {
			return err
		}
		policy = limits
		sugar.Infow("risk_limits_loaded", "file", cfg.Engine.RiskLimitsFile, "default", limits.Default, "symbols", len(limits.PerSymbol))
	case cfg.Engine.MaxPosition > 0:
		policy = risk.PositionLimit{Max: cfg.Engine.MaxPosition}
	}

	// ---- Engine ----
	m := metrics.New()
	eng := engine.New(
		engine.WithFees(fee.NewFlatRate(cfg.Engine.FeeRate)),
		engine.WithRisk(policy),
		engine.WithLedger(ledger.New(ledgerOpts...)),
		engine.WithSink(sinks),
		engine.WithMetrics(m),
		engine.WithLogger(sugar.Named("engine")),
	)
	// Deferred after the sinks so queued events still reach them.
	defer eng.Close()

	sugar.Infow("engine_starting",
		"fee_rate", cfg.Engine.FeeRate.String(),
		"max_position", cfg.Engine.MaxPosition,
		"sinks", len(sinks),
	)

	// ---- Load generator ----
	if cfg.Feeder.Enabled {
		feederCfg := sim.DefaultFeederConfig()
		if cfg.Feeder.Mode == "high" {
			feederCfg = sim.HighLoadConfig()
		}
		feederCfg.Symbols = cfg.Feeder.Symbols
		feederCfg.Seed = cfg.Feeder.Seed
		feeder := sim.NewFeeder(eng, feederCfg, util.RealClock{}, sugar.Named("feeder"))
		stopFeeder := feeder.Start(ctx)
		defer stopFeeder()
		sugar.Infow("feeder_enabled", "mode", cfg.Feeder.Mode, "symbols", feederCfg.Symbols)
	}

	// ---- API ----
	server := api.NewServer(eng, api.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		Metrics:        m.Handler(),
		BookInterval:   cfg.API.BookInterval,
		Logger:         sugar.Named("api"),
	})
	err := server.Start(ctx, cfg.API.Addr)
	sugar.Infow("engine_stopping")
	return err
}
