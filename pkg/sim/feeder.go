package sim

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/engine"
	"github.com/uhyunpark/crossbook/pkg/util"
)

// FeederConfig controls the generated load.
type FeederConfig struct {
	BatchSize   int           // actions per batch
	Interval    time.Duration // time between batches
	NumAccounts int           // simulated traders
	Symbols     []string
	Seed        int64
}

func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		BatchSize:   10,
		Interval:    100 * time.Millisecond, // ~100 actions/sec
		NumAccounts: 50,
		Symbols:     []string{"BTC-USDT"},
		Seed:        1,
	}
}

// HighLoadConfig is ~1000 actions/sec across three markets.
func HighLoadConfig() FeederConfig {
	return FeederConfig{
		BatchSize:   100,
		Interval:    100 * time.Millisecond,
		NumAccounts: 200,
		Symbols:     []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"},
		Seed:        1,
	}
}

// Target is the part of the engine the feeder calls.
type Target interface {
	Place(ctx context.Context, req engine.OrderRequest) (string, error)
	Cancel(ctx context.Context, orderID, symbol string) error
	Tick(ctx context.Context, marketPrice int64, symbol string) ([]string, error)
}

type FeederStats struct {
	Accepted  int64
	Rejected  int64
	Cancelled int64
	Missed    int64 // cancels of orders that were already gone
	Triggered int64
}

type Feeder struct {
	target Target
	gen    *Generator
	cfg    FeederConfig
	clock  util.Clock
	logger *zap.SugaredLogger

	accepted, rejected, cancelled, missed, triggered atomic.Int64
}

func NewFeeder(target Target, cfg FeederConfig, clock util.Clock, logger *zap.SugaredLogger) *Feeder {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"PERP-USD"}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Feeder{
		target: target,
		gen:    NewGenerator(cfg.NumAccounts, cfg.Symbols, cfg.Seed),
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// Step generates and applies one batch.
func (f *Feeder) Step(ctx context.Context) error {
	for _, a := range f.gen.GenerateBatch(f.cfg.BatchSize) {
		if err := f.apply(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feeder) apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case PlaceAction:
		if _, err := f.target.Place(ctx, a.Order); err != nil {
			if errors.Is(err, engine.ErrEngineClosed) || ctx.Err() != nil {
				return err
			}
			f.rejected.Add(1)
			return nil
		}
		f.accepted.Add(1)
	case CancelAction:
		err := f.target.Cancel(ctx, a.OrderID, a.Symbol)
		switch {
		case err == nil:
			f.cancelled.Add(1)
		case errors.Is(err, engine.ErrNotFound):
			f.missed.Add(1)
		default:
			return err
		}
	case TickAction:
		fired, err := f.target.Tick(ctx, a.Price, a.Symbol)
		if err != nil {
			return err
		}
		f.triggered.Add(int64(len(fired)))
	}
	return nil
}

// Run feeds batches every Interval until ctx is done or the target fails.
func (f *Feeder) Run(ctx context.Context) error {
	start := f.clock.Now()
	f.logger.Infow("feeder_started",
		"batch", f.cfg.BatchSize,
		"interval", f.cfg.Interval,
		"accounts", f.cfg.NumAccounts,
		"symbols", f.cfg.Symbols,
	)
	defer func() {
		elapsed := f.clock.Now().Sub(start)
		stats := f.Stats()
		f.logger.Infow("feeder_stopped",
			"elapsed", elapsed.Round(time.Millisecond),
			"accepted", stats.Accepted,
			"rejected", stats.Rejected,
			"cancelled", stats.Cancelled,
			"triggered", stats.Triggered,
		)
	}()

	lastReport := start
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.clock.After(f.cfg.Interval):
		}
		if err := f.Step(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, engine.ErrEngineClosed) {
				return nil
			}
			return err
		}

		if now := f.clock.Now(); now.Sub(lastReport) >= 10*time.Second {
			lastReport = now
			stats := f.Stats()
			f.logger.Infow("feeder_stats",
				"accepted", stats.Accepted,
				"rejected", stats.Rejected,
				"missed_cancels", stats.Missed,
			)
		}
	}
}

// Start runs the feeder in the background and returns its stop function.
func (f *Feeder) Start(ctx context.Context) context.CancelFunc {
	feedCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := f.Run(feedCtx); err != nil {
			f.logger.Errorw("feeder_failed", "err", err)
		}
	}()
	return cancel
}

func (f *Feeder) Stats() FeederStats {
	return FeederStats{
		Accepted:  f.accepted.Load(),
		Rejected:  f.rejected.Load(),
		Cancelled: f.cancelled.Load(),
		Missed:    f.missed.Load(),
		Triggered: f.triggered.Load(),
	}
}

func (f *Feeder) Generator() *Generator { return f.gen }
