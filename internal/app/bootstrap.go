package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"paper_trade/internal/api"
	"paper_trade/internal/domain"
	"paper_trade/internal/engine"
	"paper_trade/internal/event"
	"paper_trade/internal/execution"
	"paper_trade/internal/infra"
	"paper_trade/internal/infra/storage"
	"paper_trade/internal/service"

	_ "net/http/pprof" // registers /debug/pprof on the default mux
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config    *infra.Config
	Metrics   *infra.Metrics
	Bus       *event.Bus
	Market    *service.MarketStore
	Ledger    *service.Ledger
	Journal   *storage.Journal // nil when storage is disabled
	Simulator *engine.Simulator
	Executor  *execution.Executor
	Server    *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{ConfigPath: configPath}
}

// Initialize loads configuration and builds every component. Nothing runs yet.
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if errors.Is(err, domain.ErrConfigNotFound) {
		slog.Warn("Config file not found, using defaults", slog.String("path", b.ConfigPath))
		cfg, err = infra.LoadConfig("")
	}
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping paper trade...", slog.String("version", cfg.App.Version))

	b.Metrics = infra.NewMetrics()
	b.Bus = event.NewBus()

	// 3. Market
	b.Market = service.NewMarketStore(cfg.Simulation.MaxHistory)
	if err := b.Market.Initialize(cfg.Stocks, newRand(cfg.Simulation.Seed), time.Now()); err != nil {
		return fmt.Errorf("market init: %w", err)
	}
	slog.Info("✅ Market initialized", slog.Int("symbols", len(cfg.Stocks)))

	// 4. Account
	b.Ledger = service.NewLedger(cfg.Portfolio.InitialCash)
	slog.Info("✅ Account opened", slog.String("cash", domain.FormatUSD(cfg.Portfolio.InitialCash)))

	// 5. Journal (optional)
	var journal domain.TradeJournal
	if cfg.Storage.Enabled {
		j, err := storage.NewJournal(cfg.Storage.JournalPath)
		if err != nil {
			return err
		}
		b.Journal = j
		journal = j
		slog.Info("✅ Trade journal ready", slog.String("path", cfg.Storage.JournalPath))
	}

	// 6. Engine and execution
	b.Simulator = engine.NewSimulator(b.Market, newRand(cfg.Simulation.Seed), engine.Options{
		Interval:     time.Duration(cfg.Simulation.IntervalMS) * time.Millisecond,
		MaxChangePct: cfg.Simulation.MaxChangePct,
		MinPrice:     cfg.Simulation.MinPrice,
	}, b.Bus, b.Metrics)
	b.Executor = execution.NewExecutor(b.Market, b.Ledger, journal, b.Metrics)

	// 7. API
	b.Server = api.NewServer(api.Deps{
		Market:    b.Market,
		Prices:    b.Market,
		Portfolio: b.Ledger,
		Trader:    b.Executor,
		Journal:   journal,
		Metrics:   b.Metrics,
		Bus:       b.Bus,
	})

	return nil
}

// Run starts the simulator and serves until ctx is cancelled.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.Server == nil {
		return errors.New("bootstrap not initialized")
	}

	if addr := b.Config.Server.PprofAddr; addr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	if err := b.Simulator.Start(ctx); err != nil {
		return err
	}
	defer b.Simulator.Stop()

	slog.InfoContext(ctx, "✨ Paper trading fully operational. Press Ctrl+C to exit.")
	err := b.Server.Run(ctx, b.Config.Server.Addr)

	slog.Info("👋 Shutting down gracefully...")
	return err
}

// Close releases resources held by the components.
func (b *Bootstrap) Close() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Warn("Failed to close journal", slog.Any("error", err))
		}
	}
}

// newRand returns a seeded generator; seed 0 picks a random seed.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}
