package app

import (
	"context"
	"log/slog"
	"strings"

	"tradesim/internal/domain"
	"tradesim/internal/infra"
	"tradesim/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Icons   *infra.IconCache
	Runtime *infra.Metrics
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Database initialized")

	// 4. Initialize Icon Cache
	icons, err := infra.NewIconCache()
	if err != nil {
		return err
	}
	b.Icons = icons

	b.Runtime = &infra.Metrics{}
	return nil
}

// InitialParameters resolves the parameters the simulator starts with:
// config-file defaults, overridden by the persisted last-used set when one
// exists and still validates.
func (b *Bootstrap) InitialParameters() domain.SimulationParameters {
	params := domain.SimulationParameters{
		Exchange:   b.Config.Feed.Exchange,
		Asset:      b.Config.Feed.Symbol,
		OrderType:  b.Config.Simulation.OrderType,
		Quantity:   b.Config.Simulation.QuantityUSD,
		Volatility: b.Config.Simulation.VolatilityPct,
		FeeTier:    domain.ParseFeeTier(b.Config.Simulation.FeeTier),
	}
	if params.OrderType == "" {
		params.OrderType = domain.OrderTypeMarket
	}

	saved, ok, err := b.Storage.LoadLastUsed()
	if err != nil {
		slog.Warn("Failed to load last-used parameters", slog.Any("error", err))
		return params
	}
	if ok && saved.Validate() == nil {
		slog.Info("Restored last-used parameters", slog.String("asset", saved.Asset))
		return saved
	}
	return params
}

// SyncAssets fetches the traded asset's icon in the background.
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	// Icons are keyed by base asset, not the full instrument name.
	symbol, _, _ := strings.Cut(b.Config.Feed.Symbol, "-")
	path, err := b.Icons.Fetch(symbol)
	if err != nil {
		slog.Warn("Failed to fetch asset icon", slog.String("symbol", symbol), slog.Any("error", err))
		return
	}
	slog.Info("Asset icon ready", slog.String("symbol", symbol), slog.String("path", path))
}
