package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"trade_core/internal/engine"
	"trade_core/internal/gateway"
	"trade_core/internal/infra"
	"trade_core/internal/strategy"
)

// adapterKinds maps the config "kind" of an adapter to its factory.
var adapterKinds = map[string]gateway.Factory{
	"paper":  gateway.NewPaper,
	"wsfeed": gateway.NewWSFeed,
}

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config   *infra.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Engine   *engine.MainEngine
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{ConfigPath: configPath}
}

// Initialize loads configuration, builds the logger and metrics registry and
// starts the main engine.
func (b *Bootstrap) Initialize() error {
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	b.Logger = infra.NewLogger(cfg)
	b.Logger.Info("Bootstrapping trade core", slog.String("version", cfg.App.Version))

	b.Registry = prometheus.NewRegistry()
	b.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := engine.New(cfg, b.Logger, engine.WithRegistry(b.Registry))
	if err != nil {
		return fmt.Errorf("start main engine: %w", err)
	}
	b.Engine = m
	b.Logger.Info("Main engine initialized")
	return nil
}

// ConnectAdapters adds and connects every configured adapter. A failing
// adapter is logged and skipped.
func (b *Bootstrap) ConnectAdapters(ctx context.Context) {
	for _, ac := range b.Config.Adapters {
		factory, ok := adapterKinds[strings.ToLower(ac.Kind)]
		if !ok {
			b.Logger.Error("Unknown adapter kind", slog.String("kind", ac.Kind))
			continue
		}

		gw := b.Engine.AddAdapter(factory, ac.Name)
		if err := b.Engine.Connect(ctx, ac.Setting, gw.Name()); err != nil {
			b.Logger.Error("Failed to connect adapter", slog.String("adapter", gw.Name()), slog.Any("error", err))
			continue
		}
		b.Logger.Info("Adapter connected", slog.String("adapter", gw.Name()))
	}
}

// StartStrategies adds one strategy app per adapter named in the strategies
// section and subscribes its instruments. Call it after ConnectAdapters.
func (b *Bootstrap) StartStrategies() error {
	byAdapter := make(map[string][]strategy.Strategy)
	var order []string
	for _, sc := range b.Config.Strategies {
		s, err := strategy.NewSMACrossStrategy(sc.VtSymbol, sc.Short, sc.Long, decimal.NewFromFloat(sc.Volume))
		if err != nil {
			return err
		}
		if _, ok := byAdapter[sc.Adapter]; !ok {
			order = append(order, sc.Adapter)
		}
		byAdapter[sc.Adapter] = append(byAdapter[sc.Adapter], s)
	}

	for _, adapter := range order {
		e, err := b.Engine.AddApp(strategy.NewApp(adapter, b.Logger, byAdapter[adapter]...))
		if err != nil {
			return err
		}
		e.(*strategy.Engine).Subscribe()
		b.Logger.Info("Strategies started", slog.String("adapter", adapter), slog.Int("count", len(byAdapter[adapter])))
	}
	return nil
}

// Shutdown closes the main engine.
func (b *Bootstrap) Shutdown() error {
	if b.Engine == nil {
		return nil
	}
	return b.Engine.Close()
}
