package strategy

import (
	"fmt"
	"log/slog"

	"trade_core/internal/domain"
	"trade_core/internal/engine"
	"trade_core/internal/event"
)

// AppName prefixes the registry name of each strategy app and its engine.
// One app runs per adapter, named AppName.<adapter>.
const AppName = "strategy"

// Engine feeds ticks to strategies and sends their actions through the main
// engine. Requests carry no offset and are converted in net mode.
type Engine struct {
	name       string
	main       *engine.MainEngine
	bus        *event.Bus
	logger     *slog.Logger
	adapter    string
	strategies []Strategy

	registrations map[event.Type]*event.Handler
}

// NewApp builds the strategy app trading through adapter.
func NewApp(adapter string, logger *slog.Logger, strategies ...Strategy) engine.App {
	return engine.App{
		Name:        AppName + "." + adapter,
		DisplayName: "Strategy Runner",
		NewEngine: func(m *engine.MainEngine, bus *event.Bus) (engine.Engine, error) {
			return newEngine(m, bus, logger, adapter, strategies)
		},
	}
}

func newEngine(m *engine.MainEngine, bus *event.Bus, logger *slog.Logger, adapter string, strategies []Strategy) (*Engine, error) {
	if adapter == "" {
		return nil, fmt.Errorf("strategy app: adapter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		name:          AppName + "." + adapter,
		main:          m,
		bus:           bus,
		logger:        logger.With(slog.String("engine", AppName), slog.String("adapter", adapter)),
		adapter:       adapter,
		strategies:    strategies,
		registrations: make(map[event.Type]*event.Handler),
	}

	for _, s := range strategies {
		for _, vtSymbol := range s.VtSymbols() {
			typ := event.TypeTick.Sub(vtSymbol)
			if _, ok := e.registrations[typ]; ok {
				continue
			}
			h := event.NewHandler("strategy.tick."+vtSymbol, e.processTickEvent)
			bus.Register(typ, h)
			e.registrations[typ] = h
		}
	}
	return e, nil
}

func (e *Engine) Name() string { return e.name }

// Subscribe asks the adapter for market data of every strategy instrument.
func (e *Engine) Subscribe() {
	for _, s := range e.strategies {
		for _, vtSymbol := range s.VtSymbols() {
			symbol, exchange := domain.SplitKey(vtSymbol)
			e.main.Subscribe(domain.SubscribeRequest{Symbol: symbol, Exchange: domain.Exchange(exchange)}, e.adapter)
		}
	}
}

func (e *Engine) processTickEvent(ev event.Event) error {
	tick, ok := ev.Data.(*domain.TickData)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev.Data, ev.Type)
	}

	for _, s := range e.strategies {
		for _, a := range s.OnTick(tick) {
			e.execute(s, tick, a)
		}
	}
	return nil
}

func (e *Engine) execute(s Strategy, tick *domain.TickData, a Action) {
	req := domain.OrderRequest{
		Symbol:    tick.Symbol,
		Exchange:  tick.Exchange,
		Direction: a.Type.Direction(),
		Type:      domain.OrderTypeLimit,
		Volume:    a.Volume,
		Price:     a.Price,
		Reference: s.Name(),
	}
	keys := e.main.SendConvertedOrders(req, e.adapter, false, true)
	if len(keys) == 0 {
		e.main.WriteLog(fmt.Sprintf("%s %s %s rejected", s.Name(), a.Type, a.Volume), e.name)
		return
	}
	e.logger.Info("Strategy order sent",
		slog.String("strategy", s.Name()),
		slog.String("action", a.Type.String()),
		slog.String("price", a.Price.String()),
		slog.Any("orders", keys))
}

// Close unregisters the tick handlers.
func (e *Engine) Close() error {
	for typ, h := range e.registrations {
		e.bus.Unregister(typ, h)
	}
	clear(e.registrations)
	return nil
}
