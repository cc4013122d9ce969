// Package oms keeps the latest state of every order, trade, position,
// account, contract, quote and tick seen on the bus.
package oms

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"trade_core/internal/converter"
	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// Name is the engine name used in the main engine registry.
const Name = "oms"

type registration struct {
	typ     event.Type
	handler *event.Handler
}

// Engine is the only writer of the record maps. Writes happen on the bus
// dispatch goroutine; reads may come from any goroutine and always return
// copies.
type Engine struct {
	bus           *event.Bus
	logger        *slog.Logger
	converterOpts []converter.Option

	mu        sync.RWMutex
	ticks     map[string]*domain.TickData
	orders    map[string]*domain.OrderData
	trades    map[string]*domain.TradeData
	positions map[string]*domain.PositionData
	accounts  map[string]*domain.AccountData
	contracts map[string]*domain.ContractData
	quotes    map[string]*domain.QuoteData

	activeOrders map[string]*domain.OrderData
	activeQuotes map[string]*domain.QuoteData

	converters map[string]*converter.OffsetConverter

	registrations []registration
}

// New creates the engine and registers its handlers on bus.
func New(bus *event.Bus, logger *slog.Logger, opts ...converter.Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		bus:           bus,
		logger:        logger.With(slog.String("engine", Name)),
		converterOpts: opts,
		ticks:         make(map[string]*domain.TickData),
		orders:        make(map[string]*domain.OrderData),
		trades:        make(map[string]*domain.TradeData),
		positions:     make(map[string]*domain.PositionData),
		accounts:      make(map[string]*domain.AccountData),
		contracts:     make(map[string]*domain.ContractData),
		quotes:        make(map[string]*domain.QuoteData),
		activeOrders:  make(map[string]*domain.OrderData),
		activeQuotes:  make(map[string]*domain.QuoteData),
		converters:    make(map[string]*converter.OffsetConverter),
	}
	e.registerEvent()
	return e
}

// Name implements the engine contract.
func (e *Engine) Name() string {
	return Name
}

// Close unregisters the handlers. The maps stay readable.
func (e *Engine) Close() error {
	for _, r := range e.registrations {
		e.bus.Unregister(r.typ, r.handler)
	}
	e.registrations = nil
	return nil
}

func (e *Engine) registerEvent() {
	e.register(event.TypeTick, "oms.tick", e.processTickEvent)
	e.register(event.TypeOrder, "oms.order", e.processOrderEvent)
	e.register(event.TypeTrade, "oms.trade", e.processTradeEvent)
	e.register(event.TypePosition, "oms.position", e.processPositionEvent)
	e.register(event.TypeAccount, "oms.account", e.processAccountEvent)
	e.register(event.TypeContract, "oms.contract", e.processContractEvent)
	e.register(event.TypeQuote, "oms.quote", e.processQuoteEvent)
}

func (e *Engine) register(typ event.Type, name string, fn event.HandlerFunc) {
	h := event.NewHandler(name, fn)
	e.bus.Register(typ, h)
	e.registrations = append(e.registrations, registration{typ: typ, handler: h})
}

func unexpected(ev event.Event) error {
	return fmt.Errorf("unexpected payload %T on %s", ev.Data, ev.Type)
}

func (e *Engine) processTickEvent(ev event.Event) error {
	tick, ok := ev.Data.(*domain.TickData)
	if !ok {
		return unexpected(ev)
	}
	t := *tick

	e.mu.Lock()
	e.ticks[t.VtSymbol()] = &t
	e.mu.Unlock()
	return nil
}

func (e *Engine) processOrderEvent(ev event.Event) error {
	order, ok := ev.Data.(*domain.OrderData)
	if !ok {
		return unexpected(ev)
	}
	o := *order
	key := o.VtOrderID()

	e.mu.Lock()
	e.orders[key] = &o
	if o.IsActive() {
		e.activeOrders[key] = &o
	} else {
		delete(e.activeOrders, key)
	}
	conv := e.converters[o.AdapterName]
	e.mu.Unlock()

	if conv != nil {
		conv.UpdateOrder(&o)
	}
	return nil
}

func (e *Engine) processTradeEvent(ev event.Event) error {
	trade, ok := ev.Data.(*domain.TradeData)
	if !ok {
		return unexpected(ev)
	}
	t := *trade

	e.mu.Lock()
	e.trades[t.VtTradeID()] = &t
	conv := e.converters[t.AdapterName]
	e.mu.Unlock()

	if conv != nil {
		conv.UpdateTrade(&t)
	}
	return nil
}

func (e *Engine) processPositionEvent(ev event.Event) error {
	pos, ok := ev.Data.(*domain.PositionData)
	if !ok {
		return unexpected(ev)
	}
	p := *pos

	e.mu.Lock()
	e.positions[p.VtPositionID()] = &p
	conv := e.converters[p.AdapterName]
	e.mu.Unlock()

	if conv != nil {
		conv.UpdatePosition(&p)
	}
	return nil
}

func (e *Engine) processAccountEvent(ev event.Event) error {
	acc, ok := ev.Data.(*domain.AccountData)
	if !ok {
		return unexpected(ev)
	}
	a := *acc

	e.mu.Lock()
	e.accounts[a.VtAccountID()] = &a
	e.mu.Unlock()
	return nil
}

func (e *Engine) processContractEvent(ev event.Event) error {
	contract, ok := ev.Data.(*domain.ContractData)
	if !ok {
		return unexpected(ev)
	}
	c := *contract

	e.mu.Lock()
	e.contracts[c.VtSymbol()] = &c
	_, exists := e.converters[c.AdapterName]
	if !exists {
		e.converters[c.AdapterName] = converter.New(c.AdapterName, e.GetContract, e.converterOpts...)
	}
	e.mu.Unlock()

	if !exists {
		e.logger.Info("Offset converter created", slog.String("adapter", c.AdapterName))
	}
	return nil
}

func (e *Engine) processQuoteEvent(ev event.Event) error {
	quote, ok := ev.Data.(*domain.QuoteData)
	if !ok {
		return unexpected(ev)
	}
	q := *quote
	key := q.VtQuoteID()

	e.mu.Lock()
	e.quotes[key] = &q
	if q.IsActive() {
		e.activeQuotes[key] = &q
	} else {
		delete(e.activeQuotes, key)
	}
	e.mu.Unlock()
	return nil
}

// Collectors exposes store sizes to prometheus.
func (e *Engine) Collectors() []prometheus.Collector {
	gauge := func(name, help string, size func() int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			e.mu.RLock()
			defer e.mu.RUnlock()
			return float64(size())
		})
	}
	return []prometheus.Collector{
		gauge("oms_orders", "Orders seen since start.", func() int { return len(e.orders) }),
		gauge("oms_active_orders", "Orders in a non-terminal status.", func() int { return len(e.activeOrders) }),
		gauge("oms_trades", "Trades seen since start.", func() int { return len(e.trades) }),
		gauge("oms_active_quotes", "Quotes in a non-terminal status.", func() int { return len(e.activeQuotes) }),
	}
}
