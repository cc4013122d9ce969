package gateway

import (
	"log/slog"

	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// Base publishes adapter records on the bus. Each record goes out under its
// generic type and, where a key applies, under the keyed sub-type as well.
type Base struct {
	name   string
	bus    *event.Bus
	logger *slog.Logger
}

// NewBase binds an adapter name to bus.
func NewBase(bus *event.Bus, name string, logger *slog.Logger) Base {
	if logger == nil {
		logger = slog.Default()
	}
	return Base{
		name:   name,
		bus:    bus,
		logger: logger.With(slog.String("adapter", name)),
	}
}

// Name returns the adapter name stamped on every record.
func (b *Base) Name() string {
	return b.name
}

// Logger returns the adapter's structured logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

func (b *Base) publish(typ event.Type, key string, data domain.Payload) {
	b.bus.Put(event.New(typ, data))
	if key != "" {
		b.bus.Put(event.New(typ.Sub(key), data))
	}
}

func (b *Base) OnTick(tick *domain.TickData) {
	b.publish(event.TypeTick, tick.VtSymbol(), tick)
}

func (b *Base) OnTrade(trade *domain.TradeData) {
	b.publish(event.TypeTrade, trade.VtSymbol(), trade)
}

func (b *Base) OnOrder(order *domain.OrderData) {
	b.publish(event.TypeOrder, order.VtOrderID(), order)
}

func (b *Base) OnPosition(pos *domain.PositionData) {
	b.publish(event.TypePosition, pos.VtSymbol(), pos)
}

func (b *Base) OnAccount(acc *domain.AccountData) {
	b.publish(event.TypeAccount, acc.VtAccountID(), acc)
}

func (b *Base) OnQuote(quote *domain.QuoteData) {
	b.publish(event.TypeQuote, quote.VtSymbol(), quote)
}

func (b *Base) OnContract(contract *domain.ContractData) {
	b.publish(event.TypeContract, "", contract)
}

// WriteLog publishes msg as a log event sourced from this adapter.
func (b *Base) WriteLog(msg string, level slog.Level) {
	b.bus.Put(event.New(event.TypeLog, domain.NewLogData(msg, b.name, level)))
}
