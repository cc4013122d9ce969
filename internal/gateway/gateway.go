// Package gateway defines the adapter contract between venue connections and
// the trading core, plus an in-process paper venue.
package gateway

import (
	"context"
	"log/slog"

	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// Gateway bridges one venue connection to the bus. Commands are called
// synchronously from the caller's goroutine; results arrive as events.
type Gateway interface {
	Name() string
	Exchanges() []domain.Exchange
	DefaultSetting() map[string]any

	Connect(ctx context.Context, setting map[string]any) error
	Close() error

	Subscribe(req domain.SubscribeRequest)
	SendOrder(req domain.OrderRequest) string
	CancelOrder(req domain.CancelRequest)
	SendQuote(req domain.QuoteRequest) string
	CancelQuote(req domain.CancelRequest)
	QueryAccount()
	QueryPosition()
	QueryHistory(ctx context.Context, req domain.HistoryRequest) ([]*domain.BarData, error)
}

// Factory builds an adapter bound to bus. An empty name selects the
// adapter's default name.
type Factory func(bus *event.Bus, name string, logger *slog.Logger) Gateway
