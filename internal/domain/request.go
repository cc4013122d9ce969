package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscribeRequest asks an adapter for market data of one instrument.
type SubscribeRequest struct {
	Symbol   string
	Exchange Exchange
}

// VtSymbol returns the instrument key of the request.
func (r SubscribeRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

// OrderRequest is an outgoing order intent.
type OrderRequest struct {
	Symbol    string
	Exchange  Exchange
	Direction Direction
	Type      OrderType
	Volume    decimal.Decimal
	Price     decimal.Decimal
	Offset    Offset
	Reference string
}

// VtSymbol returns the instrument key of the request.
func (r OrderRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

// CreateOrderData builds the SUBMITTING order an adapter reports right after
// accepting the request.
func (r OrderRequest) CreateOrderData(orderID, adapterName string) *OrderData {
	return &OrderData{
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		OrderID:     orderID,
		Type:        r.Type,
		Direction:   r.Direction,
		Offset:      r.Offset,
		Price:       r.Price,
		Volume:      r.Volume,
		Traded:      decimal.Zero,
		Status:      StatusSubmitting,
		Datetime:    time.Now(),
		Reference:   r.Reference,
		AdapterName: adapterName,
	}
}

// CancelRequest cancels an order or a quote.
type CancelRequest struct {
	OrderID  string
	Symbol   string
	Exchange Exchange
}

// VtSymbol returns the instrument key of the request.
func (r CancelRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

// HistoryRequest asks an adapter for bars in [Start, End].
type HistoryRequest struct {
	Symbol   string
	Exchange Exchange
	Start    time.Time
	End      time.Time
	Interval Interval
}

// VtSymbol returns the instrument key of the request.
func (r HistoryRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

// QuoteRequest is an outgoing two-sided quote.
type QuoteRequest struct {
	Symbol    string
	Exchange  Exchange
	BidPrice  decimal.Decimal
	BidVolume decimal.Decimal
	AskPrice  decimal.Decimal
	AskVolume decimal.Decimal
	BidOffset Offset
	AskOffset Offset
	Reference string
}

// VtSymbol returns the instrument key of the request.
func (r QuoteRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

// CreateQuoteData builds the SUBMITTING quote for an accepted request.
func (r QuoteRequest) CreateQuoteData(quoteID, adapterName string) *QuoteData {
	return &QuoteData{
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		QuoteID:     quoteID,
		BidPrice:    r.BidPrice,
		BidVolume:   r.BidVolume,
		AskPrice:    r.AskPrice,
		AskVolume:   r.AskVolume,
		BidOffset:   r.BidOffset,
		AskOffset:   r.AskOffset,
		Status:      StatusSubmitting,
		Datetime:    time.Now(),
		Reference:   r.Reference,
		AdapterName: adapterName,
	}
}
