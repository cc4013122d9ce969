package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderData represents the adapter's latest view of an order.
type OrderData struct {
	Symbol      string
	Exchange    Exchange
	OrderID     string // Local id assigned by the adapter
	Type        OrderType
	Direction   Direction
	Offset      Offset
	Price       decimal.Decimal
	Volume      decimal.Decimal
	Traded      decimal.Decimal
	Status      Status
	Datetime    time.Time
	Reference   string
	AdapterName string
}

// VtSymbol returns the instrument key of the order.
func (o *OrderData) VtSymbol() string {
	return VtSymbol(o.Symbol, o.Exchange)
}

// VtOrderID is the composite order key.
func (o *OrderData) VtOrderID() string {
	return CompositeKey(o.OrderID, o.AdapterName)
}

// IsActive checks if the order is still working at the venue.
func (o *OrderData) IsActive() bool {
	return o.Status.IsActive()
}

// Remaining returns the untraded part of the order.
func (o *OrderData) Remaining() decimal.Decimal {
	return o.Volume.Sub(o.Traded)
}

// CreateCancelRequest builds the request that cancels this order.
func (o *OrderData) CreateCancelRequest() CancelRequest {
	return CancelRequest{
		OrderID:  o.OrderID,
		Symbol:   o.Symbol,
		Exchange: o.Exchange,
	}
}
