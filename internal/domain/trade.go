package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeData is a single fill. Trades are immutable once published.
type TradeData struct {
	Symbol      string
	Exchange    Exchange
	OrderID     string
	TradeID     string
	Direction   Direction
	Offset      Offset
	Price       decimal.Decimal
	Volume      decimal.Decimal
	Datetime    time.Time
	AdapterName string
}

// VtSymbol returns the instrument key of the trade.
func (t *TradeData) VtSymbol() string {
	return VtSymbol(t.Symbol, t.Exchange)
}

// VtOrderID is the key of the order this trade filled.
func (t *TradeData) VtOrderID() string {
	return CompositeKey(t.OrderID, t.AdapterName)
}

// VtTradeID is the composite trade key, unique per fill.
func (t *TradeData) VtTradeID() string {
	return CompositeKey(t.TradeID, t.AdapterName)
}
