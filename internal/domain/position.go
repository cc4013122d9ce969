package domain

import "github.com/shopspring/decimal"

// PositionData is the adapter's latest view of one position slot.
type PositionData struct {
	Symbol      string
	Exchange    Exchange
	Direction   Direction
	Volume      decimal.Decimal
	Frozen      decimal.Decimal
	Price       decimal.Decimal // Average holding price
	PnL         decimal.Decimal // Unrealized
	RealizedPnL decimal.Decimal
	YdVolume    decimal.Decimal // Part of Volume carried over from the previous session
	AdapterName string
}

// VtSymbol returns the instrument key of the position.
func (p *PositionData) VtSymbol() string {
	return VtSymbol(p.Symbol, p.Exchange)
}

// VtPositionID is the composite position key: instrument, direction and adapter.
func (p *PositionData) VtPositionID() string {
	return CompositeKey(p.VtSymbol()+"."+string(p.Direction), p.AdapterName)
}
