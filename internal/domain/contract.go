package domain

import "github.com/shopspring/decimal"

// ContractData is the static definition of a tradable instrument.
type ContractData struct {
	Symbol        string
	Exchange      Exchange
	Name          string
	Product       Product
	Size          decimal.Decimal
	PriceTick     decimal.Decimal
	MinVolume     decimal.Decimal
	StopSupported bool
	NetPosition   bool // Venue nets long and short into one position
	HistoryData   bool // Adapter can serve history queries
	AdapterName   string
}

// VtSymbol is the key of the contract map.
func (c *ContractData) VtSymbol() string {
	return VtSymbol(c.Symbol, c.Exchange)
}
