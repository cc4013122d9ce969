package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickData is the latest market snapshot of one instrument.
type TickData struct {
	Symbol      string          `json:"symbol"`
	Exchange    Exchange        `json:"exchange"`
	Datetime    time.Time       `json:"datetime"`
	Name        string          `json:"name"`
	LastPrice   decimal.Decimal `json:"last_price"`
	LastVolume  decimal.Decimal `json:"last_volume"`
	Volume      decimal.Decimal `json:"volume"`   // Cumulative traded volume of the session
	Turnover    decimal.Decimal `json:"turnover"` // Cumulative turnover of the session
	OpenInt     decimal.Decimal `json:"open_interest"`
	OpenPrice   decimal.Decimal `json:"open_price"`
	HighPrice   decimal.Decimal `json:"high_price"`
	LowPrice    decimal.Decimal `json:"low_price"`
	PreClose    decimal.Decimal `json:"pre_close"`
	LimitUp     decimal.Decimal `json:"limit_up"`
	LimitDown   decimal.Decimal `json:"limit_down"`
	BidPrice1   decimal.Decimal `json:"bid_price_1"`
	BidVolume1  decimal.Decimal `json:"bid_volume_1"`
	AskPrice1   decimal.Decimal `json:"ask_price_1"`
	AskVolume1  decimal.Decimal `json:"ask_volume_1"`
	AdapterName string          `json:"adapter_name"`
}

// VtSymbol is the key of the tick map.
func (t *TickData) VtSymbol() string {
	return VtSymbol(t.Symbol, t.Exchange)
}

// Spread returns ask minus bid, or nil when either side is missing.
func (t *TickData) Spread() *decimal.Decimal {
	if t.BidPrice1.IsZero() || t.AskPrice1.IsZero() {
		return nil
	}
	spread := t.AskPrice1.Sub(t.BidPrice1)
	return &spread
}

// BarData is one OHLCV bar returned by a history query.
type BarData struct {
	Symbol      string          `json:"symbol"`
	Exchange    Exchange        `json:"exchange"`
	Datetime    time.Time       `json:"datetime"`
	Interval    Interval        `json:"interval"`
	Volume      decimal.Decimal `json:"volume"`
	Turnover    decimal.Decimal `json:"turnover"`
	OpenInt     decimal.Decimal `json:"open_interest"`
	OpenPrice   decimal.Decimal `json:"open_price"`
	HighPrice   decimal.Decimal `json:"high_price"`
	LowPrice    decimal.Decimal `json:"low_price"`
	ClosePrice  decimal.Decimal `json:"close_price"`
	AdapterName string          `json:"adapter_name"`
}

// VtSymbol returns the instrument key of the bar.
func (b *BarData) VtSymbol() string {
	return VtSymbol(b.Symbol, b.Exchange)
}
