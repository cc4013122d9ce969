package domain

// Direction of an order, trade or position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNet   Direction = "NET"
)

// Opposite returns the direction a close order must carry to reduce a position
// held in d. NET has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return d
	}
}

// Offset tells the venue whether an order opens or closes a position slot.
type Offset string

const (
	OffsetNone           Offset = ""
	OffsetOpen           Offset = "OPEN"
	OffsetClose          Offset = "CLOSE"
	OffsetCloseToday     Offset = "CLOSETODAY"
	OffsetCloseYesterday Offset = "CLOSEYESTERDAY"
)

// Status of an order or quote.
type Status string

const (
	StatusSubmitting Status = "SUBMITTING"
	StatusNotTraded  Status = "NOTTRADED"
	StatusPartTraded Status = "PARTTRADED"
	StatusAllTraded  Status = "ALLTRADED"
	StatusCancelled  Status = "CANCELLED"
	StatusRejected   Status = "REJECTED"
)

// IsActive reports whether the status is non-terminal.
func (s Status) IsActive() bool {
	return s == StatusSubmitting || s == StatusNotTraded || s == StatusPartTraded
}

// OrderType is the execution type of an order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeStop   OrderType = "STOP"
	OrderTypeFAK    OrderType = "FAK"
	OrderTypeFOK    OrderType = "FOK"
	OrderTypeRFQ    OrderType = "RFQ"
)

// Product kind of a contract.
type Product string

const (
	ProductSpot    Product = "SPOT"
	ProductFutures Product = "FUTURES"
	ProductOption  Product = "OPTION"
	ProductEquity  Product = "EQUITY"
	ProductIndex   Product = "INDEX"
	ProductForex   Product = "FOREX"
	ProductSpread  Product = "SPREAD"
)

// Exchange code. Adapters may use codes not listed here.
type Exchange string

const (
	ExchangeSHFE    Exchange = "SHFE"
	ExchangeINE     Exchange = "INE"
	ExchangeCFFEX   Exchange = "CFFEX"
	ExchangeDCE     Exchange = "DCE"
	ExchangeCZCE    Exchange = "CZCE"
	ExchangeGFEX    Exchange = "GFEX"
	ExchangeSSE     Exchange = "SSE"
	ExchangeSZSE    Exchange = "SZSE"
	ExchangeSMART   Exchange = "SMART"
	ExchangeBINANCE Exchange = "BINANCE"
	ExchangeOKX     Exchange = "OKX"
	ExchangeLOCAL   Exchange = "LOCAL"
)

// SeparatesCloseToday reports whether the venue requires explicit
// CLOSETODAY/CLOSEYESTERDAY offsets instead of a plain CLOSE.
func (e Exchange) SeparatesCloseToday() bool {
	return e == ExchangeSHFE || e == ExchangeINE
}

// Interval of a bar.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDaily  Interval = "d"
	IntervalWeekly Interval = "w"
	IntervalTick   Interval = "tick"
)
