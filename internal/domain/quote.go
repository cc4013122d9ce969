package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteData is a two-sided quote resting at the venue.
type QuoteData struct {
	Symbol      string
	Exchange    Exchange
	QuoteID     string
	BidPrice    decimal.Decimal
	BidVolume   decimal.Decimal
	AskPrice    decimal.Decimal
	AskVolume   decimal.Decimal
	BidOffset   Offset
	AskOffset   Offset
	Status      Status
	Datetime    time.Time
	Reference   string
	AdapterName string
}

// VtSymbol returns the instrument key of the quote.
func (q *QuoteData) VtSymbol() string {
	return VtSymbol(q.Symbol, q.Exchange)
}

// VtQuoteID is the composite quote key.
func (q *QuoteData) VtQuoteID() string {
	return CompositeKey(q.QuoteID, q.AdapterName)
}

// IsActive checks if the quote is still working at the venue.
func (q *QuoteData) IsActive() bool {
	return q.Status.IsActive()
}

// CreateCancelRequest builds the request that cancels this quote.
func (q *QuoteData) CreateCancelRequest() CancelRequest {
	return CancelRequest{
		OrderID:  q.QuoteID,
		Symbol:   q.Symbol,
		Exchange: q.Exchange,
	}
}
