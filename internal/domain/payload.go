package domain

// Payload is the closed set of values an event can carry. Handlers type-switch
// over it; anything outside the known records travels as *Custom.
type Payload interface {
	isPayload()
}

// Custom carries application defined data on custom event types.
type Custom struct {
	Data any
}

func (*TickData) isPayload()     {}
func (*OrderData) isPayload()    {}
func (*TradeData) isPayload()    {}
func (*PositionData) isPayload() {}
func (*AccountData) isPayload()  {}
func (*ContractData) isPayload() {}
func (*QuoteData) isPayload()    {}
func (*LogData) isPayload()      {}
func (*Custom) isPayload()       {}
