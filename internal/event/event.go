// Package event implements the in-process publish/subscribe bus that connects
// adapters, the order management store and application engines.
package event

import "trade_core/internal/domain"

// Type tags an event. Record types end with a dot so that per-instrument or
// per-order sub-types can be formed with Sub.
type Type string

const (
	TypeTimer    Type = "eTimer"
	TypeLog      Type = "eLog"
	TypeTick     Type = "eTick."
	TypeTrade    Type = "eTrade."
	TypeOrder    Type = "eOrder."
	TypePosition Type = "ePosition."
	TypeAccount  Type = "eAccount."
	TypeQuote    Type = "eQuote."
	TypeContract Type = "eContract."
)

// Sub returns the sub-type of t for one key, e.g. "eTick.rb2405.SHFE".
func (t Type) Sub(key string) Type {
	return t + Type(key)
}

// Event is an immutable envelope. Data is nil for timer events.
type Event struct {
	Type Type
	Data domain.Payload
}

// New creates an event carrying one of the known payloads.
func New(typ Type, data domain.Payload) Event {
	return Event{Type: typ, Data: data}
}

// NewCustom wraps arbitrary application data.
func NewCustom(typ Type, data any) Event {
	return Event{Type: typ, Data: &domain.Custom{Data: data}}
}

// HandlerFunc processes one event. A returned error or a panic is logged by
// the bus and never reaches other handlers.
type HandlerFunc func(Event) error

// Handler is a registered subscriber. Registration is keyed by pointer
// identity, so the same *Handler can be registered at most once per type.
type Handler struct {
	name string
	fn   HandlerFunc
}

// NewHandler names fn for logging and registration.
func NewHandler(name string, fn HandlerFunc) *Handler {
	return &Handler{name: name, fn: fn}
}

// Name returns the identity used in failure logs.
func (h *Handler) Name() string {
	return h.name
}
