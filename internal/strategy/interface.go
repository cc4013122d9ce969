// Package strategy runs tick-driven trading strategies as a pluggable app of
// the main engine.
package strategy

import (
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
)

// ActionType defines the type of trading action
type ActionType int

const (
	ActionBuy  ActionType = iota + 1
	ActionSell // Sell
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Direction maps the action to an order direction.
func (a ActionType) Direction() domain.Direction {
	if a == ActionSell {
		return domain.DirectionShort
	}
	return domain.DirectionLong
}

// Action represents a decision made by the strategy
type Action struct {
	Type     ActionType
	VtSymbol string
	Price    decimal.Decimal
	Volume   decimal.Decimal
}

// Strategy is the interface that all trading strategies must implement.
// OnTick is called on the bus dispatch goroutine, one tick at a time.
type Strategy interface {
	Name() string
	// VtSymbols lists the instruments whose ticks the strategy receives.
	VtSymbols() []string
	OnTick(tick *domain.TickData) []Action
}
