package strategy_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
	"trade_core/internal/strategy"
)

func tick(price int64) *domain.TickData {
	return &domain.TickData{
		Symbol:    "rb2405",
		Exchange:  domain.ExchangeSHFE,
		LastPrice: decimal.NewFromInt(price),
	}
}

func TestSMACrossStrategy(t *testing.T) {
	// Setup: Short=3, Long=5
	strat, err := strategy.NewSMACrossStrategy("rb2405.SHFE", 3, 5, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("NewSMACrossStrategy failed: %v", err)
	}

	// T1-T5: All 100, buffer fills, no previous averages yet
	for i := 0; i < 5; i++ {
		actions := strat.OnTick(tick(100))
		if len(actions) > 0 {
			t.Errorf("T%d: Expected no actions, got %v", i+1, actions)
		}
	}

	// T6: Short(3) = 133.3 > Long(5) = 120 => golden cross
	actions := strat.OnTick(tick(200))
	if len(actions) != 1 {
		t.Fatalf("T6: Expected 1 action (BUY), got %d", len(actions))
	}
	if actions[0].Type != strategy.ActionBuy {
		t.Errorf("T6: Expected BUY, got %s", actions[0].Type)
	}
	if !actions[0].Price.Equal(decimal.NewFromInt(200)) {
		t.Errorf("T6: Expected price 200, got %s", actions[0].Price)
	}

	// T7: Short = 116.7, Long = 110, still above
	actions = strat.OnTick(tick(50))
	if len(actions) != 0 {
		t.Errorf("T7: Expected no actions, got %v", actions)
	}

	// T8: Short = 83.3 < Long = 90 => dead cross
	actions = strat.OnTick(tick(0))
	if len(actions) != 1 {
		t.Fatalf("T8: Expected 1 action (SELL), got %d", len(actions))
	}
	if actions[0].Type != strategy.ActionSell {
		t.Errorf("T8: Expected SELL, got %s", actions[0].Type)
	}
	if actions[0].Type.Direction() != domain.DirectionShort {
		t.Errorf("T8: Expected SHORT direction, got %s", actions[0].Type.Direction())
	}
}

func TestSMACrossStrategy_IgnoresOtherSymbols(t *testing.T) {
	strat, _ := strategy.NewSMACrossStrategy("hc2405.SHFE", 2, 3, decimal.NewFromInt(1))
	for _, p := range []int64{100, 100, 100, 200, 50} {
		if actions := strat.OnTick(tick(p)); len(actions) != 0 {
			t.Fatalf("Expected no actions for foreign symbol, got %v", actions)
		}
	}
}

func TestNewSMACrossStrategy_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		short, long int
		volume      int64
	}{
		{"short equals long", 5, 5, 1},
		{"short above long", 6, 5, 1},
		{"zero short", 0, 5, 1},
		{"zero volume", 3, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := strategy.NewSMACrossStrategy("rb2405.SHFE", tt.short, tt.long, decimal.NewFromInt(tt.volume)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestActionType_String(t *testing.T) {
	if strategy.ActionBuy.String() != "BUY" || strategy.ActionSell.String() != "SELL" {
		t.Error("unexpected action names")
	}
	if strategy.ActionType(0).String() != "UNKNOWN" {
		t.Error("Expected UNKNOWN for zero action")
	}
}
