package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompositeKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantLocal string
		wantCode  string
	}{
		{"simple", CompositeKey("1001", "PAPER"), "1001", "PAPER"},
		{"vt symbol", VtSymbol("rb2405", ExchangeSHFE), "rb2405", "SHFE"},
		{"dotted local id", CompositeKey("rb2405.SHFE.LONG", "PAPER"), "rb2405.SHFE.LONG", "PAPER"},
		{"no dot", "K1", "K1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, code := SplitKey(tt.key)
			if local != tt.wantLocal || code != tt.wantCode {
				t.Errorf("SplitKey(%q) = (%q, %q), want (%q, %q)", tt.key, local, code, tt.wantLocal, tt.wantCode)
			}
		})
	}
}

func TestRecordKeys(t *testing.T) {
	pos := &PositionData{Symbol: "rb2405", Exchange: ExchangeSHFE, Direction: DirectionLong, AdapterName: "PAPER"}
	if got := pos.VtPositionID(); got != "rb2405.SHFE.LONG.PAPER" {
		t.Errorf("VtPositionID = %q", got)
	}

	order := &OrderData{Symbol: "rb2405", Exchange: ExchangeSHFE, OrderID: "7", AdapterName: "PAPER"}
	if got := order.VtOrderID(); got != "7.PAPER" {
		t.Errorf("VtOrderID = %q", got)
	}

	acc := &AccountData{AccountID: "main", Balance: decimal.NewFromInt(100), Frozen: decimal.NewFromInt(30), AdapterName: "PAPER"}
	if got := acc.VtAccountID(); got != "main.PAPER" {
		t.Errorf("VtAccountID = %q", got)
	}
	if !acc.Available().Equal(decimal.NewFromInt(70)) {
		t.Errorf("Available = %s, want 70", acc.Available())
	}
}

func TestStatusIsActive(t *testing.T) {
	active := []Status{StatusSubmitting, StatusNotTraded, StatusPartTraded}
	terminal := []Status{StatusAllTraded, StatusCancelled, StatusRejected}

	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range terminal {
		if s.IsActive() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestOrderRequestCreateOrderData(t *testing.T) {
	req := OrderRequest{
		Symbol:    "rb2405",
		Exchange:  ExchangeSHFE,
		Direction: DirectionLong,
		Type:      OrderTypeLimit,
		Volume:    decimal.NewFromInt(3),
		Price:     decimal.NewFromInt(3500),
		Offset:    OffsetOpen,
	}

	order := req.CreateOrderData("42", "PAPER")
	if order.Status != StatusSubmitting {
		t.Errorf("Expected SUBMITTING, got %s", order.Status)
	}
	if order.VtOrderID() != "42.PAPER" {
		t.Errorf("Expected key 42.PAPER, got %s", order.VtOrderID())
	}
	if !order.Remaining().Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected remaining 3, got %s", order.Remaining())
	}
}
