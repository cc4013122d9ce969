package strategy_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
	"trade_core/internal/strategy"
)

// BenchmarkSMACrossStrategy_OnTick measures strategy computation speed in steady state.
func BenchmarkSMACrossStrategy_OnTick(b *testing.B) {
	strat, _ := strategy.NewSMACrossStrategy("rb2405.SHFE", 20, 50, decimal.NewFromInt(1))

	// Pre-fill buffer to reach steady state
	for i := 0; i < 50; i++ {
		strat.OnTick(tick(3500 + int64(i)))
	}

	t := &domain.TickData{Symbol: "rb2405", Exchange: domain.ExchangeSHFE}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		t.LastPrice = decimal.NewFromInt(3500 + int64(i%100))
		strat.OnTick(t)
	}
}
