package strategy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_core/internal/domain"
	"trade_core/internal/engine"
	"trade_core/internal/event"
	"trade_core/internal/gateway"
	"trade_core/internal/infra"
)

func TestStrategyAppTradesOnCross(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg, err := infra.ParseConfig([]byte("bus:\n  timer_interval_ms: 3600000\n  poll_interval_ms: 10\n"))
	require.NoError(t, err)

	m, err := engine.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	m.AddAdapter(gateway.NewPaper, "")
	require.NoError(t, m.Connect(context.Background(), map[string]any{"contracts": []any{"rb2405.SHFE"}}, gateway.PaperName))

	sma, err := NewSMACrossStrategy("rb2405.SHFE", 3, 5, decimal.NewFromInt(1))
	require.NoError(t, err)
	e, err := m.AddApp(NewApp(gateway.PaperName, logger, sma))
	require.NoError(t, err)
	assert.Equal(t, "strategy.PAPER", e.Name())
	assert.Same(t, e, m.GetEngine("strategy.PAPER"))
	e.(*Engine).Subscribe()
	assert.Equal(t, 1, m.Bus().HandlerCount(event.TypeTick.Sub("rb2405.SHFE")))

	feed := gateway.NewBase(m.Bus(), gateway.PaperName, logger)
	push := func(prices ...int64) {
		for _, p := range prices {
			feed.OnTick(&domain.TickData{
				Symbol: "rb2405", Exchange: domain.ExchangeSHFE,
				LastPrice: decimal.NewFromInt(p), AdapterName: gateway.PaperName,
			})
		}
	}
	longVolume := func(want int64) func() bool {
		return func() bool {
			p := m.GetPosition("rb2405.SHFE.LONG.PAPER")
			return p != nil && p.Volume.Equal(decimal.NewFromInt(want))
		}
	}

	push(100, 100, 100, 100, 100, 200)
	require.Eventually(t, longVolume(1), time.Second, 5*time.Millisecond)

	push(50, 0)
	require.Eventually(t, longVolume(0), time.Second, 5*time.Millisecond)
	assert.Nil(t, m.GetPosition("rb2405.SHFE.SHORT.PAPER"))

	var offsets []domain.Offset
	for _, tr := range m.GetAllTrades() {
		if tr.Direction == domain.DirectionShort {
			offsets = append(offsets, tr.Offset)
		}
	}
	assert.Equal(t, []domain.Offset{domain.OffsetCloseToday}, offsets)

	require.NoError(t, m.Close())
	assert.Zero(t, m.Bus().HandlerCount(event.TypeTick.Sub("rb2405.SHFE")))
}

func TestNewAppRequiresAdapter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg, err := infra.ParseConfig([]byte("bus:\n  timer_interval_ms: 3600000\n  poll_interval_ms: 10\n"))
	require.NoError(t, err)
	m, err := engine.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	_, err = m.AddApp(NewApp("", logger))
	assert.Error(t, err)
	assert.Empty(t, m.GetAllApps())
}
