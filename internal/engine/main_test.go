package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_core/internal/domain"
	"trade_core/internal/event"
	"trade_core/internal/gateway"
	"trade_core/internal/infra"
	"trade_core/internal/infra/storage"
)

const testConfig = `
bus:
  timer_interval_ms: 3600000
  poll_interval_ms: 10
  join_timeout_ms: 500
`

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testCfg(t *testing.T, extra string) *infra.Config {
	t.Helper()
	cfg, err := infra.ParseConfig([]byte(testConfig + extra))
	require.NoError(t, err)
	return cfg
}

func newMain(t *testing.T, opts ...Option) *MainEngine {
	t.Helper()
	m, err := New(testCfg(t, ""), discard(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

type logRecorder struct {
	mu   sync.Mutex
	logs []*domain.LogData
}

func recordLogs(bus *event.Bus) *logRecorder {
	r := &logRecorder{}
	bus.Register(event.TypeLog, event.NewHandler("test.logs", func(ev event.Event) error {
		r.mu.Lock()
		r.logs = append(r.logs, ev.Data.(*domain.LogData))
		r.mu.Unlock()
		return nil
	}))
	return r
}

func (r *logRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if strings.Contains(l.Msg, substr) {
			return true
		}
	}
	return false
}

func TestSendOrderUnknownAdapter(t *testing.T) {
	m := newMain(t)
	logs := recordLogs(m.Bus())

	key := m.SendOrder(domain.OrderRequest{Symbol: "rb2405", Exchange: domain.ExchangeSHFE}, "NOPE")
	assert.Empty(t, key)
	assert.Eventually(t, func() bool { return logs.contains("adapter not found: NOPE") }, time.Second, 5*time.Millisecond)
}

func TestLookupFailuresReturnSentinels(t *testing.T) {
	m := newMain(t)

	err := m.Connect(context.Background(), nil, "NOPE")
	assert.ErrorIs(t, err, domain.ErrAdapterNotFound)
	var lookup *domain.LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "NOPE", lookup.Name)

	bars, err := m.QueryHistory(context.Background(), domain.HistoryRequest{}, "NOPE")
	assert.ErrorIs(t, err, domain.ErrAdapterNotFound)
	assert.Nil(t, bars)

	assert.Empty(t, m.SendQuote(domain.QuoteRequest{}, "NOPE"))
	assert.Nil(t, m.GetAdapter("NOPE"))
	assert.Nil(t, m.GetEngine("NOPE"))
	assert.Nil(t, m.GetDefaultSetting("NOPE"))

	m.Subscribe(domain.SubscribeRequest{}, "NOPE")
	m.CancelOrder(domain.CancelRequest{}, "NOPE")
	m.CancelQuote(domain.CancelRequest{}, "NOPE")
	m.QueryAccount("NOPE")
	m.QueryPosition("NOPE")
}

func TestConvertPassThroughWithoutContract(t *testing.T) {
	m := newMain(t)

	req := domain.OrderRequest{Symbol: "rb2405", Exchange: domain.ExchangeSHFE, Direction: domain.DirectionLong, Volume: dec(3)}
	assert.Equal(t, []domain.OrderRequest{req}, m.ConvertOrderRequest(req, gateway.PaperName, false, false))
	assert.Nil(t, m.GetConverter(gateway.PaperName))
}

func TestRegistries(t *testing.T) {
	m := newMain(t)

	a := m.AddAdapter(gateway.NewPaper, "A")
	m.AddAdapter(gateway.NewPaper, "B")
	assert.Same(t, a, m.AddAdapter(gateway.NewPaper, "A"))

	assert.Equal(t, []string{"A", "B"}, m.GetAllGatewayNames())
	assert.Len(t, m.GetAllExchanges(), len(a.Exchanges()))
	assert.Contains(t, m.GetDefaultSetting("A"), "fill_on_send")

	for _, name := range []string{LogEngineName, "oms", EmailEngineName} {
		assert.NotNil(t, m.GetEngine(name), name)
	}
	assert.Nil(t, m.GetEngine(JournalEngineName))

	app := App{Name: "probe", DisplayName: "Probe", NewEngine: probeFactory("probe", nil)}
	e, err := m.AddApp(app)
	require.NoError(t, err)
	assert.Equal(t, "probe", e.Name())
	require.Len(t, m.GetAllApps(), 1)
	assert.Equal(t, "Probe", m.GetAllApps()[0].DisplayName)

	_, err = m.AddEngine(probeFactory("probe", nil))
	assert.Error(t, err)
}

func TestPaperRoundTrip(t *testing.T) {
	m := newMain(t)
	m.AddAdapter(gateway.NewPaper, "")

	require.NoError(t, m.Connect(context.Background(), map[string]any{
		"contracts": []any{"rb2405.SHFE"},
	}, gateway.PaperName))
	require.Eventually(t, func() bool { return m.GetConverter(gateway.PaperName) != nil }, time.Second, 5*time.Millisecond)
	assert.NotNil(t, m.GetContract("rb2405.SHFE"))

	key := m.SendOrder(domain.OrderRequest{
		Symbol: "rb2405", Exchange: domain.ExchangeSHFE, Direction: domain.DirectionLong,
		Type: domain.OrderTypeLimit, Offset: domain.OffsetOpen, Volume: dec(2), Price: dec(3500),
	}, gateway.PaperName)
	require.Equal(t, "1.PAPER", key)

	require.Eventually(t, func() bool {
		o := m.GetOrder(key)
		return o != nil && o.Status == domain.StatusAllTraded
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.GetAllActiveOrders(""))

	require.Eventually(t, func() bool {
		p := m.GetPosition("rb2405.SHFE.LONG.PAPER")
		return p != nil && p.Volume.Equal(dec(2))
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, m.GetAllTrades(), 1)
	assert.NotNil(t, m.GetAccount("paper.PAPER"))
}

func TestSendConvertedOrdersSplitsCloseToday(t *testing.T) {
	m := newMain(t)
	paper := m.AddAdapter(gateway.NewPaper, "").(*gateway.Paper)
	require.NoError(t, m.Connect(context.Background(), map[string]any{"contracts": []any{"rb2405.SHFE"}}, gateway.PaperName))
	require.Eventually(t, func() bool { return m.GetConverter(gateway.PaperName) != nil }, time.Second, 5*time.Millisecond)

	open := domain.OrderRequest{
		Symbol: "rb2405", Exchange: domain.ExchangeSHFE, Direction: domain.DirectionLong,
		Type: domain.OrderTypeLimit, Offset: domain.OffsetOpen, Volume: dec(5), Price: dec(3500),
	}
	require.NotEmpty(t, m.SendOrder(open, gateway.PaperName))
	paper.Settle()

	open.Volume = dec(2)
	require.NotEmpty(t, m.SendOrder(open, gateway.PaperName))

	conv := m.GetConverter(gateway.PaperName)
	require.Eventually(t, func() bool {
		h, ok := conv.Holding("rb2405.SHFE")
		return ok && h.LongPos.Equal(dec(7)) && h.LongYd.Equal(dec(5))
	}, time.Second, 5*time.Millisecond)

	closeReq := domain.OrderRequest{
		Symbol: "rb2405", Exchange: domain.ExchangeSHFE, Direction: domain.DirectionShort,
		Type: domain.OrderTypeLimit, Volume: dec(4), Price: dec(3510),
	}
	keys := m.SendConvertedOrders(closeReq, gateway.PaperName, false, false)
	require.Len(t, keys, 2)

	require.Eventually(t, func() bool {
		p := m.GetPosition("rb2405.SHFE.LONG.PAPER")
		return p != nil && p.Volume.Equal(dec(3)) && p.YdVolume.Equal(dec(3))
	}, time.Second, 5*time.Millisecond)

	first := m.GetOrder(keys[0])
	require.NotNil(t, first)
	assert.Equal(t, domain.OffsetCloseToday, first.Offset)
	second := m.GetOrder(keys[1])
	require.NotNil(t, second)
	assert.Equal(t, domain.OffsetCloseYesterday, second.Offset)
}

// closeRecorder notes the order in which components close.
type closeRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *closeRecorder) add(name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

type probeEngine struct {
	name string
	rec  *closeRecorder
}

func (p *probeEngine) Name() string { return p.name }

func (p *probeEngine) Close() error {
	if p.rec != nil {
		p.rec.add("engine:" + p.name)
	}
	return nil
}

func probeFactory(name string, rec *closeRecorder) Factory {
	return func(*MainEngine, *event.Bus) (Engine, error) {
		return &probeEngine{name: name, rec: rec}, nil
	}
}

// noisyAdapter publishes an order while closing.
type noisyAdapter struct {
	gateway.Base
	rec *closeRecorder
}

func newNoisyAdapter(rec *closeRecorder) gateway.Factory {
	return func(bus *event.Bus, name string, logger *slog.Logger) gateway.Gateway {
		return &noisyAdapter{Base: gateway.NewBase(bus, name, logger), rec: rec}
	}
}

func (a *noisyAdapter) Exchanges() []domain.Exchange                  { return []domain.Exchange{domain.ExchangeLOCAL} }
func (a *noisyAdapter) DefaultSetting() map[string]any                { return map[string]any{} }
func (a *noisyAdapter) Connect(context.Context, map[string]any) error { return nil }
func (a *noisyAdapter) Subscribe(domain.SubscribeRequest)             {}
func (a *noisyAdapter) SendOrder(domain.OrderRequest) string          { return "" }
func (a *noisyAdapter) CancelOrder(domain.CancelRequest)              {}
func (a *noisyAdapter) SendQuote(domain.QuoteRequest) string          { return "" }
func (a *noisyAdapter) CancelQuote(domain.CancelRequest)              {}
func (a *noisyAdapter) QueryAccount()                                 {}
func (a *noisyAdapter) QueryPosition()                                {}
func (a *noisyAdapter) QueryHistory(context.Context, domain.HistoryRequest) ([]*domain.BarData, error) {
	return nil, nil
}

func (a *noisyAdapter) Close() error {
	a.rec.add("adapter:" + a.Name())
	a.OnOrder(&domain.OrderData{
		Symbol: "x", Exchange: domain.ExchangeLOCAL, OrderID: "late",
		Status: domain.StatusNotTraded, AdapterName: a.Name(),
	})
	return nil
}

func TestCloseOrdering(t *testing.T) {
	rec := &closeRecorder{}
	m := newMain(t)
	m.AddAdapter(newNoisyAdapter(rec), "N1")
	m.AddAdapter(newNoisyAdapter(rec), "N2")
	_, err := m.AddEngine(probeFactory("probe", rec))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.False(t, m.Bus().Active())
	assert.True(t, m.ShutdownReport().Clean())
	assert.Equal(t, []string{"engine:probe", "adapter:N1", "adapter:N2"}, rec.names)

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, m.GetOrder("late.N1"))
	assert.Empty(t, m.GetAllOrders())
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newMain(t)
	m.AddAdapter(gateway.NewPaper, "")

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Empty(t, m.SendOrder(domain.OrderRequest{}, gateway.PaperName))
	assert.ErrorIs(t, m.Connect(context.Background(), nil, gateway.PaperName), domain.ErrClosed)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWriteLogReachesLogger(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	m, err := New(testCfg(t, ""), logger)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	m.WriteLog("risk limit reached", "RiskEngine")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "risk limit reached") }, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), `"source":"RiskEngine"`)
}

func TestJournalPersistsOrdersAndTrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	m, err := New(testCfg(t, "journal:\n  enabled: true\n  path: "+path+"\n"), discard())
	require.NoError(t, err)
	require.NotNil(t, m.GetEngine(JournalEngineName))

	m.AddAdapter(gateway.NewPaper, "")
	require.NoError(t, m.Connect(context.Background(), map[string]any{"contracts": []any{"rb2405.SHFE"}}, gateway.PaperName))
	key := m.SendOrder(domain.OrderRequest{
		Symbol: "rb2405", Exchange: domain.ExchangeSHFE, Direction: domain.DirectionLong,
		Type: domain.OrderTypeLimit, Offset: domain.OffsetOpen, Volume: dec(1), Price: dec(3500),
	}, gateway.PaperName)
	require.NotEmpty(t, key)
	require.Eventually(t, func() bool { return len(m.GetAllTrades()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Close())

	store, err := storage.NewStorage(path)
	require.NoError(t, err)
	defer store.Close()

	order, err := store.GetOrder(key)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.StatusAllTraded, order.Status)

	n, err := store.CountTrades()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMain(t, WithRegistry(reg))
	m.WriteLog("hello", "test")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["eventbus_events_put_total"])
	assert.True(t, names["oms_active_orders"])
}

func TestMetricsRegistrationFailureClosesEngines(t *testing.T) {
	reg := prometheus.NewRegistry()
	newMain(t, WithRegistry(reg))

	bus := event.NewBus(testCfg(t, "").BusConfig(), discard())
	cfg := testCfg(t, "journal:\n  enabled: true\n  path: "+filepath.Join(t.TempDir(), "journal.db")+"\n")
	m, err := New(cfg, discard(), WithBus(bus), WithRegistry(reg))
	require.Error(t, err, "bus metric names are already taken")
	assert.Nil(t, m)

	assert.False(t, bus.Active())
	assert.Zero(t, bus.HandlerCount(event.TypeLog))
	assert.Zero(t, bus.HandlerCount(event.TypeOrder))
	assert.Zero(t, bus.HandlerCount(event.TypeTrade))
	assert.Zero(t, bus.HandlerCount(event.TypeContract))
}

func TestSendEmailThroughMainEngine(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	sender := func(from string, to []string, msg []byte) error {
		mu.Lock()
		sent = append(sent, to[0])
		mu.Unlock()
		return nil
	}

	cfg := testCfg(t, "email:\n  enabled: true\n  server: smtp.example.com\n  sender: bot@example.com\n  receiver: desk@example.com\n")
	m, err := New(cfg, discard(), WithMailSender(sender))
	require.NoError(t, err)

	m.SendEmail("fill", "order 1 filled", "")
	require.NoError(t, m.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"desk@example.com"}, sent)
}

func TestJournalOpenFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := New(testCfg(t, "journal:\n  enabled: true\n  path: "+filepath.Join(blocker, "sub", "journal.db")+"\n"), discard())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrClosed))
}
