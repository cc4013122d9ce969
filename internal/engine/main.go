package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"trade_core/internal/converter"
	"trade_core/internal/domain"
	"trade_core/internal/event"
	"trade_core/internal/gateway"
	"trade_core/internal/infra"
	"trade_core/internal/infra/storage"
	"trade_core/internal/oms"
)

const source = "MainEngine"

// Option configures a MainEngine.
type Option func(*options)

type options struct {
	bus        *event.Bus
	registry   prometheus.Registerer
	mailSender SendFunc
	converter  []converter.Option
}

// WithBus makes the main engine use (and start) an existing bus.
func WithBus(bus *event.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithRegistry registers bus and order store metrics on registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(o *options) { o.registry = registry }
}

// WithMailSender replaces SMTP delivery of the email engine.
func WithMailSender(send SendFunc) Option {
	return func(o *options) { o.mailSender = send }
}

// WithConverterOptions configures every offset converter the order store creates.
func WithConverterOptions(opts ...converter.Option) Option {
	return func(o *options) { o.converter = append(o.converter, opts...) }
}

// MainEngine owns the bus, the adapters and the internal engines, routes
// commands to adapters and answers queries from the order store.
type MainEngine struct {
	cfg    *infra.Config
	logger *slog.Logger
	bus    *event.Bus

	oms   *oms.Engine
	email *EmailEngine

	mu           sync.RWMutex
	adapters     map[string]gateway.Gateway
	adapterOrder []string
	engines      map[string]Engine
	engineOrder  []string
	apps         map[string]App
	appOrder     []string
	exchanges    []domain.Exchange

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	shutdown  event.ShutdownReport
}

// New starts the bus and registers the built-in engines: log sink, order
// store, email and, when enabled, the journal.
func New(cfg *infra.Config, logger *slog.Logger, opts ...Option) (*MainEngine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if o.bus == nil {
		o.bus = event.NewBus(cfg.BusConfig(), logger)
	}

	m := &MainEngine{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "main_engine")),
		bus:      o.bus,
		adapters: make(map[string]gateway.Gateway),
		engines:  make(map[string]Engine),
		apps:     make(map[string]App),
	}

	if err := m.initEngines(logger, o); err != nil {
		return nil, err
	}

	if o.registry != nil {
		if err := m.registerMetrics(o.registry); err != nil {
			m.closeEngines()
			return nil, err
		}
	}

	m.bus.Start()
	m.WriteLog("Main engine started", source)
	return m, nil
}

func (m *MainEngine) initEngines(logger *slog.Logger, o options) error {
	m.addEngine(NewLogEngine(m.bus, logger))

	m.oms = oms.New(m.bus, logger, o.converter...)
	m.addEngine(m.oms)

	m.email = NewEmailEngine(m.cfg.Email, o.mailSender, logger)
	m.addEngine(m.email)

	if m.cfg.Journal.Enabled {
		store, err := storage.NewStorage(m.cfg.Journal.Path)
		if err != nil {
			m.closeEngines()
			return fmt.Errorf("open journal: %w", err)
		}
		m.addEngine(NewJournalEngine(m.bus, store, logger))
	}
	return nil
}

func (m *MainEngine) registerMetrics(registry prometheus.Registerer) error {
	if err := m.bus.Metrics().Register(registry); err != nil {
		return fmt.Errorf("register bus metrics: %w", err)
	}
	for _, c := range m.oms.Collectors() {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("register order store metrics: %w", err)
		}
	}
	return nil
}

// closeEngines undoes a failed New: built engines close in reverse order.
func (m *MainEngine) closeEngines() {
	for _, name := range slices.Backward(m.engineOrder) {
		m.engines[name].Close()
	}
}

func (m *MainEngine) addEngine(e Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.engines[e.Name()]; !ok {
		m.engineOrder = append(m.engineOrder, e.Name())
	}
	m.engines[e.Name()] = e
}

// Bus returns the event bus owned by the main engine.
func (m *MainEngine) Bus() *event.Bus {
	return m.bus
}

// OMS returns the order store.
func (m *MainEngine) OMS() *oms.Engine {
	return m.oms
}

// ======================================================================================
// Registries
// ======================================================================================

// AddAdapter builds an adapter with factory and registers it under its name.
// An adapter name already in use keeps the first adapter.
func (m *MainEngine) AddAdapter(factory gateway.Factory, name string) gateway.Gateway {
	gw := factory(m.bus, name, m.logger)

	m.mu.Lock()
	if existing, ok := m.adapters[gw.Name()]; ok {
		m.mu.Unlock()
		m.writeLog(slog.LevelWarn, "Adapter already added: "+gw.Name(), source)
		return existing
	}
	m.adapters[gw.Name()] = gw
	m.adapterOrder = append(m.adapterOrder, gw.Name())
	for _, ex := range gw.Exchanges() {
		if !slices.Contains(m.exchanges, ex) {
			m.exchanges = append(m.exchanges, ex)
		}
	}
	m.mu.Unlock()

	m.logger.Info("Adapter added", slog.String("adapter", gw.Name()))
	return gw
}

// AddEngine builds an engine with factory and registers it.
func (m *MainEngine) AddEngine(factory Factory) (Engine, error) {
	e, err := factory(m, m.bus)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	_, dup := m.engines[e.Name()]
	m.mu.RUnlock()
	if dup {
		e.Close()
		return nil, fmt.Errorf("engine %q already added", e.Name())
	}

	m.addEngine(e)
	return e, nil
}

// AddApp registers app and its engine.
func (m *MainEngine) AddApp(app App) (Engine, error) {
	e, err := m.AddEngine(app.NewEngine)
	if err != nil {
		return nil, fmt.Errorf("app %s: %w", app.Name, err)
	}

	m.mu.Lock()
	if _, ok := m.apps[app.Name]; !ok {
		m.appOrder = append(m.appOrder, app.Name)
	}
	m.apps[app.Name] = app
	m.mu.Unlock()
	return e, nil
}

// GetAdapter returns the named adapter. A miss is logged and returns nil.
func (m *MainEngine) GetAdapter(name string) gateway.Gateway {
	m.mu.RLock()
	gw, ok := m.adapters[name]
	m.mu.RUnlock()

	if !ok {
		m.writeLog(slog.LevelWarn, "Adapter not found: "+name, source)
		return nil
	}
	return gw
}

// GetEngine returns the named engine. A miss is logged and returns nil.
func (m *MainEngine) GetEngine(name string) Engine {
	m.mu.RLock()
	e, ok := m.engines[name]
	m.mu.RUnlock()

	if !ok {
		m.writeLog(slog.LevelWarn, "Engine not found: "+name, source)
		return nil
	}
	return e
}

// GetDefaultSetting returns the connect setting template of an adapter.
func (m *MainEngine) GetDefaultSetting(adapterName string) map[string]any {
	gw := m.GetAdapter(adapterName)
	if gw == nil {
		return nil
	}
	return gw.DefaultSetting()
}

// GetAllGatewayNames returns adapter names in registration order.
func (m *MainEngine) GetAllGatewayNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.adapterOrder)
}

// GetAllApps returns apps in registration order.
func (m *MainEngine) GetAllApps() []App {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]App, 0, len(m.appOrder))
	for _, name := range m.appOrder {
		out = append(out, m.apps[name])
	}
	return out
}

// GetAllExchanges returns the union of the adapters' exchanges.
func (m *MainEngine) GetAllExchanges() []domain.Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.exchanges)
}

// GetConverter returns the offset converter of an adapter, or nil.
func (m *MainEngine) GetConverter(adapterName string) *converter.OffsetConverter {
	return m.oms.GetConverter(adapterName)
}

// ======================================================================================
// Logging and mail
// ======================================================================================

// WriteLog publishes msg as a log event. Components emit log events only
// through this method or their adapter base.
func (m *MainEngine) WriteLog(msg, source string) {
	m.writeLog(slog.LevelInfo, msg, source)
}

func (m *MainEngine) writeLog(level slog.Level, msg, source string) {
	m.bus.Put(event.New(event.TypeLog, domain.NewLogData(msg, source, level)))
}

// SendEmail queues a mail through the email engine.
func (m *MainEngine) SendEmail(subject, content, receiver string) {
	m.email.SendEmail(subject, content, receiver)
}

// ======================================================================================
// Commands
// ======================================================================================

// adapter resolves a command target. Lookup misses and commands after Close
// are logged and reported through err.
func (m *MainEngine) adapter(name, command string) (gateway.Gateway, error) {
	if m.closed.Load() {
		m.writeLog(slog.LevelWarn, command+" ignored, main engine closed", source)
		return nil, domain.ErrClosed
	}

	m.mu.RLock()
	gw, ok := m.adapters[name]
	m.mu.RUnlock()

	if !ok {
		err := domain.NewLookupError("adapter", name)
		m.writeLog(slog.LevelWarn, command+" failed: "+err.Error(), source)
		return nil, err
	}
	return gw, nil
}

// Connect connects the named adapter.
func (m *MainEngine) Connect(ctx context.Context, setting map[string]any, adapterName string) error {
	gw, err := m.adapter(adapterName, "Connect")
	if err != nil {
		return err
	}
	if err := gw.Connect(ctx, setting); err != nil {
		m.writeLog(slog.LevelError, "Connect failed: "+err.Error(), adapterName)
		return fmt.Errorf("connect %s: %w", adapterName, err)
	}
	return nil
}

// Subscribe forwards a market data subscription.
func (m *MainEngine) Subscribe(req domain.SubscribeRequest, adapterName string) {
	if gw, err := m.adapter(adapterName, "Subscribe"); err == nil {
		gw.Subscribe(req)
	}
}

// SendOrder sends req and returns the order key, or "" on failure. The
// adapter's converter learns about the request before any order event.
func (m *MainEngine) SendOrder(req domain.OrderRequest, adapterName string) string {
	gw, err := m.adapter(adapterName, "SendOrder")
	if err != nil {
		return ""
	}
	vtOrderID := gw.SendOrder(req)
	if vtOrderID != "" {
		m.oms.UpdateOrderRequest(req, vtOrderID, adapterName)
	}
	return vtOrderID
}

// CancelOrder forwards a cancel.
func (m *MainEngine) CancelOrder(req domain.CancelRequest, adapterName string) {
	if gw, err := m.adapter(adapterName, "CancelOrder"); err == nil {
		gw.CancelOrder(req)
	}
}

// SendQuote sends a quote and returns its key, or "" on failure.
func (m *MainEngine) SendQuote(req domain.QuoteRequest, adapterName string) string {
	gw, err := m.adapter(adapterName, "SendQuote")
	if err != nil {
		return ""
	}
	return gw.SendQuote(req)
}

// CancelQuote forwards a quote cancel.
func (m *MainEngine) CancelQuote(req domain.CancelRequest, adapterName string) {
	if gw, err := m.adapter(adapterName, "CancelQuote"); err == nil {
		gw.CancelQuote(req)
	}
}

// QueryAccount asks the adapter to republish its accounts.
func (m *MainEngine) QueryAccount(adapterName string) {
	if gw, err := m.adapter(adapterName, "QueryAccount"); err == nil {
		gw.QueryAccount()
	}
}

// QueryPosition asks the adapter to republish its positions.
func (m *MainEngine) QueryPosition(adapterName string) {
	if gw, err := m.adapter(adapterName, "QueryPosition"); err == nil {
		gw.QueryPosition()
	}
}

// QueryHistory returns bars from the adapter. A lookup miss returns no bars
// and the lookup error.
func (m *MainEngine) QueryHistory(ctx context.Context, req domain.HistoryRequest, adapterName string) ([]*domain.BarData, error) {
	gw, err := m.adapter(adapterName, "QueryHistory")
	if err != nil {
		return nil, err
	}
	return gw.QueryHistory(ctx, req)
}

// ConvertOrderRequest resolves offsets through the adapter's converter, or
// passes req through when none exists yet.
func (m *MainEngine) ConvertOrderRequest(req domain.OrderRequest, adapterName string, lock, net bool) []domain.OrderRequest {
	return m.oms.ConvertOrderRequest(req, adapterName, lock, net)
}

// SendConvertedOrders converts req and sends every resulting piece. It
// returns the keys of the pieces the adapter accepted.
func (m *MainEngine) SendConvertedOrders(req domain.OrderRequest, adapterName string, lock, net bool) []string {
	var keys []string
	for _, r := range m.ConvertOrderRequest(req, adapterName, lock, net) {
		if key := m.SendOrder(r, adapterName); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// ======================================================================================
// Queries
// ======================================================================================

func (m *MainEngine) GetTick(vtSymbol string) *domain.TickData          { return m.oms.GetTick(vtSymbol) }
func (m *MainEngine) GetOrder(vtOrderID string) *domain.OrderData       { return m.oms.GetOrder(vtOrderID) }
func (m *MainEngine) GetTrade(vtTradeID string) *domain.TradeData       { return m.oms.GetTrade(vtTradeID) }
func (m *MainEngine) GetPosition(key string) *domain.PositionData       { return m.oms.GetPosition(key) }
func (m *MainEngine) GetAccount(vtAccountID string) *domain.AccountData { return m.oms.GetAccount(vtAccountID) }
func (m *MainEngine) GetContract(vtSymbol string) *domain.ContractData  { return m.oms.GetContract(vtSymbol) }
func (m *MainEngine) GetQuote(vtQuoteID string) *domain.QuoteData       { return m.oms.GetQuote(vtQuoteID) }

func (m *MainEngine) GetAllTicks() []*domain.TickData         { return m.oms.GetAllTicks() }
func (m *MainEngine) GetAllOrders() []*domain.OrderData       { return m.oms.GetAllOrders() }
func (m *MainEngine) GetAllTrades() []*domain.TradeData       { return m.oms.GetAllTrades() }
func (m *MainEngine) GetAllPositions() []*domain.PositionData { return m.oms.GetAllPositions() }
func (m *MainEngine) GetAllAccounts() []*domain.AccountData   { return m.oms.GetAllAccounts() }
func (m *MainEngine) GetAllContracts() []*domain.ContractData { return m.oms.GetAllContracts() }
func (m *MainEngine) GetAllQuotes() []*domain.QuoteData       { return m.oms.GetAllQuotes() }

func (m *MainEngine) GetAllActiveOrders(vtSymbol string) []*domain.OrderData {
	return m.oms.GetAllActiveOrders(vtSymbol)
}

func (m *MainEngine) GetAllActiveQuotes(vtSymbol string) []*domain.QuoteData {
	return m.oms.GetAllActiveQuotes(vtSymbol)
}

// ======================================================================================
// Shutdown
// ======================================================================================

// Close stops the bus, then closes engines and adapters in registration
// order. Only the first call does anything; later calls return its result.
func (m *MainEngine) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)

		m.shutdown = m.bus.Stop()
		if !m.shutdown.Clean() {
			m.logger.Warn("Event bus did not stop cleanly",
				slog.Bool("dispatch_stopped", m.shutdown.DispatchStopped),
				slog.Bool("timer_stopped", m.shutdown.TimerStopped))
		}

		m.mu.RLock()
		engines := make([]Engine, 0, len(m.engineOrder))
		for _, name := range m.engineOrder {
			engines = append(engines, m.engines[name])
		}
		adapters := make([]gateway.Gateway, 0, len(m.adapterOrder))
		for _, name := range m.adapterOrder {
			adapters = append(adapters, m.adapters[name])
		}
		m.mu.RUnlock()

		var errs []error
		for _, e := range engines {
			if err := e.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close engine %s: %w", e.Name(), err))
			}
		}
		for _, gw := range adapters {
			if err := gw.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close adapter %s: %w", gw.Name(), err))
			}
		}
		m.closeErr = errors.Join(errs...)
		m.logger.Info("Main engine closed")
	})
	return m.closeErr
}

// ShutdownReport returns the bus outcome of Close.
func (m *MainEngine) ShutdownReport() event.ShutdownReport {
	return m.shutdown
}
