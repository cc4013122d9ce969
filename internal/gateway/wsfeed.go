package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// WSFeedName is the default name of the websocket market data adapter.
const WSFeedName = "WSFEED"

const (
	wsMaxRetries       = 10
	wsBaseDelay        = 1 * time.Second
	wsMaxDelay         = 60 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsHandshakeTimeout = 10 * time.Second
	wsUserAgent        = "trade_core/wsfeed"
)

// wsTickMessage is one market data update of the feed:
//
//	{"type":"tick","symbol":"BTCUSDT","exchange":"BINANCE","last_price":"65000.5", ...,"ts":1712000000000}
//
// Prices and volumes may be JSON numbers or strings.
type wsTickMessage struct {
	Type       string          `json:"type"`
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	LastPrice  decimal.Decimal `json:"last_price"`
	LastVolume decimal.Decimal `json:"last_volume"`
	Volume     decimal.Decimal `json:"volume"`
	HighPrice  decimal.Decimal `json:"high_price"`
	LowPrice   decimal.Decimal `json:"low_price"`
	BidPrice   decimal.Decimal `json:"bid_price"`
	BidVolume  decimal.Decimal `json:"bid_volume"`
	AskPrice   decimal.Decimal `json:"ask_price"`
	AskVolume  decimal.Decimal `json:"ask_volume"`
	Timestamp  int64           `json:"ts"` // Unix milliseconds
}

type wsSubscribeMessage struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// WSFeed is a market data only adapter. It streams ticks from a JSON
// websocket feed and reconnects with exponential backoff. Trading commands
// are rejected.
type WSFeed struct {
	Base

	mu         sync.RWMutex
	url        string
	conn       *websocket.Conn
	connected  bool
	contracts  map[string]*domain.ContractData
	subscribed map[string]struct{}
	cancel     context.CancelFunc
	wg         *conc.WaitGroup
	baseDelay  time.Duration

	writeMu sync.Mutex
}

// NewWSFeed builds a websocket feed adapter. It satisfies Factory.
func NewWSFeed(bus *event.Bus, name string, logger *slog.Logger) Gateway {
	if name == "" {
		name = WSFeedName
	}
	return &WSFeed{
		Base:       NewBase(bus, name, logger),
		contracts:  make(map[string]*domain.ContractData),
		subscribed: make(map[string]struct{}),
		baseDelay:  wsBaseDelay,
	}
}

func (f *WSFeed) Exchanges() []domain.Exchange {
	return []domain.Exchange{domain.ExchangeBINANCE, domain.ExchangeOKX, domain.ExchangeSMART, domain.ExchangeLOCAL}
}

func (f *WSFeed) DefaultSetting() map[string]any {
	return map[string]any{
		"url":       "",
		"contracts": []string{},
	}
}

// Connect publishes the configured contracts and starts the connection loop.
// The loop outlives ctx cancellation and stops on Close.
func (f *WSFeed) Connect(ctx context.Context, setting map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	merged := f.DefaultSetting()
	maps.Copy(merged, setting)

	url, err := settingString(merged, "url")
	if err != nil {
		return err
	}
	if url == "" {
		return fmt.Errorf("setting \"url\": required")
	}
	symbols, err := settingStrings(merged, "contracts")
	if err != nil {
		return err
	}

	contracts := make([]*domain.ContractData, 0, len(symbols))
	for _, vtSymbol := range symbols {
		symbol, exchange := domain.SplitKey(vtSymbol)
		if symbol == "" || exchange == "" {
			return fmt.Errorf("setting \"contracts\": invalid vt_symbol %q", vtSymbol)
		}
		contracts = append(contracts, &domain.ContractData{
			Symbol:      symbol,
			Exchange:    domain.Exchange(exchange),
			Name:        symbol,
			Product:     domain.ProductSpot,
			Size:        decimal.NewFromInt(1),
			PriceTick:   decimal.New(1, -8),
			MinVolume:   decimal.New(1, -8),
			NetPosition: true,
			AdapterName: f.Name(),
		})
	}

	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return fmt.Errorf("%s already connected", f.Name())
	}
	f.url = url
	for _, c := range contracts {
		f.contracts[c.VtSymbol()] = c
		cc := *c
		f.OnContract(&cc)
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.wg = &conc.WaitGroup{}
	f.wg.Go(func() { f.connectionLoop(loopCtx) })
	f.mu.Unlock()

	f.logger.Info("Websocket feed started", slog.String("url", url), slog.Int("contracts", len(contracts)))
	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (f *WSFeed) connectionLoop(ctx context.Context) {
	defer f.closeConnection()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			f.logger.Warn("Websocket connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount))

			delay := backoff(f.baseDelay, retryCount)
			retryCount++
			if retryCount > wsMaxRetries {
				f.WriteLog("Websocket feed max retries exceeded, resetting counter", slog.LevelError)
				retryCount = 0
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				continue
			}
		}

		retryCount = 0
		f.readLoop(ctx)
	}
}

// backoff doubles base per retry, capped at wsMaxDelay.
func backoff(base time.Duration, retryCount int) time.Duration {
	if retryCount > 30 {
		return wsMaxDelay
	}
	delay := base * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > wsMaxDelay || delay <= 0 {
		delay = wsMaxDelay
	}
	return delay
}

// connect dials the feed and re-sends the current subscriptions.
func (f *WSFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}

	header := make(http.Header)
	header.Add("User-Agent", wsUserAgent)

	f.mu.RLock()
	url := f.url
	f.mu.RUnlock()

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	symbols := slices.Sorted(maps.Keys(f.subscribed))
	f.mu.Unlock()

	if len(symbols) > 0 {
		if err := f.writeJSON(wsSubscribeMessage{Op: "subscribe", Symbols: symbols}); err != nil {
			f.closeConnection()
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	f.WriteLog("Websocket feed connected", slog.LevelInfo)
	return nil
}

func (f *WSFeed) writeJSON(v any) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return conn.WriteJSON(v)
}

func (f *WSFeed) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Warn("Websocket read error", slog.Any("error", err))
			}
			f.closeConnection()
			return
		}

		f.handleMessage(message)
	}
}

func (f *WSFeed) handleMessage(message []byte) {
	var msg wsTickMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.logger.Debug("Websocket message parse error", slog.Any("error", err))
		return
	}
	if msg.Type != "tick" || msg.Symbol == "" || msg.Exchange == "" {
		return
	}

	tick := &domain.TickData{
		Symbol:      msg.Symbol,
		Exchange:    domain.Exchange(msg.Exchange),
		Datetime:    time.Now(),
		Name:        msg.Symbol,
		LastPrice:   msg.LastPrice,
		LastVolume:  msg.LastVolume,
		Volume:      msg.Volume,
		HighPrice:   msg.HighPrice,
		LowPrice:    msg.LowPrice,
		BidPrice1:   msg.BidPrice,
		BidVolume1:  msg.BidVolume,
		AskPrice1:   msg.AskPrice,
		AskVolume1:  msg.AskVolume,
		AdapterName: f.Name(),
	}
	if msg.Timestamp > 0 {
		tick.Datetime = time.UnixMilli(msg.Timestamp)
	}
	f.OnTick(tick)
}

func (f *WSFeed) closeConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connected = false
}

// Connected reports whether a websocket connection is currently open.
func (f *WSFeed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Close stops the connection loop and waits for it.
func (f *WSFeed) Close() error {
	f.mu.Lock()
	cancel, wg := f.cancel, f.wg
	f.cancel, f.wg = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	f.closeConnection()
	if r := wg.WaitAndRecover(); r != nil {
		f.logger.Error("Websocket feed loop panicked",
			slog.Any("panic", r.Value),
			slog.String("stack", string(r.Stack)))
	}
	f.logger.Info("Websocket feed closed")
	return nil
}

// Subscribe adds the instrument to the feed subscription. The whole set is
// re-sent on every reconnect.
func (f *WSFeed) Subscribe(req domain.SubscribeRequest) {
	vtSymbol := req.VtSymbol()

	f.mu.Lock()
	if _, ok := f.contracts[vtSymbol]; !ok {
		f.mu.Unlock()
		f.WriteLog("Subscribe failed, unknown contract "+vtSymbol, slog.LevelWarn)
		return
	}
	f.subscribed[vtSymbol] = struct{}{}
	connected := f.connected
	f.mu.Unlock()

	if !connected {
		return
	}
	if err := f.writeJSON(wsSubscribeMessage{Op: "subscribe", Symbols: []string{vtSymbol}}); err != nil {
		f.logger.Warn("Websocket subscribe failed", slog.String("vt_symbol", vtSymbol), slog.Any("error", err))
	}
}

func (f *WSFeed) SendOrder(req domain.OrderRequest) string {
	f.WriteLog("SendOrder rejected, market data only adapter", slog.LevelWarn)
	return ""
}

func (f *WSFeed) CancelOrder(req domain.CancelRequest) {
	f.WriteLog("CancelOrder ignored, market data only adapter", slog.LevelWarn)
}

func (f *WSFeed) SendQuote(req domain.QuoteRequest) string {
	f.WriteLog("SendQuote rejected, market data only adapter", slog.LevelWarn)
	return ""
}

func (f *WSFeed) CancelQuote(req domain.CancelRequest) {
	f.WriteLog("CancelQuote ignored, market data only adapter", slog.LevelWarn)
}

func (f *WSFeed) QueryAccount()  {}
func (f *WSFeed) QueryPosition() {}

func (f *WSFeed) QueryHistory(ctx context.Context, req domain.HistoryRequest) ([]*domain.BarData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.WriteLog("History not available for "+req.VtSymbol(), slog.LevelInfo)
	return nil, nil
}
