package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
	"trade_core/internal/event"
)

// PaperName is the default name of the paper adapter.
const PaperName = "PAPER"

var paperExchanges = []domain.Exchange{
	domain.ExchangeSHFE,
	domain.ExchangeINE,
	domain.ExchangeDCE,
	domain.ExchangeCZCE,
	domain.ExchangeCFFEX,
	domain.ExchangeGFEX,
	domain.ExchangeLOCAL,
}

// Paper is a simulated venue. Orders are acknowledged as NOTTRADED and, with
// fill_on_send, filled in full at the request price.
type Paper struct {
	Base

	mu         sync.Mutex
	connected  bool
	fillOnSend bool
	orderSeq   int64
	quoteSeq   int64
	contracts  map[string]*domain.ContractData
	orders     map[string]*domain.OrderData
	quotes     map[string]*domain.QuoteData
	positions  map[string]*domain.PositionData
	account    *domain.AccountData
	subscribed map[string]struct{}

	// Tick simulation driven by bus timer events.
	startPrice   decimal.Decimal
	lastPrices   map[string]decimal.Decimal
	timerHandler *event.Handler
}

// NewPaper builds a paper adapter. It satisfies Factory.
func NewPaper(bus *event.Bus, name string, logger *slog.Logger) Gateway {
	if name == "" {
		name = PaperName
	}
	return &Paper{
		Base:       NewBase(bus, name, logger),
		contracts:  make(map[string]*domain.ContractData),
		orders:     make(map[string]*domain.OrderData),
		quotes:     make(map[string]*domain.QuoteData),
		positions:  make(map[string]*domain.PositionData),
		subscribed: make(map[string]struct{}),
		lastPrices: make(map[string]decimal.Decimal),
	}
}

func (p *Paper) Exchanges() []domain.Exchange {
	return paperExchanges
}

func (p *Paper) DefaultSetting() map[string]any {
	return map[string]any{
		"account_id":     "paper",
		"balance":        1_000_000.0,
		"fill_on_send":   true,
		"contracts":      []string{},
		"simulate_ticks": false,
		"start_price":    100.0,
	}
}

// Connect publishes the configured contracts and the opening account.
func (p *Paper) Connect(ctx context.Context, setting map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	merged := p.DefaultSetting()
	maps.Copy(merged, setting)

	accountID, err := settingString(merged, "account_id")
	if err != nil {
		return err
	}
	balance, err := settingDecimal(merged, "balance")
	if err != nil {
		return err
	}
	fillOnSend, err := settingBool(merged, "fill_on_send")
	if err != nil {
		return err
	}
	symbols, err := settingStrings(merged, "contracts")
	if err != nil {
		return err
	}
	simulate, err := settingBool(merged, "simulate_ticks")
	if err != nil {
		return err
	}
	startPrice, err := settingDecimal(merged, "start_price")
	if err != nil {
		return err
	}
	if simulate && !startPrice.IsPositive() {
		return fmt.Errorf("setting \"start_price\": must be positive")
	}

	contracts := make([]*domain.ContractData, 0, len(symbols))
	for _, vtSymbol := range symbols {
		symbol, exchange := domain.SplitKey(vtSymbol)
		if symbol == "" || exchange == "" {
			return fmt.Errorf("setting \"contracts\": invalid vt_symbol %q", vtSymbol)
		}
		contracts = append(contracts, p.newContract(symbol, domain.Exchange(exchange)))
	}

	p.mu.Lock()
	p.connected = true
	p.fillOnSend = fillOnSend
	p.startPrice = startPrice
	if simulate && p.timerHandler == nil {
		p.timerHandler = event.NewHandler(p.Name()+".simulator", p.processTimerEvent)
		p.bus.Register(event.TypeTimer, p.timerHandler)
	}
	for _, c := range contracts {
		p.contracts[c.VtSymbol()] = c
	}
	p.account = &domain.AccountData{
		AccountID:   accountID,
		Balance:     balance,
		Frozen:      decimal.Zero,
		AdapterName: p.Name(),
	}
	for _, c := range contracts {
		cc := *c
		p.OnContract(&cc)
	}
	acc := *p.account
	p.OnAccount(&acc)
	p.mu.Unlock()

	p.logger.Info("Paper adapter connected",
		slog.Int("contracts", len(contracts)),
		slog.Bool("fill_on_send", fillOnSend))
	p.WriteLog("Paper adapter connected", slog.LevelInfo)
	return nil
}

func (p *Paper) newContract(symbol string, exchange domain.Exchange) *domain.ContractData {
	product := domain.ProductFutures
	if exchange == domain.ExchangeLOCAL {
		product = domain.ProductSpot
	}
	return &domain.ContractData{
		Symbol:      symbol,
		Exchange:    exchange,
		Name:        symbol,
		Product:     product,
		Size:        decimal.NewFromInt(1),
		PriceTick:   decimal.New(1, -2),
		MinVolume:   decimal.NewFromInt(1),
		NetPosition: exchange == domain.ExchangeLOCAL,
		AdapterName: p.Name(),
	}
}

func (p *Paper) Close() error {
	p.mu.Lock()
	wasConnected := p.connected
	p.connected = false
	if p.timerHandler != nil {
		p.bus.Unregister(event.TypeTimer, p.timerHandler)
		p.timerHandler = nil
	}
	p.mu.Unlock()

	if wasConnected {
		p.logger.Info("Paper adapter closed")
	}
	return nil
}

func (p *Paper) Subscribe(req domain.SubscribeRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.contracts[req.VtSymbol()]; !ok {
		p.WriteLog("Subscribe failed, unknown contract "+req.VtSymbol(), slog.LevelWarn)
		return
	}
	p.subscribed[req.VtSymbol()] = struct{}{}
}

// processTimerEvent moves the price of every subscribed contract by a random
// step of at most half a percent and publishes a tick.
func (p *Paper) processTimerEvent(event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}
	for vtSymbol := range p.subscribed {
		contract := p.contracts[vtSymbol]
		last, ok := p.lastPrices[vtSymbol]
		if !ok {
			last = p.startPrice
		}

		step := last.Mul(decimal.NewFromFloat(rand.Float64() - 0.5)).Div(decimal.NewFromInt(100))
		price := roundToTick(last.Add(step), contract.PriceTick)
		if !price.IsPositive() {
			price = contract.PriceTick
		}
		p.lastPrices[vtSymbol] = price

		p.OnTick(&domain.TickData{
			Symbol:      contract.Symbol,
			Exchange:    contract.Exchange,
			Datetime:    time.Now(),
			Name:        contract.Name,
			LastPrice:   price,
			LastVolume:  decimal.NewFromInt(1),
			BidPrice1:   price.Sub(contract.PriceTick),
			BidVolume1:  decimal.NewFromInt(10),
			AskPrice1:   price.Add(contract.PriceTick),
			AskVolume1:  decimal.NewFromInt(10),
			AdapterName: p.Name(),
		})
	}
	return nil
}

func roundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}

// SendOrder returns the order key, or "" when the adapter is not connected
// or the contract is unknown.
func (p *Paper) SendOrder(req domain.OrderRequest) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		p.WriteLog("SendOrder rejected, adapter not connected", slog.LevelWarn)
		return ""
	}
	if _, ok := p.contracts[req.VtSymbol()]; !ok {
		p.WriteLog("SendOrder rejected, unknown contract "+req.VtSymbol(), slog.LevelWarn)
		return ""
	}

	p.orderSeq++
	order := req.CreateOrderData(strconv.FormatInt(p.orderSeq, 10), p.Name())
	order.Status = domain.StatusNotTraded
	p.orders[order.OrderID] = order
	p.publishOrder(order)

	if p.fillOnSend {
		p.fill(order)
	}
	return order.VtOrderID()
}

func (p *Paper) publishOrder(order *domain.OrderData) {
	o := *order
	p.OnOrder(&o)
}

func (p *Paper) fill(order *domain.OrderData) {
	trade := &domain.TradeData{
		Symbol:      order.Symbol,
		Exchange:    order.Exchange,
		OrderID:     order.OrderID,
		TradeID:     uuid.NewString(),
		Direction:   order.Direction,
		Offset:      order.Offset,
		Price:       order.Price,
		Volume:      order.Remaining(),
		Datetime:    time.Now(),
		AdapterName: p.Name(),
	}

	order.Traded = order.Volume
	order.Status = domain.StatusAllTraded
	p.publishOrder(order)
	p.OnTrade(trade)

	pos, realized := p.applyTrade(trade)
	pc := *pos
	p.OnPosition(&pc)

	if !realized.IsZero() {
		p.account.Balance = p.account.Balance.Add(realized)
		acc := *p.account
		p.OnAccount(&acc)
	}
}

func positionKey(vtSymbol string, d domain.Direction) string {
	return vtSymbol + "." + string(d)
}

func (p *Paper) position(trade *domain.TradeData, d domain.Direction) *domain.PositionData {
	key := positionKey(trade.VtSymbol(), d)
	pos, ok := p.positions[key]
	if !ok {
		pos = &domain.PositionData{
			Symbol:      trade.Symbol,
			Exchange:    trade.Exchange,
			Direction:   d,
			AdapterName: p.Name(),
		}
		p.positions[key] = pos
	}
	return pos
}

// applyTrade updates the position slot a fill opens or closes and returns it
// together with the realized profit of a closing fill.
func (p *Paper) applyTrade(trade *domain.TradeData) (*domain.PositionData, decimal.Decimal) {
	vol := trade.Volume

	if trade.Offset == domain.OffsetOpen || trade.Offset == domain.OffsetNone {
		pos := p.position(trade, trade.Direction)
		total := pos.Volume.Add(vol)
		if total.IsZero() {
			return pos, decimal.Zero
		}
		pos.Price = pos.Price.Mul(pos.Volume).Add(trade.Price.Mul(vol)).Div(total)
		pos.Volume = total
		return pos, decimal.Zero
	}

	pos := p.position(trade, trade.Direction.Opposite())
	vol = decimal.Min(vol, pos.Volume)

	realized := trade.Price.Sub(pos.Price).Mul(vol)
	if pos.Direction == domain.DirectionShort {
		realized = realized.Neg()
	}
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)

	td := pos.Volume.Sub(pos.YdVolume)
	switch {
	case trade.Offset == domain.OffsetCloseYesterday,
		trade.Offset == domain.OffsetClose && trade.Exchange.SeparatesCloseToday():
		pos.YdVolume = pos.YdVolume.Sub(vol)
	case trade.Offset == domain.OffsetClose:
		td = td.Sub(vol)
		if td.IsNegative() {
			pos.YdVolume = pos.YdVolume.Add(td)
		}
	}
	pos.Volume = pos.Volume.Sub(vol)
	pos.YdVolume = decimal.Max(decimal.Min(pos.YdVolume, pos.Volume), decimal.Zero)
	if pos.Volume.IsZero() {
		pos.Price = decimal.Zero
	}
	return pos, realized
}

// Settle rolls today's volume into yesterday's, as a venue does at session end.
func (p *Paper) Settle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range p.positions {
		pos.YdVolume = pos.Volume
		pc := *pos
		p.OnPosition(&pc)
	}
}

func (p *Paper) CancelOrder(req domain.CancelRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[req.OrderID]
	if !ok || !order.IsActive() {
		p.WriteLog("CancelOrder ignored, no working order "+req.OrderID, slog.LevelWarn)
		return
	}
	order.Status = domain.StatusCancelled
	p.publishOrder(order)
}

func (p *Paper) SendQuote(req domain.QuoteRequest) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		p.WriteLog("SendQuote rejected, adapter not connected", slog.LevelWarn)
		return ""
	}

	p.quoteSeq++
	quote := req.CreateQuoteData("Q"+strconv.FormatInt(p.quoteSeq, 10), p.Name())
	quote.Status = domain.StatusNotTraded
	p.quotes[quote.QuoteID] = quote

	q := *quote
	p.OnQuote(&q)
	return quote.VtQuoteID()
}

func (p *Paper) CancelQuote(req domain.CancelRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	quote, ok := p.quotes[req.OrderID]
	if !ok || !quote.IsActive() {
		p.WriteLog("CancelQuote ignored, no working quote "+req.OrderID, slog.LevelWarn)
		return
	}
	quote.Status = domain.StatusCancelled
	q := *quote
	p.OnQuote(&q)
}

func (p *Paper) QueryAccount() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.account == nil {
		return
	}
	acc := *p.account
	p.OnAccount(&acc)
}

func (p *Paper) QueryPosition() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range p.positions {
		pc := *pos
		p.OnPosition(&pc)
	}
}

// QueryHistory is unsupported: paper contracts carry HistoryData false.
func (p *Paper) QueryHistory(ctx context.Context, req domain.HistoryRequest) ([]*domain.BarData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.WriteLog("History not available for "+req.VtSymbol(), slog.LevelInfo)
	return nil, nil
}
