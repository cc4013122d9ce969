// Package converter reconciles outgoing order requests against the position
// and working-order state of one adapter.
package converter

import (
	"sync"

	"trade_core/internal/domain"
)

// ContractFunc looks up a contract by vt-symbol. It returns nil when unknown.
type ContractFunc func(vtSymbol string) *domain.ContractData

// Option configures an OffsetConverter.
type Option func(*OffsetConverter)

// WithStrategy replaces the DefaultStrategy.
func WithStrategy(s Strategy) Option {
	return func(c *OffsetConverter) {
		if s != nil {
			c.strategy = s
		}
	}
}

// OffsetConverter owns the pending/frozen bookkeeping of one adapter. It is
// fed by the order store from the dispatch goroutine and queried by command
// callers from theirs, so every method takes the converter lock.
type OffsetConverter struct {
	adapterName string
	getContract ContractFunc
	strategy    Strategy

	mu       sync.Mutex
	holdings map[string]*PositionHolding
}

// New creates the converter of adapterName.
func New(adapterName string, getContract ContractFunc, opts ...Option) *OffsetConverter {
	c := &OffsetConverter{
		adapterName: adapterName,
		getContract: getContract,
		strategy:    DefaultStrategy{},
		holdings:    make(map[string]*PositionHolding),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AdapterName returns the adapter this converter belongs to.
func (c *OffsetConverter) AdapterName() string {
	return c.adapterName
}

// UpdatePosition applies a position snapshot.
func (c *OffsetConverter) UpdatePosition(pos *domain.PositionData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h := c.holding(pos.VtSymbol()); h != nil {
		h.updatePosition(pos)
	}
}

// UpdateTrade applies a fill to today/yesterday volume.
func (c *OffsetConverter) UpdateTrade(trade *domain.TradeData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h := c.holding(trade.VtSymbol()); h != nil {
		h.updateTrade(trade)
	}
}

// UpdateOrder tracks working close orders for frozen volume.
func (c *OffsetConverter) UpdateOrder(order *domain.OrderData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h := c.holding(order.VtSymbol()); h != nil {
		h.updateOrder(order)
	}
}

// UpdateOrderRequest records a request the adapter accepted under vtOrderID
// before any order event for it has arrived.
func (c *OffsetConverter) UpdateOrderRequest(req domain.OrderRequest, vtOrderID string) {
	orderID, adapterName := domain.SplitKey(vtOrderID)
	if adapterName == "" {
		adapterName = c.adapterName
	}
	c.UpdateOrder(req.CreateOrderData(orderID, adapterName))
}

// ConvertOrderRequest resolves offsets for req. Requests for instruments that
// need no conversion come back unchanged as a singleton list.
func (c *OffsetConverter) ConvertOrderRequest(req domain.OrderRequest, lock, net bool) []domain.OrderRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.holding(req.VtSymbol())
	if h == nil {
		return []domain.OrderRequest{req}
	}
	return c.strategy.Convert(h, req, lock, net)
}

// Holding returns a copy of the holding of vtSymbol.
func (c *OffsetConverter) Holding(vtSymbol string) (PositionHolding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.holdings[vtSymbol]
	if !ok {
		return PositionHolding{}, false
	}
	return h.clone(), true
}

// holding returns the holding of vtSymbol, creating it on first use, or nil
// when the instrument needs no conversion (unknown or net-position contract).
func (c *OffsetConverter) holding(vtSymbol string) *PositionHolding {
	if h, ok := c.holdings[vtSymbol]; ok {
		return h
	}
	if c.getContract == nil {
		return nil
	}
	contract := c.getContract(vtSymbol)
	if contract == nil || contract.NetPosition {
		return nil
	}
	h := newPositionHolding(contract)
	c.holdings[vtSymbol] = h
	return h
}
