package oms

import (
	"trade_core/internal/converter"
	"trade_core/internal/domain"
)

func get[T any](e *Engine, m map[string]*T, key string) *T {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := m[key]
	if !ok {
		return nil
	}
	c := *v
	return &c
}

func all[T any](e *Engine, m map[string]*T, keep func(*T) bool) []*T {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*T, 0, len(m))
	for _, v := range m {
		if keep != nil && !keep(v) {
			continue
		}
		c := *v
		out = append(out, &c)
	}
	return out
}

// GetTick returns the latest tick of vtSymbol, or nil.
func (e *Engine) GetTick(vtSymbol string) *domain.TickData {
	return get(e, e.ticks, vtSymbol)
}

// GetOrder returns the order with key vtOrderID, or nil.
func (e *Engine) GetOrder(vtOrderID string) *domain.OrderData {
	return get(e, e.orders, vtOrderID)
}

// GetTrade returns the trade with key vtTradeID, or nil.
func (e *Engine) GetTrade(vtTradeID string) *domain.TradeData {
	return get(e, e.trades, vtTradeID)
}

// GetPosition returns the position with key vtPositionID, or nil.
func (e *Engine) GetPosition(vtPositionID string) *domain.PositionData {
	return get(e, e.positions, vtPositionID)
}

// GetAccount returns the account with key vtAccountID, or nil.
func (e *Engine) GetAccount(vtAccountID string) *domain.AccountData {
	return get(e, e.accounts, vtAccountID)
}

// GetContract returns the contract of vtSymbol, or nil.
func (e *Engine) GetContract(vtSymbol string) *domain.ContractData {
	return get(e, e.contracts, vtSymbol)
}

// GetQuote returns the quote with key vtQuoteID, or nil.
func (e *Engine) GetQuote(vtQuoteID string) *domain.QuoteData {
	return get(e, e.quotes, vtQuoteID)
}

func (e *Engine) GetAllTicks() []*domain.TickData         { return all(e, e.ticks, nil) }
func (e *Engine) GetAllOrders() []*domain.OrderData       { return all(e, e.orders, nil) }
func (e *Engine) GetAllTrades() []*domain.TradeData       { return all(e, e.trades, nil) }
func (e *Engine) GetAllPositions() []*domain.PositionData { return all(e, e.positions, nil) }
func (e *Engine) GetAllAccounts() []*domain.AccountData   { return all(e, e.accounts, nil) }
func (e *Engine) GetAllContracts() []*domain.ContractData { return all(e, e.contracts, nil) }
func (e *Engine) GetAllQuotes() []*domain.QuoteData       { return all(e, e.quotes, nil) }

// GetAllActiveOrders returns working orders, restricted to vtSymbol unless it is empty.
func (e *Engine) GetAllActiveOrders(vtSymbol string) []*domain.OrderData {
	if vtSymbol == "" {
		return all(e, e.activeOrders, nil)
	}
	return all(e, e.activeOrders, func(o *domain.OrderData) bool { return o.VtSymbol() == vtSymbol })
}

// GetAllActiveQuotes returns working quotes, restricted to vtSymbol unless it is empty.
func (e *Engine) GetAllActiveQuotes(vtSymbol string) []*domain.QuoteData {
	if vtSymbol == "" {
		return all(e, e.activeQuotes, nil)
	}
	return all(e, e.activeQuotes, func(q *domain.QuoteData) bool { return q.VtSymbol() == vtSymbol })
}

// IsActiveOrder reports whether vtOrderID is in the active-orders index.
func (e *Engine) IsActiveOrder(vtOrderID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.activeOrders[vtOrderID]
	return ok
}

// GetConverter returns the converter of adapterName, or nil before the first
// contract of that adapter was seen.
func (e *Engine) GetConverter(adapterName string) *converter.OffsetConverter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.converters[adapterName]
}

// ConvertOrderRequest resolves offsets through the adapter's converter.
// Without a converter the request passes through as a singleton list.
func (e *Engine) ConvertOrderRequest(req domain.OrderRequest, adapterName string, lock, net bool) []domain.OrderRequest {
	conv := e.GetConverter(adapterName)
	if conv == nil {
		return []domain.OrderRequest{req}
	}
	return conv.ConvertOrderRequest(req, lock, net)
}

// UpdateOrderRequest lets the adapter's converter account for a request the
// adapter accepted under vtOrderID.
func (e *Engine) UpdateOrderRequest(req domain.OrderRequest, vtOrderID, adapterName string) {
	if conv := e.GetConverter(adapterName); conv != nil {
		conv.UpdateOrderRequest(req, vtOrderID)
	}
}
