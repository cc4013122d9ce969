package converter

import (
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
)

// PositionHolding tracks today/yesterday volume and the part of it frozen by
// working close orders, for both sides of one instrument.
type PositionHolding struct {
	VtSymbol string
	Exchange domain.Exchange

	LongPos decimal.Decimal
	LongYd  decimal.Decimal
	LongTd  decimal.Decimal

	LongPosFrozen decimal.Decimal
	LongYdFrozen  decimal.Decimal
	LongTdFrozen  decimal.Decimal

	ShortPos decimal.Decimal
	ShortYd  decimal.Decimal
	ShortTd  decimal.Decimal

	ShortPosFrozen decimal.Decimal
	ShortYdFrozen  decimal.Decimal
	ShortTdFrozen  decimal.Decimal

	activeOrders map[string]*domain.OrderData
	activeCount  int // len(activeOrders), kept so copies can report it
	// Orders seen in a terminal status. A late SUBMITTING copy of such an
	// order, e.g. from UpdateOrderRequest after an immediate fill, is ignored.
	// Like the order store's history it only grows.
	finished map[string]struct{}
}

func newPositionHolding(contract *domain.ContractData) *PositionHolding {
	return &PositionHolding{
		VtSymbol:     contract.VtSymbol(),
		Exchange:     contract.Exchange,
		activeOrders: make(map[string]*domain.OrderData),
		finished:     make(map[string]struct{}),
	}
}

// ActiveOrderCount returns the number of working orders feeding the frozen counts.
func (h *PositionHolding) ActiveOrderCount() int {
	return h.activeCount
}

func (h *PositionHolding) updatePosition(pos *domain.PositionData) {
	switch pos.Direction {
	case domain.DirectionLong:
		h.LongPos = pos.Volume
		h.LongYd = pos.YdVolume
		h.LongTd = h.LongPos.Sub(h.LongYd)
	case domain.DirectionShort:
		h.ShortPos = pos.Volume
		h.ShortYd = pos.YdVolume
		h.ShortTd = h.ShortPos.Sub(h.ShortYd)
	default:
		return
	}
	h.sumPosFrozen()
}

func (h *PositionHolding) updateOrder(order *domain.OrderData) {
	key := order.VtOrderID()
	if order.IsActive() {
		if _, done := h.finished[key]; done {
			return
		}
		o := *order
		h.activeOrders[key] = &o
	} else {
		delete(h.activeOrders, key)
		h.finished[key] = struct{}{}
	}
	h.activeCount = len(h.activeOrders)
	h.calculateFrozen()
}

func (h *PositionHolding) updateTrade(trade *domain.TradeData) {
	vol := trade.Volume

	// A long trade either opens long or closes short, and vice versa.
	switch trade.Direction {
	case domain.DirectionLong:
		switch trade.Offset {
		case domain.OffsetOpen:
			h.LongTd = h.LongTd.Add(vol)
		case domain.OffsetCloseToday:
			h.ShortTd = h.ShortTd.Sub(vol)
		case domain.OffsetCloseYesterday:
			h.ShortYd = h.ShortYd.Sub(vol)
		case domain.OffsetClose:
			h.ShortTd, h.ShortYd = closeVolume(h.Exchange, h.ShortTd, h.ShortYd, vol)
		}
	case domain.DirectionShort:
		switch trade.Offset {
		case domain.OffsetOpen:
			h.ShortTd = h.ShortTd.Add(vol)
		case domain.OffsetCloseToday:
			h.LongTd = h.LongTd.Sub(vol)
		case domain.OffsetCloseYesterday:
			h.LongYd = h.LongYd.Sub(vol)
		case domain.OffsetClose:
			h.LongTd, h.LongYd = closeVolume(h.Exchange, h.LongTd, h.LongYd, vol)
		}
	default:
		return
	}

	h.LongPos = h.LongTd.Add(h.LongYd)
	h.ShortPos = h.ShortTd.Add(h.ShortYd)
	h.sumPosFrozen()
}

// closeVolume applies a plain CLOSE fill. Venues that separate close-today
// treat CLOSE as close-yesterday; others consume today first, then yesterday.
func closeVolume(exchange domain.Exchange, td, yd, vol decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if exchange.SeparatesCloseToday() {
		return td, yd.Sub(vol)
	}
	td = td.Sub(vol)
	if td.IsNegative() {
		yd = yd.Add(td)
		td = decimal.Zero
	}
	return td, yd
}

func (h *PositionHolding) calculateFrozen() {
	h.LongPosFrozen = decimal.Zero
	h.LongYdFrozen = decimal.Zero
	h.LongTdFrozen = decimal.Zero
	h.ShortPosFrozen = decimal.Zero
	h.ShortYdFrozen = decimal.Zero
	h.ShortTdFrozen = decimal.Zero

	for _, order := range h.activeOrders {
		if order.Offset == domain.OffsetOpen {
			continue
		}
		frozen := order.Remaining()

		switch order.Direction {
		case domain.DirectionLong:
			h.ShortTdFrozen, h.ShortYdFrozen = freeze(order.Offset, h.ShortTd, h.ShortTdFrozen, h.ShortYdFrozen, frozen)
		case domain.DirectionShort:
			h.LongTdFrozen, h.LongYdFrozen = freeze(order.Offset, h.LongTd, h.LongTdFrozen, h.LongYdFrozen, frozen)
		}
	}

	h.sumPosFrozen()
}

func freeze(offset domain.Offset, td, tdFrozen, ydFrozen, frozen decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	switch offset {
	case domain.OffsetCloseToday:
		tdFrozen = tdFrozen.Add(frozen)
	case domain.OffsetCloseYesterday:
		ydFrozen = ydFrozen.Add(frozen)
	case domain.OffsetClose:
		tdFrozen = tdFrozen.Add(frozen)
		if tdFrozen.GreaterThan(td) {
			ydFrozen = ydFrozen.Add(tdFrozen.Sub(td))
			tdFrozen = td
		}
	}
	return tdFrozen, ydFrozen
}

// sumPosFrozen keeps frozen volume within the held volume.
func (h *PositionHolding) sumPosFrozen() {
	h.LongTdFrozen = decimal.Min(h.LongTdFrozen, h.LongTd)
	h.LongYdFrozen = decimal.Min(h.LongYdFrozen, h.LongYd)
	h.ShortTdFrozen = decimal.Min(h.ShortTdFrozen, h.ShortTd)
	h.ShortYdFrozen = decimal.Min(h.ShortYdFrozen, h.ShortYd)

	h.LongPosFrozen = h.LongTdFrozen.Add(h.LongYdFrozen)
	h.ShortPosFrozen = h.ShortTdFrozen.Add(h.ShortYdFrozen)
}

// Closable is the opposite-side volume a request in direction d can close.
type Closable struct {
	Pos decimal.Decimal
	Td  decimal.Decimal
	Yd  decimal.Decimal
}

// Available returns what a request in direction d may still close, net of
// frozen volume. Negative values are clamped to zero.
func (h *PositionHolding) Available(d domain.Direction) Closable {
	if d == domain.DirectionLong {
		return Closable{
			Pos: nonNegative(h.ShortPos.Sub(h.ShortPosFrozen)),
			Td:  nonNegative(h.ShortTd.Sub(h.ShortTdFrozen)),
			Yd:  nonNegative(h.ShortYd.Sub(h.ShortYdFrozen)),
		}
	}
	return Closable{
		Pos: nonNegative(h.LongPos.Sub(h.LongPosFrozen)),
		Td:  nonNegative(h.LongTd.Sub(h.LongTdFrozen)),
		Yd:  nonNegative(h.LongYd.Sub(h.LongYdFrozen)),
	}
}

// OppositeToday returns the opposite side's today volume, frozen or not.
func (h *PositionHolding) OppositeToday(d domain.Direction) decimal.Decimal {
	if d == domain.DirectionLong {
		return h.ShortTd
	}
	return h.LongTd
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (h *PositionHolding) clone() PositionHolding {
	c := *h
	c.activeOrders = nil
	c.finished = nil
	return c
}
