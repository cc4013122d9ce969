package converter

import (
	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
)

// Strategy splits an order request into requests with concrete offsets,
// given the holding of the instrument. Implementations must not call back
// into the converter.
type Strategy interface {
	Convert(h *PositionHolding, req domain.OrderRequest, lock, net bool) []domain.OrderRequest
}

// DefaultStrategy closes what the holding allows and opens the rest.
//
//   - lock: never nets. With opposite today volume on a venue that does not
//     separate close-today, only open. Otherwise close available yesterday
//     volume first, open the remainder.
//   - net: close available opposite volume (today, then yesterday, on venues
//     that separate them), open the remainder.
//   - neither: venues that separate close-today get a CLOSE split into
//     CLOSETODAY/CLOSEYESTERDAY; a close beyond available volume yields no
//     requests. Other venues pass through.
type DefaultStrategy struct{}

// Convert implements Strategy.
func (DefaultStrategy) Convert(h *PositionHolding, req domain.OrderRequest, lock, net bool) []domain.OrderRequest {
	switch {
	case lock:
		return convertLock(h, req)
	case net:
		return convertNet(h, req)
	case req.Exchange.SeparatesCloseToday():
		return convertCloseToday(h, req)
	default:
		return []domain.OrderRequest{req}
	}
}

func withOffset(req domain.OrderRequest, offset domain.Offset, volume decimal.Decimal) domain.OrderRequest {
	req.Offset = offset
	req.Volume = volume
	return req
}

func convertLock(h *PositionHolding, req domain.OrderRequest) []domain.OrderRequest {
	tdVolume := h.OppositeToday(req.Direction)
	ydAvailable := h.Available(req.Direction).Yd
	separates := req.Exchange.SeparatesCloseToday()

	if tdVolume.IsPositive() && !separates {
		return []domain.OrderRequest{withOffset(req, domain.OffsetOpen, req.Volume)}
	}

	closeVol := decimal.Min(req.Volume, ydAvailable)
	openVol := nonNegative(req.Volume.Sub(ydAvailable))

	reqs := make([]domain.OrderRequest, 0, 2)
	if closeVol.IsPositive() {
		offset := domain.OffsetClose
		if separates {
			offset = domain.OffsetCloseYesterday
		}
		reqs = append(reqs, withOffset(req, offset, closeVol))
	}
	if openVol.IsPositive() {
		reqs = append(reqs, withOffset(req, domain.OffsetOpen, openVol))
	}
	return reqs
}

func convertNet(h *PositionHolding, req domain.OrderRequest) []domain.OrderRequest {
	avail := h.Available(req.Direction)
	left := req.Volume
	reqs := make([]domain.OrderRequest, 0, 3)

	if req.Exchange.SeparatesCloseToday() {
		if avail.Td.IsPositive() && left.IsPositive() {
			vol := decimal.Min(avail.Td, left)
			left = left.Sub(vol)
			reqs = append(reqs, withOffset(req, domain.OffsetCloseToday, vol))
		}
		if avail.Yd.IsPositive() && left.IsPositive() {
			vol := decimal.Min(avail.Yd, left)
			left = left.Sub(vol)
			reqs = append(reqs, withOffset(req, domain.OffsetCloseYesterday, vol))
		}
	} else if avail.Pos.IsPositive() && left.IsPositive() {
		vol := decimal.Min(avail.Pos, left)
		left = left.Sub(vol)
		reqs = append(reqs, withOffset(req, domain.OffsetClose, vol))
	}

	if left.IsPositive() {
		reqs = append(reqs, withOffset(req, domain.OffsetOpen, left))
	}
	return reqs
}

func convertCloseToday(h *PositionHolding, req domain.OrderRequest) []domain.OrderRequest {
	if req.Offset == domain.OffsetOpen {
		return []domain.OrderRequest{req}
	}

	avail := h.Available(req.Direction)
	if req.Volume.GreaterThan(avail.Pos) {
		return nil
	}
	if req.Volume.LessThanOrEqual(avail.Td) {
		return []domain.OrderRequest{withOffset(req, domain.OffsetCloseToday, req.Volume)}
	}

	reqs := make([]domain.OrderRequest, 0, 2)
	if avail.Td.IsPositive() {
		reqs = append(reqs, withOffset(req, domain.OffsetCloseToday, avail.Td))
	}
	reqs = append(reqs, withOffset(req, domain.OffsetCloseYesterday, req.Volume.Sub(avail.Td)))
	return reqs
}
