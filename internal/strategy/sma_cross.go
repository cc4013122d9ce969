package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"trade_core/internal/domain"
)

// SMACrossStrategy buys when the short moving average crosses above the long
// one and sells on the opposite cross. Prices live in a fixed ring buffer
// sized to the long period.
type SMACrossStrategy struct {
	vtSymbol    string
	shortPeriod int
	longPeriod  int
	volume      decimal.Decimal

	prices []decimal.Decimal
	head   int // Next write position
	count  int
	sum    decimal.Decimal // Sum over the long period

	prevShort decimal.Decimal
	prevLong  decimal.Decimal
	primed    bool
}

// NewSMACrossStrategy validates the periods and creates the strategy.
func NewSMACrossStrategy(vtSymbol string, shortPeriod, longPeriod int, volume decimal.Decimal) (*SMACrossStrategy, error) {
	if shortPeriod <= 0 || shortPeriod >= longPeriod {
		return nil, fmt.Errorf("sma cross %s: need 0 < short (%d) < long (%d)", vtSymbol, shortPeriod, longPeriod)
	}
	if !volume.IsPositive() {
		return nil, fmt.Errorf("sma cross %s: volume must be positive", vtSymbol)
	}
	return &SMACrossStrategy{
		vtSymbol:    vtSymbol,
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		volume:      volume,
		prices:      make([]decimal.Decimal, longPeriod),
	}, nil
}

func (s *SMACrossStrategy) Name() string {
	return fmt.Sprintf("sma_cross(%s,%d,%d)", s.vtSymbol, s.shortPeriod, s.longPeriod)
}

func (s *SMACrossStrategy) VtSymbols() []string {
	return []string{s.vtSymbol}
}

// OnTick processes market updates and generates signals.
func (s *SMACrossStrategy) OnTick(tick *domain.TickData) []Action {
	if tick.VtSymbol() != s.vtSymbol {
		return nil
	}
	price := tick.LastPrice

	if s.count == s.longPeriod {
		s.sum = s.sum.Sub(s.prices[s.head]) // head holds the oldest price when full
	}
	s.prices[s.head] = price
	s.sum = s.sum.Add(price)
	s.head = (s.head + 1) % s.longPeriod
	if s.count < s.longPeriod {
		s.count++
	}

	if s.count < s.longPeriod {
		return nil
	}

	currLong := s.sum.Div(decimal.NewFromInt(int64(s.longPeriod)))
	currShort := s.shortSMA()

	var actions []Action
	if s.primed {
		// Golden cross
		if s.prevShort.LessThanOrEqual(s.prevLong) && currShort.GreaterThan(currLong) {
			actions = append(actions, Action{Type: ActionBuy, VtSymbol: s.vtSymbol, Price: price, Volume: s.volume})
		}
		// Dead cross
		if s.prevShort.GreaterThanOrEqual(s.prevLong) && currShort.LessThan(currLong) {
			actions = append(actions, Action{Type: ActionSell, VtSymbol: s.vtSymbol, Price: price, Volume: s.volume})
		}
	}

	s.prevShort = currShort
	s.prevLong = currLong
	s.primed = true
	return actions
}

// shortSMA walks back from the latest price over the short period.
func (s *SMACrossStrategy) shortSMA() decimal.Decimal {
	sum := decimal.Zero
	idx := s.head
	for range s.shortPeriod {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum = sum.Add(s.prices[idx])
	}
	return sum.Div(decimal.NewFromInt(int64(s.shortPeriod)))
}
