// Package marketdata aggregates executed trades into per-symbol statistics
// and optionally republishes trade ticks to NATS.
package marketdata

import (
	"sync"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/marketwire/lob/pkg/lob"
)

// Stats is the cumulative per-symbol trade summary. VWAP and Turnover use
// exact decimal arithmetic over the integral price and quantity domain;
// nothing here feeds back into matching.
type Stats struct {
	Symbol    string
	LastPrice lob.Price
	Trades    uint64
	Volume    uint64
	Turnover  decimal.Decimal
	VWAP      decimal.Decimal
}

type symbolStats struct {
	lastPrice lob.Price
	trades    uint64
	volume    uint64
	turnover  decimal.Decimal // sum of bid-leg price*qty over all trades
}

// Aggregator consumes trade batches from the matching side.
type Aggregator struct {
	logger log.Logger

	mu    sync.RWMutex
	stats map[string]*symbolStats

	publisher *Publisher // nil when NATS is not configured
}

// NewAggregator creates an aggregator. publisher may be nil.
func NewAggregator(logger log.Logger, publisher *Publisher) *Aggregator {
	return &Aggregator{
		logger:    logger,
		stats:     make(map[string]*symbolStats),
		publisher: publisher,
	}
}

// Record folds a trade batch into the symbol's statistics. Each trade
// counts its quantity once; turnover is accumulated at the bid leg's price,
// matching the price at which the resting bid was lifted.
func (a *Aggregator) Record(symbol string, trades []lob.Trade) {
	if len(trades) == 0 {
		return
	}

	a.mu.Lock()
	s, ok := a.stats[symbol]
	if !ok {
		s = &symbolStats{}
		a.stats[symbol] = s
	}
	for _, trade := range trades {
		qty := uint64(trade.Bid.Quantity)
		s.trades++
		s.volume += qty
		s.lastPrice = trade.Bid.Price
		notional := decimal.NewFromInt(int64(trade.Bid.Price)).Mul(decimal.NewFromInt(int64(qty)))
		s.turnover = s.turnover.Add(notional)
	}
	a.mu.Unlock()

	if a.publisher != nil {
		if err := a.publisher.PublishTrades(symbol, trades); err != nil {
			a.logger.Warn("trade tick publish failed", "symbol", symbol, "error", err)
		}
	}
}

// Snapshot returns the current statistics for symbol.
func (a *Aggregator) Snapshot(symbol string) (Stats, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.stats[symbol]
	if !ok {
		return Stats{}, false
	}
	out := Stats{
		Symbol:    symbol,
		LastPrice: s.lastPrice,
		Trades:    s.trades,
		Volume:    s.volume,
		Turnover:  s.turnover,
	}
	if s.volume > 0 {
		out.VWAP = s.turnover.Div(decimal.NewFromInt(int64(s.volume)))
	}
	return out, true
}

// Symbols lists symbols with at least one recorded trade.
func (a *Aggregator) Symbols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	symbols := make([]string, 0, len(a.stats))
	for symbol := range a.stats {
		symbols = append(symbols, symbol)
	}
	return symbols
}
