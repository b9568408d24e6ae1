// Package feed drives registered books with randomly generated order flow.
// It stands in for a real feed handler: one mutator goroutine per driver,
// publishing whatever trades matching produces.
package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/luxfi/log"

	"github.com/marketwire/lob/pkg/lob"
	"github.com/marketwire/lob/pkg/metrics"
)

// TradeSink receives the trades produced by each applied order intent.
type TradeSink interface {
	PublishTrades(symbol string, trades []lob.Trade)
}

// Config controls the synthetic order flow.
type Config struct {
	TickInterval time.Duration
	PriceMid     lob.Price
	PriceSpread  int32 // prices drawn from [Mid-Spread, Mid+Spread]
	MaxQuantity  uint32

	// Op mix in percent; the remainder are GoodTillCancel adds.
	FAKPercent    int
	CancelPercent int
	ModifyPercent int

	// Seed for the driver's private RNG. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns a mix that exercises every book operation.
func DefaultConfig() Config {
	return Config{
		TickInterval:  500 * time.Millisecond,
		PriceMid:      100,
		PriceSpread:   10,
		MaxQuantity:   50,
		FAKPercent:    15,
		CancelPercent: 15,
		ModifyPercent: 10,
	}
}

// Driver generates random order intents against every registered symbol.
type Driver struct {
	registry *lob.Registry
	sink     TradeSink
	metrics  *metrics.Metrics // optional
	logger   log.Logger
	cfg      Config

	rng    *rand.Rand
	nextID lob.OrderID

	// recent resting candidates per symbol, targets for cancel/modify
	recent map[string][]lob.OrderID
}

// NewDriver creates a driver. m may be nil.
func NewDriver(registry *lob.Registry, sink TradeSink, m *metrics.Metrics, logger log.Logger, cfg Config) *Driver {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Driver{
		registry: registry,
		sink:     sink,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		recent:   make(map[string][]lob.OrderID),
	}
}

// Run generates one order intent per tick until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	d.logger.Info("feed driver started", "interval", d.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("feed driver stopped")
			return
		case <-ticker.C:
			d.step()
		}
	}
}

// step applies one random operation to one random registered book.
func (d *Driver) step() {
	symbols := d.registry.Symbols()
	if len(symbols) == 0 {
		return
	}
	symbol := symbols[d.rng.Intn(len(symbols))]
	book, ok := d.registry.Book(symbol)
	if !ok {
		return
	}

	roll := d.rng.Intn(100)
	switch {
	case roll < d.cfg.CancelPercent:
		d.cancelOne(book, symbol)
	case roll < d.cfg.CancelPercent+d.cfg.ModifyPercent:
		d.modifyOne(book, symbol)
	case roll < d.cfg.CancelPercent+d.cfg.ModifyPercent+d.cfg.FAKPercent:
		d.addOne(book, symbol, lob.FillAndKill)
	default:
		d.addOne(book, symbol, lob.GoodTillCancel)
	}
}

func (d *Driver) addOne(book *lob.OrderBook, symbol string, orderType lob.OrderType) {
	d.nextID++
	order := lob.NewOrder(orderType, d.nextID, d.randomSide(), d.randomPrice(), d.randomQuantity())

	start := time.Now()
	trades := book.Add(order)
	elapsed := time.Since(start)

	if d.metrics != nil {
		d.metrics.ObserveAdd(trades, elapsed)
	}
	if orderType == lob.GoodTillCancel {
		d.remember(symbol, order.ID())
	}
	d.publish(symbol, trades)
}

func (d *Driver) cancelOne(book *lob.OrderBook, symbol string) {
	id, ok := d.pick(symbol)
	if !ok {
		return
	}
	book.Cancel(id) // no-op when the order already left the book
}

func (d *Driver) modifyOne(book *lob.OrderBook, symbol string) {
	id, ok := d.pick(symbol)
	if !ok {
		return
	}
	modify := lob.OrderModify{
		ID:       id,
		Side:     d.randomSide(),
		Price:    d.randomPrice(),
		Quantity: d.randomQuantity(),
	}

	start := time.Now()
	trades := book.Modify(modify)
	elapsed := time.Since(start)

	if d.metrics != nil {
		d.metrics.ObserveAdd(trades, elapsed)
	}
	d.publish(symbol, trades)
}

func (d *Driver) publish(symbol string, trades []lob.Trade) {
	if len(trades) == 0 {
		return
	}
	d.logger.Debug("trades matched", "symbol", symbol, "count", len(trades))
	d.sink.PublishTrades(symbol, trades)
}

func (d *Driver) randomSide() lob.Side {
	if d.rng.Intn(2) == 0 {
		return lob.Buy
	}
	return lob.Sell
}

func (d *Driver) randomPrice() lob.Price {
	offset := d.rng.Int31n(2*d.cfg.PriceSpread+1) - d.cfg.PriceSpread
	return d.cfg.PriceMid + offset
}

func (d *Driver) randomQuantity() lob.Quantity {
	return lob.Quantity(1 + d.rng.Int31n(int32(d.cfg.MaxQuantity)))
}

// remember keeps a bounded ring of recently added ids per symbol.
func (d *Driver) remember(symbol string, id lob.OrderID) {
	ids := append(d.recent[symbol], id)
	if len(ids) > 256 {
		ids = ids[1:]
	}
	d.recent[symbol] = ids
}

// pick removes and returns a random remembered id for symbol.
func (d *Driver) pick(symbol string) (lob.OrderID, bool) {
	ids := d.recent[symbol]
	if len(ids) == 0 {
		return 0, false
	}
	i := d.rng.Intn(len(ids))
	id := ids[i]
	d.recent[symbol] = append(ids[:i], ids[i+1:]...)
	return id, true
}
