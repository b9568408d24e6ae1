package lob

import "sync"

// OrderBook is the limit order book for one symbol. All mutators and readers
// serialize on the book's lock; trades returned by Add/Modify are produced
// under that lock, so per-book trade order is total.
type OrderBook struct {
	symbol string

	mu     sync.RWMutex
	bids   *ladder
	asks   *ladder
	orders map[OrderID]*orderEntry
}

// orderEntry is the id-index record: the order, its queue node, and the
// level holding it. The entry exists iff the order is resting in exactly one
// level queue.
type orderEntry struct {
	order *Order
	node  *orderNode
	level *priceLevel
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newLadder(Buy),
		asks:   newLadder(Sell),
		orders: make(map[OrderID]*orderEntry),
	}
}

func (b *OrderBook) Symbol() string { return b.symbol }

// Add inserts an order and runs matching. Rejections (nil/zero quantity,
// duplicate id, FillAndKill with nothing to match) return an empty trade
// list and leave the book untouched.
func (b *OrderBook) Add(order *Order) []Trade {
	if order == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(order)
}

func (b *OrderBook) addLocked(order *Order) []Trade {
	if order.InitialQuantity() == 0 {
		return nil
	}
	if _, ok := b.orders[order.ID()]; ok {
		return nil
	}
	if order.Type() == FillAndKill && !b.canMatch(order.Side(), order.Price()) {
		return nil
	}

	side := b.bids
	if order.Side() == Sell {
		side = b.asks
	}
	level := side.getOrCreate(order.Price())
	node := level.pushBack(order)
	b.orders[order.ID()] = &orderEntry{order: order, node: node, level: level}

	return b.matchLocked()
}

// Cancel removes a resting order. No-op when the id is unknown.
func (b *OrderBook) Cancel(id OrderID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelLocked(id)
}

func (b *OrderBook) cancelLocked(id OrderID) {
	entry, ok := b.orders[id]
	if !ok {
		return
	}
	delete(b.orders, id)
	entry.level.unlink(entry.node)
	if entry.level.empty() {
		if entry.order.Side() == Buy {
			b.bids.remove(entry.level.price)
		} else {
			b.asks.remove(entry.level.price)
		}
	}
}

// Modify cancels the resting order with m.ID and re-adds it with the new
// side/price/quantity, preserving the original order type. The replacement
// joins the tail of its level: amendment forfeits queue position. Empty when
// the id is not resting.
func (b *OrderBook) Modify(m OrderModify) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.orders[m.ID]
	if !ok {
		return nil
	}
	orderType := entry.order.Type()
	b.cancelLocked(m.ID)
	return b.addLocked(m.ToOrder(orderType))
}

// Size reports the number of resting orders.
func (b *OrderBook) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// BestBid returns the highest resting bid price, false when no bids rest.
func (b *OrderBook) BestBid() (Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lvl := b.bids.best(); lvl != nil {
		return lvl.price, true
	}
	return 0, false
}

// BestAsk returns the lowest resting ask price, false when no asks rest.
func (b *OrderBook) BestAsk() (Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lvl := b.asks.best(); lvl != nil {
		return lvl.price, true
	}
	return 0, false
}

// Depth aggregates remaining quantity per level: bids highest-first, asks
// lowest-first. Pure; the book is unchanged.
func (b *OrderBook) Depth() BookLevels {
	b.mu.RLock()
	defer b.mu.RUnlock()

	levels := BookLevels{
		Bids: make([]LevelInfo, 0, len(b.bids.prices)),
		Asks: make([]LevelInfo, 0, len(b.asks.prices)),
	}
	b.bids.walk(func(lvl *priceLevel) bool {
		levels.Bids = append(levels.Bids, LevelInfo{Price: lvl.price, Quantity: lvl.totalQuantity()})
		return true
	})
	b.asks.walk(func(lvl *priceLevel) bool {
		levels.Asks = append(levels.Asks, LevelInfo{Price: lvl.price, Quantity: lvl.totalQuantity()})
		return true
	})
	return levels
}

// canMatch reports whether an order at price on side would cross the
// opposite ladder right now.
func (b *OrderBook) canMatch(side Side, price Price) bool {
	if side == Buy {
		best := b.asks.best()
		return best != nil && best.price <= price
	}
	best := b.bids.best()
	return best != nil && best.price >= price
}

// matchLocked drains crossed volume from the tops of both ladders, then
// cancels any FillAndKill order left at the top of either side. Each trade
// leg carries the resting limit price of that leg.
func (b *OrderBook) matchLocked() []Trade {
	var trades []Trade

	for {
		bidLvl := b.bids.best()
		askLvl := b.asks.best()
		if bidLvl == nil || askLvl == nil {
			break
		}
		if bidLvl.price < askLvl.price {
			break
		}

		for !bidLvl.empty() && !askLvl.empty() {
			bid := bidLvl.head.order
			ask := askLvl.head.order

			qty := bid.RemainingQuantity()
			if ask.RemainingQuantity() < qty {
				qty = ask.RemainingQuantity()
			}
			bid.Fill(qty)
			ask.Fill(qty)

			trades = append(trades, Trade{
				Bid: TradeLeg{OrderID: bid.ID(), Price: bid.Price(), Quantity: qty},
				Ask: TradeLeg{OrderID: ask.ID(), Price: ask.Price(), Quantity: qty},
			})

			if bid.IsFilled() {
				bidLvl.unlink(bidLvl.head)
				delete(b.orders, bid.ID())
			}
			if ask.IsFilled() {
				askLvl.unlink(askLvl.head)
				delete(b.orders, ask.ID())
			}
		}

		if bidLvl.empty() {
			b.bids.remove(bidLvl.price)
		}
		if askLvl.empty() {
			b.asks.remove(askLvl.price)
		}
	}

	// A FillAndKill order that did not fully execute never rests: it can
	// only be sitting at the top of its side after the loop above.
	if lvl := b.bids.best(); lvl != nil && lvl.head.order.Type() == FillAndKill {
		b.cancelLocked(lvl.head.order.ID())
	}
	if lvl := b.asks.best(); lvl != nil && lvl.head.order.Type() == FillAndKill {
		b.cancelLocked(lvl.head.order.ID())
	}

	return trades
}
