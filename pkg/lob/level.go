package lob

import "sort"

// orderNode is one slot in a level's FIFO queue. Nodes are linked so a
// cancel can unlink in O(1) from the middle of the queue.
type orderNode struct {
	order *Order
	prev  *orderNode
	next  *orderNode
}

// priceLevel holds all resting orders at one price in arrival order.
type priceLevel struct {
	price Price
	head  *orderNode
	tail  *orderNode
	count int
}

func (l *priceLevel) pushBack(o *Order) *orderNode {
	node := &orderNode{order: o}
	if l.tail == nil {
		l.head = node
		l.tail = node
	} else {
		node.prev = l.tail
		l.tail.next = node
		l.tail = node
	}
	l.count++
	return node
}

func (l *priceLevel) unlink(node *orderNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.count--
}

func (l *priceLevel) empty() bool { return l.count == 0 }

// totalQuantity sums remaining quantity across the queue.
func (l *priceLevel) totalQuantity() Quantity {
	var total Quantity
	for n := l.head; n != nil; n = n.next {
		total += n.order.RemainingQuantity()
	}
	return total
}

// ladder is one side of the book: a price -> level map plus a sorted price
// index. Prices are kept ascending; side decides which end is best.
type ladder struct {
	side   Side
	levels map[Price]*priceLevel
	prices []Price
}

func newLadder(side Side) *ladder {
	return &ladder{
		side:   side,
		levels: make(map[Price]*priceLevel),
	}
}

func (ld *ladder) empty() bool { return len(ld.prices) == 0 }

func (ld *ladder) getOrCreate(price Price) *priceLevel {
	if lvl, ok := ld.levels[price]; ok {
		return lvl
	}
	lvl := &priceLevel{price: price}
	ld.levels[price] = lvl
	i := sort.Search(len(ld.prices), func(i int) bool { return ld.prices[i] >= price })
	ld.prices = append(ld.prices, 0)
	copy(ld.prices[i+1:], ld.prices[i:])
	ld.prices[i] = price
	return lvl
}

// remove prunes an empty level from the ladder.
func (ld *ladder) remove(price Price) {
	if _, ok := ld.levels[price]; !ok {
		return
	}
	delete(ld.levels, price)
	i := sort.Search(len(ld.prices), func(i int) bool { return ld.prices[i] >= price })
	if i < len(ld.prices) && ld.prices[i] == price {
		ld.prices = append(ld.prices[:i], ld.prices[i+1:]...)
	}
}

// best returns the top-priority level: highest price for bids, lowest for
// asks. Nil when the ladder is empty.
func (ld *ladder) best() *priceLevel {
	if len(ld.prices) == 0 {
		return nil
	}
	if ld.side == Buy {
		return ld.levels[ld.prices[len(ld.prices)-1]]
	}
	return ld.levels[ld.prices[0]]
}

// walk visits levels in priority order until fn returns false.
func (ld *ladder) walk(fn func(*priceLevel) bool) {
	if ld.side == Buy {
		for i := len(ld.prices) - 1; i >= 0; i-- {
			if !fn(ld.levels[ld.prices[i]]) {
				return
			}
		}
		return
	}
	for _, price := range ld.prices {
		if !fn(ld.levels[price]) {
			return
		}
	}
}
