package lob

import "fmt"

// Order is a single resting or incoming order. Quantities are mutated only
// through Fill so the remaining <= initial invariant cannot be broken from
// outside the matching loop.
type Order struct {
	orderType    OrderType
	id           OrderID
	side         Side
	price        Price
	initialQty   Quantity
	remainingQty Quantity
}

// NewOrder builds an order with its full quantity remaining.
func NewOrder(orderType OrderType, id OrderID, side Side, price Price, qty Quantity) *Order {
	return &Order{
		orderType:    orderType,
		id:           id,
		side:         side,
		price:        price,
		initialQty:   qty,
		remainingQty: qty,
	}
}

func (o *Order) Type() OrderType            { return o.orderType }
func (o *Order) ID() OrderID                { return o.id }
func (o *Order) Side() Side                 { return o.side }
func (o *Order) Price() Price               { return o.price }
func (o *Order) InitialQuantity() Quantity  { return o.initialQty }
func (o *Order) RemainingQuantity() Quantity { return o.remainingQty }

func (o *Order) FilledQuantity() Quantity {
	return o.initialQty - o.remainingQty
}

func (o *Order) IsFilled() bool {
	return o.remainingQty == 0
}

// Fill consumes qty from the order's remaining quantity. Overfilling is a
// matching-engine bug, never a data condition, so it panics.
func (o *Order) Fill(qty Quantity) {
	if qty > o.remainingQty {
		panic(fmt.Sprintf("lob: order %d filled for %d with only %d remaining", o.id, qty, o.remainingQty))
	}
	o.remainingQty -= qty
}

// OrderModify is a cancel-and-replace command. The replacement inherits the
// order type of the live order it displaces.
type OrderModify struct {
	ID       OrderID
	Side     Side
	Price    Price
	Quantity Quantity
}

// ToOrder lowers the modify into a fresh order of the given type.
func (m OrderModify) ToOrder(orderType OrderType) *Order {
	return NewOrder(orderType, m.ID, m.Side, m.Price, m.Quantity)
}
