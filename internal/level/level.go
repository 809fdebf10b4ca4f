// Package level implements the per-price FIFO queue of resting orders with
// O(1) cancel-by-ID, the book's smallest building block.
package level

import (
	"container/list"
	"fmt"

	"xchange/internal/common"
)

// Level is the price bucket maintaining a time-ordered queue of resting
// orders with an ID index for O(1) cancel. Every order in a Level shares
// its Symbol and Price; Aggregate always equals the sum of remaining
// quantities of the orders in the FIFO (Level.1 in spec.md §8).
type Level struct {
	Symbol    common.Symbol
	Price     common.Price
	Aggregate common.Quantity

	fifo  *list.List
	index map[common.OrderID]*list.Element
}

// New constructs an empty Level for symbol/price.
func New(symbol common.Symbol, price common.Price) *Level {
	return &Level{
		Symbol: symbol,
		Price:  price,
		fifo:   list.New(),
		index:  make(map[common.OrderID]*list.Element),
	}
}

// Add appends order to the FIFO tail. Precondition: order.Price == l.Price.
// Idempotent: adding an already-present OrderID is a no-op.
func (l *Level) Add(order *common.Order) {
	if order.Price != l.Price || order.Symbol != l.Symbol {
		panic(fmt.Sprintf("level: order %d price/symbol mismatch with level %s@%d", order.ID, l.Symbol, l.Price))
	}
	if _, exists := l.index[order.ID]; exists {
		return
	}
	elem := l.fifo.PushBack(order)
	l.index[order.ID] = elem
	l.Aggregate += order.RemainingQuantity
	order.Status = common.StatusBooked
}

// Cancel removes orderID from the FIFO and index in O(1). Silent no-op if
// the ID is unknown (spec.md §7: not an error).
func (l *Level) Cancel(orderID common.OrderID) {
	elem, ok := l.index[orderID]
	if !ok {
		return
	}
	order := elem.Value.(*common.Order)
	l.Aggregate -= order.RemainingQuantity
	l.fifo.Remove(elem)
	delete(l.index, orderID)
	order.Status = common.StatusCancelled
}

// Modify is cancel(oldID); add(newOrder) — NOT atomic w.r.t. FIFO position,
// so the replacement order loses time priority, as documented in spec.md §4.1.
func (l *Level) Modify(oldID common.OrderID, newOrder *common.Order) {
	l.Cancel(oldID)
	l.Add(newOrder)
}

// FillFront reduces the head order's remaining quantity by qty, removing it
// from the level if it reaches zero. The caller must enforce
// qty <= head.RemainingQuantity.
func (l *Level) FillFront(qty common.Quantity) {
	head := l.Head()
	if head == nil {
		panic("level: FillFront on empty level")
	}
	if qty > head.RemainingQuantity {
		panic(fmt.Sprintf("level: fill %d exceeds head remaining %d", qty, head.RemainingQuantity))
	}
	head.FillPartially(qty)
	l.Aggregate -= qty
	if head.IsFullyFilled() {
		l.removeMatched(head.ID)
	}
}

// removeMatched drops a fully-filled order from the FIFO/index without
// touching Aggregate (the caller already debited it).
func (l *Level) removeMatched(orderID common.OrderID) {
	elem, ok := l.index[orderID]
	if !ok {
		return
	}
	l.fifo.Remove(elem)
	delete(l.index, orderID)
}

// Head peeks at the earliest resting order, or nil if the level is empty.
func (l *Level) Head() *common.Order {
	front := l.fifo.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*common.Order)
}

// Empty reports whether the level holds no resting quantity.
func (l *Level) Empty() bool { return l.Aggregate == 0 }

// Len returns the number of resting orders.
func (l *Level) Len() int { return l.fifo.Len() }

// Orders returns a snapshot slice of the resting orders in FIFO order, for
// introspection and tests (spec.md §9's printOrderBookState analogue).
func (l *Level) Orders() []*common.Order {
	out := make([]*common.Order, 0, l.fifo.Len())
	for e := l.fifo.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*common.Order))
	}
	return out
}
