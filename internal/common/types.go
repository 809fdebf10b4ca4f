// Package common holds the value types shared by every core subsystem:
// the order/side/type enums, the packed OrderID scheme, Order, and Trade.
package common

import (
	"fmt"
	"time"
)

// Price is a fixed-point decimal price (real price * 100).
type Price int32

// Quantity is a resting or filled order size.
type Quantity uint64

// Symbol identifies a tradeable instrument.
type Symbol string

// ParticipantID is "<ordinal>_<govID>", minted once per govID by the Exchange.
type ParticipantID string

// TimeStamp is a wall-clock instant used for order timestamps and session gating.
type TimeStamp = time.Time

// Side is the aggressor/resting side of an order.
type Side uint8

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Action is the request kind routed through the PreProcessor.
type Action uint8

const (
	ActionAdd Action = iota
	ActionCancel
	ActionModify
)

// OrderType is priority-ranked for the PreProcessor; 0 is highest priority.
type OrderType uint8

const (
	Market OrderType = iota
	FillOrKill
	ImmediateOrCancel
	GoodAfterTime
	GoodForDay
	GoodTillDate
	AllOrNone
	GoodTillCancel
	MarketOnOpen
	MarketOnClose
)

// numOrderTypes is the width of the PreProcessor's rank-indexed bucket slice.
const numOrderTypes = int(MarketOnClose) + 1

// NumOrderTypes returns the count of distinct order types (bucket slice width).
func NumOrderTypes() int { return numOrderTypes }

// Rank returns the flush-priority rank of the type (0 = highest).
func (t OrderType) Rank() int { return int(t) }

func (t OrderType) String() string {
	switch t {
	case Market:
		return "Market"
	case FillOrKill:
		return "FillOrKill"
	case ImmediateOrCancel:
		return "ImmediateOrCancel"
	case GoodAfterTime:
		return "GoodAfterTime"
	case GoodForDay:
		return "GoodForDay"
	case GoodTillDate:
		return "GoodTillDate"
	case AllOrNone:
		return "AllOrNone"
	case GoodTillCancel:
		return "GoodTillCancel"
	case MarketOnOpen:
		return "MarketOnOpen"
	case MarketOnClose:
		return "MarketOnClose"
	default:
		return "Unknown"
	}
}

// IsMarketFamily reports whether the type is rewritten to the worst
// opposite-side price at OrderBook admission time.
func (t OrderType) IsMarketFamily() bool {
	return t == Market || t == MarketOnOpen || t == MarketOnClose
}

// OrderID is the 64-bit packed identifier:
//
//	bit 63..32 : creation timestamp (low 32 bits of UnixNano) — uniqueness
//	bit 31..1  : price*100, interpreted unsigned                — price decode
//	bit 0      : 1 if buy, 0 if sell                             — side decode
type OrderID uint64

// EncodeOrderID packs a creation instant, price and side into an OrderID.
func EncodeOrderID(ts TimeStamp, price Price, side Side) OrderID {
	tsLow := uint64(ts.UnixNano()) & 0xFFFFFFFF
	p := uint64(uint32(price)) & ((1 << 31) - 1)
	var s uint64
	if side == Buy {
		s = 1
	}
	return OrderID((tsLow << 32) | (p << 1) | s)
}

// DecodeSide extracts the side encoded in bit 0.
func DecodeSide(id OrderID) Side {
	if id&0x1 != 0 {
		return Buy
	}
	return Sell
}

// DecodePrice extracts the price encoded in bits 31..1.
func DecodePrice(id OrderID) Price {
	return Price((uint64(id) >> 1) & ((1 << 31) - 1))
}

// DecodeTimestampLow extracts the low 32 bits of the minting instant's UnixNano.
func DecodeTimestampLow(id OrderID) uint32 {
	return uint32(uint64(id) >> 32)
}

// OrderStatus reflects where an Order sits in its lifecycle.
type OrderStatus uint8

const (
	StatusNotProcessed OrderStatus = iota
	StatusStaged
	StatusBooked
	StatusFilled
	StatusCancelled
)

// Order is the (mutable remaining-quantity) order descriptor. Once minted its
// Symbol/Side/ID are treated as immutable; RemainingQuantity and Status
// change as it is matched or cancelled, and the OrderBook rewrites Price and
// Type of a Market-family order when it is admitted.
type Order struct {
	ID                OrderID
	Symbol            Symbol
	Type              OrderType
	Side              Side
	Price             Price
	RemainingQuantity Quantity
	TotalQuantity     Quantity
	ParticipantID     ParticipantID
	CreationTs        TimeStamp
	ActivationTs      TimeStamp
	DeactivationTs    TimeStamp
	Status            OrderStatus
}

// NewOrder mints an Order and its packed OrderID from already-parsed fields.
func NewOrder(symbol Symbol, typ OrderType, side Side, price Price, qty Quantity,
	participant ParticipantID, now, activation, deactivation TimeStamp) *Order {
	o := &Order{
		Symbol:            symbol,
		Type:              typ,
		Side:              side,
		Price:             price,
		RemainingQuantity: qty,
		TotalQuantity:     qty,
		ParticipantID:     participant,
		CreationTs:        now,
		ActivationTs:      activation,
		DeactivationTs:    deactivation,
		Status:            StatusNotProcessed,
	}
	o.ID = EncodeOrderID(now, price, side)
	return o
}

// FillPartially reduces the remaining quantity; the caller must enforce
// quantity <= RemainingQuantity, a precondition asserted here.
func (o *Order) FillPartially(qty Quantity) {
	if qty > o.RemainingQuantity {
		panic(fmt.Sprintf("common: fill %d exceeds remaining %d for order %d", qty, o.RemainingQuantity, o.ID))
	}
	o.RemainingQuantity -= qty
	if o.RemainingQuantity == 0 {
		o.Status = StatusFilled
	}
}

// IsFullyFilled reports whether no quantity remains.
func (o *Order) IsFullyFilled() bool { return o.RemainingQuantity == 0 }

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d symbol=%s type=%s side=%s price=%d remaining=%d/%d participant=%s}",
		o.ID, o.Symbol, o.Type, o.Side, o.Price, o.RemainingQuantity, o.TotalQuantity, o.ParticipantID,
	)
}

// OrderTraded is one side's leg of a Trade.
type OrderTraded struct {
	Symbol        Symbol
	OrderID       OrderID
	Price         Price
	QuantityFilled Quantity
	ParticipantID ParticipantID
}

// Trade is a matched bid/ask pair. ID is an external-correlation handle,
// not used by matching logic itself.
type Trade struct {
	ID         string
	Symbol     Symbol
	MatchedBid OrderTraded
	MatchedAsk OrderTraded
	MatchTs    TimeStamp
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{symbol=%s price=%d qty=%d bid=%d(%s) ask=%d(%s) ts=%s}",
		t.Symbol, t.MatchedBid.Price, t.MatchedBid.QuantityFilled,
		t.MatchedBid.OrderID, t.MatchedBid.ParticipantID,
		t.MatchedAsk.OrderID, t.MatchedAsk.ParticipantID,
		t.MatchTs.Format(time.RFC3339),
	)
}
