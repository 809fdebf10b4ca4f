// Package preprocessor implements the two-stage staging area that ranks
// incoming requests by order-type priority, enforces activation/session
// rules, and flushes into the OrderBook (spec.md §4.3). One instance exists
// per symbol per side.
package preprocessor

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"xchange/internal/calendar"
	"xchange/internal/common"
	"xchange/internal/level"
	"xchange/internal/orderbook"
)

// OrderActionInfo is a staged request: an OrderID, the type it was minted
// with (so flush can find its rank bucket), and whether it is an Add or a
// Cancel waiting to reach the book.
type OrderActionInfo struct {
	OrderID   common.OrderID
	OrderType common.OrderType
	Action    common.Action
}

// less derives the intra-bucket traversal order straight from the packed
// OrderID: buys sort by descending price, sells by ascending price, ties
// broken by ascending timestamp, and a final OrderID tie-break keeps the
// ordered set's keys strictly distinct (spec.md §4.3).
func less(isBid bool) func(a, b OrderActionInfo) bool {
	return func(a, b OrderActionInfo) bool {
		pa, pb := common.DecodePrice(a.OrderID), common.DecodePrice(b.OrderID)
		if pa != pb {
			if isBid {
				return pa > pb
			}
			return pa < pb
		}
		ta, tb := common.DecodeTimestampLow(a.OrderID), common.DecodeTimestampLow(b.OrderID)
		if ta != tb {
			return ta < tb
		}
		return a.OrderID < b.OrderID
	}
}

type admitDecision int

const (
	admitNow admitDecision = iota
	admitRetry
	admitDrop
)

// PreProcessor stages Add/Cancel requests for one symbol/side pair and
// flushes them into the shared OrderBook once a pending-count or
// pending-duration threshold is crossed.
type PreProcessor struct {
	Symbol common.Symbol
	IsBid  bool

	book     *orderbook.OrderBook
	calendar calendar.Calendar

	wallClock common.Clock // order timestamps, session gating
	monoClock common.Clock // flush-interval timing

	maxPending         int
	maxPendingDuration time.Duration
	lastFlushTs        time.Time

	typeBuckets []*btree.BTreeG[OrderActionInfo]
	encountered map[common.OrderID]bool
	staged      map[common.OrderID]OrderActionInfo
	orders      map[common.OrderID]*common.Order
}

// New constructs a PreProcessor for one side of symbol's book.
func New(symbol common.Symbol, isBid bool, book *orderbook.OrderBook, cal calendar.Calendar,
	wallClock, monoClock common.Clock, maxPending int, maxPendingDuration time.Duration) *PreProcessor {
	p := &PreProcessor{
		Symbol:             symbol,
		IsBid:              isBid,
		book:               book,
		calendar:           cal,
		wallClock:          wallClock,
		monoClock:          monoClock,
		maxPending:         maxPending,
		maxPendingDuration: maxPendingDuration,
		encountered:        make(map[common.OrderID]bool),
		staged:             make(map[common.OrderID]OrderActionInfo),
		orders:             make(map[common.OrderID]*common.Order),
	}
	p.lastFlushTs = monoClock.Now()
	l := less(isBid)
	p.typeBuckets = make([]*btree.BTreeG[OrderActionInfo], common.NumOrderTypes())
	for i := range p.typeBuckets {
		p.typeBuckets[i] = btree.NewBTreeG(l)
	}
	return p
}

// SubmitAdd stages order for the next flush. GoodForDay orders are dropped
// outright if the market is currently closed; otherwise their deactivation
// is rewritten to the next session close.
func (p *PreProcessor) SubmitAdd(order *common.Order) {
	if _, seen := p.orders[order.ID]; seen {
		return
	}
	if order.Type == common.GoodForDay {
		if !p.calendar.CanTrade(p.wallClock.Now()) {
			log.Debug().Uint64("order", uint64(order.ID)).Msg("preprocessor: dropping GoodForDay add, market closed")
			return
		}
		order.DeactivationTs = p.calendar.NextClose(p.wallClock.Now())
	}
	p.orders[order.ID] = order
	order.Status = common.StatusStaged
	p.stage(OrderActionInfo{OrderID: order.ID, OrderType: order.Type, Action: common.ActionAdd})
	p.TryFlush()
}

// SubmitCancel removes orderID from staging if it has not yet reached the
// book, or stages a Cancel action for the next flush if it has. Unknown
// OrderIDs are a silent no-op (spec.md §7).
func (p *PreProcessor) SubmitCancel(orderID common.OrderID, orderType common.OrderType) {
	if !p.encountered[orderID] {
		return
	}
	if info, staged := p.staged[orderID]; staged {
		if info.Action == common.ActionCancel {
			return // a cancel for this order is already pending
		}
		rank := info.OrderType.Rank()
		p.typeBuckets[rank].Delete(info)
		delete(p.staged, orderID)
		delete(p.orders, orderID)
		p.TryFlush()
		return
	}
	p.stage(OrderActionInfo{OrderID: orderID, OrderType: orderType, Action: common.ActionCancel})
	p.TryFlush()
}

// SubmitModify cancels oldID and stages newOrder as an Add. The caller
// (Exchange) must ensure symbol/side/type are preserved across the call.
func (p *PreProcessor) SubmitModify(oldID common.OrderID, newOrder *common.Order) {
	p.SubmitCancel(oldID, newOrder.Type)
	p.SubmitAdd(newOrder)
}

func (p *PreProcessor) stage(info OrderActionInfo) {
	rank := info.OrderType.Rank()
	p.typeBuckets[rank].Set(info)
	p.encountered[info.OrderID] = true
	p.staged[info.OrderID] = info
}

// TryFlush fires a flush when either the staged-count or elapsed-duration
// threshold is reached.
func (p *PreProcessor) TryFlush() {
	total := 0
	for _, b := range p.typeBuckets {
		total += b.Len()
	}
	elapsed := p.monoClock.Now().Sub(p.lastFlushTs)
	if total < p.maxPending && elapsed < p.maxPendingDuration {
		return
	}
	p.flush()
	p.lastFlushTs = p.monoClock.Now()
}

func (p *PreProcessor) flush() {
	if !p.calendar.CanTrade(p.wallClock.Now()) {
		log.Debug().Str("symbol", string(p.Symbol)).Msg("preprocessor: flush skipped, market closed")
		return
	}

	for rank := 0; rank < int(common.MarketOnOpen); rank++ {
		p.emitBucket(rank)
	}

	now := p.wallClock.Now()
	nowMinute := now.Truncate(time.Minute)
	// NextOpen/NextClose are strictly after their argument, so ask from just
	// before the current minute to see whether a boundary falls inside it.
	justBefore := nowMinute.Add(-time.Nanosecond)
	if nowMinute.Equal(p.calendar.NextOpen(justBefore).Truncate(time.Minute)) {
		p.emitBucket(int(common.MarketOnOpen))
	}
	if nowMinute.Equal(p.calendar.NextClose(justBefore).Truncate(time.Minute)) {
		p.emitBucket(int(common.MarketOnClose))
	}

	p.reconcile()
}

// emitBucket drains the admissible items of one rank's ordered set into the
// book, in the set's price-time priority order. AllOrNone/GoodAfterTime
// items that are not yet admissible stay staged for the next flush.
func (p *PreProcessor) emitBucket(rank int) {
	bucket := p.typeBuckets[rank]
	if bucket.Len() == 0 {
		return
	}
	pending := bucket.Items() // snapshot: admission can mutate the live bucket mid-walk

	for _, info := range pending {
		if _, ok := bucket.Get(info); !ok {
			continue // removed earlier in this same pass
		}

		if info.Action == common.ActionCancel {
			p.book.Cancel(info.OrderID)
			bucket.Delete(info)
			delete(p.staged, info.OrderID)
			continue
		}

		order, ok := p.orders[info.OrderID]
		if !ok {
			bucket.Delete(info)
			delete(p.staged, info.OrderID)
			continue
		}

		switch p.admit(order) {
		case admitNow:
			p.book.Add(order)
			bucket.Delete(info)
			delete(p.staged, info.OrderID)
		case admitDrop:
			log.Debug().Uint64("order", uint64(order.ID)).Str("type", order.Type.String()).
				Msg("preprocessor: dropping order at flush")
			bucket.Delete(info)
			delete(p.staged, info.OrderID)
			delete(p.orders, info.OrderID)
		case admitRetry:
			// left staged; will be reconsidered on the next flush
		}
	}
}

// admit implements the per-type gating table of spec.md §4.3.
func (p *PreProcessor) admit(order *common.Order) admitDecision {
	now := p.wallClock.Now()
	switch order.Type {
	case common.Market, common.GoodTillCancel, common.MarketOnOpen, common.MarketOnClose:
		return admitNow
	case common.GoodAfterTime:
		if now.Before(order.ActivationTs) {
			return admitRetry
		}
		return admitNow
	case common.GoodForDay, common.GoodTillDate:
		if now.Before(order.DeactivationTs) {
			return admitNow
		}
		return admitDrop
	case common.FillOrKill:
		if p.availableLiquidity(order) >= order.RemainingQuantity {
			return admitNow
		}
		return admitDrop
	case common.AllOrNone:
		if p.availableLiquidity(order) >= order.RemainingQuantity {
			return admitNow
		}
		return admitRetry
	case common.ImmediateOrCancel:
		if avail := p.availableLiquidity(order); avail < order.RemainingQuantity {
			order.RemainingQuantity = avail
		}
		return admitNow
	default:
		return admitDrop
	}
}

// availableLiquidity sums the opposing side's quantity resting at or
// within order's price.
func (p *PreProcessor) availableLiquidity(order *common.Order) common.Quantity {
	var avail common.Quantity
	if order.Side == common.Buy {
		p.book.AskLevels(func(lv *level.Level) bool {
			if lv.Price > order.Price {
				return false
			}
			avail += lv.Aggregate
			return true
		})
	} else {
		p.book.BidLevels(func(lv *level.Level) bool {
			if lv.Price < order.Price {
				return false
			}
			avail += lv.Aggregate
			return true
		})
	}
	return avail
}

// reconcile walks the trade stream in reverse and drops fully-filled
// orders this side owns from the authoritative order map; encountered IDs
// are retained forever, so a later cancel on one of them is routed to the
// book, where it finds nothing to remove, and the dead order is never
// re-added.
func (p *PreProcessor) reconcile() {
	trades := p.book.Trades()
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		id := t.MatchedAsk.OrderID
		if p.IsBid {
			id = t.MatchedBid.OrderID
		}
		order, ok := p.orders[id]
		if !ok {
			continue
		}
		if order.RemainingQuantity == 0 {
			delete(p.orders, id)
			delete(p.staged, id)
		}
	}
}

// Snapshot reports the number of items staged per order type and is meant
// for introspection/logging only (spec.md §9's printPreProcessorStatus
// analogue); it performs no I/O itself.
type Snapshot struct {
	PendingByType map[common.OrderType]int
	TotalPending  int
}

func (p *PreProcessor) Snapshot() Snapshot {
	s := Snapshot{PendingByType: make(map[common.OrderType]int)}
	for rank, bucket := range p.typeBuckets {
		n := bucket.Len()
		s.PendingByType[common.OrderType(rank)] = n
		s.TotalPending += n
	}
	return s
}
