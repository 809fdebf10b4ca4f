// Package orderbook implements the per-symbol price-indexed collections of
// Levels and the price-time-priority matching algorithm (spec.md §4.2).
package orderbook

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"xchange/internal/common"
	"xchange/internal/level"
)

// OrderBook is the two-sided price ladder for a single symbol. Levels are
// kept in a tidwall/btree.BTreeG ordered by price — bids descending (best
// bid first), asks ascending (best ask first) — generalizing the teacher's
// PriceLevels = btree.BTreeG[*PriceLevel] to this spec's Level type.
type OrderBook struct {
	Symbol common.Symbol

	bids *btree.BTreeG[*level.Level]
	asks *btree.BTreeG[*level.Level]

	trades []common.Trade
}

// New constructs an empty OrderBook for symbol.
func New(symbol common.Symbol) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *level.Level) bool {
		return a.Price > b.Price // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *level.Level) bool {
		return a.Price < b.Price // ascending: best ask first
	})
	return &OrderBook{Symbol: symbol, bids: bids, asks: asks}
}

// Trades returns the append-only trade stream in emission order.
func (b *OrderBook) Trades() []common.Trade { return b.trades }

// BestBid returns the highest resting bid Level, or nil if bids are empty.
func (b *OrderBook) BestBid() *level.Level {
	lv, ok := b.bids.MinMut()
	if !ok {
		return nil
	}
	return lv
}

// BestAsk returns the lowest resting ask Level, or nil if asks are empty.
func (b *OrderBook) BestAsk() *level.Level {
	lv, ok := b.asks.MinMut()
	if !ok {
		return nil
	}
	return lv
}

// BidLevels exposes the bid side in its descending-price traversal order,
// for PreProcessor liquidity checks (qtyAvailableForMatch in original_source).
func (b *OrderBook) BidLevels(iter func(lv *level.Level) bool) {
	b.bids.Scan(iter)
}

// AskLevels exposes the ask side in its ascending-price traversal order.
func (b *OrderBook) AskLevels(iter func(lv *level.Level) bool) {
	b.asks.Scan(iter)
}

// Add admits order into the book and runs one round of matching. It
// returns (Trade, true) if a match occurred. A Market-family order is
// rewritten to the worst standing opposite-side price (or kept as
// submitted if that side is empty) and reclassified to GoodTillCancel
// before insertion (spec.md §4.2).
func (b *OrderBook) Add(order *common.Order) (common.Trade, bool) {
	if order.Symbol != b.Symbol {
		return common.Trade{}, false
	}

	if order.Type.IsMarketFamily() {
		b.rewriteMarketOrder(order)
	}

	side := sideBook(b, order.Side)
	lv, ok := side.GetMut(&level.Level{Price: order.Price})
	if !ok {
		lv = level.New(b.Symbol, order.Price)
		side.Set(lv)
	}
	lv.Add(order)

	log.Debug().Str("symbol", string(b.Symbol)).Uint64("order", uint64(order.ID)).
		Int32("price", int32(order.Price)).Msg("orderbook: order admitted")

	return b.match()
}

// rewriteMarketOrder sets order.Price to the worst price resting on the
// opposite side and reclassifies it to GoodTillCancel. If that side is
// empty the order keeps its submitted price.
func (b *OrderBook) rewriteMarketOrder(order *common.Order) {
	if order.Side == common.Buy {
		if worst, ok := b.asks.Max(); ok {
			order.Price = worst.Price
		}
	} else {
		if worst, ok := b.bids.Max(); ok {
			order.Price = worst.Price
		}
	}
	order.Type = common.GoodTillCancel
}

// Cancel decodes price and side from orderID, removes it from its Level,
// and drops the Level if it becomes empty. Cancellation never trades.
func (b *OrderBook) Cancel(orderID common.OrderID) (common.Trade, bool) {
	price := common.DecodePrice(orderID)
	side := sideBook(b, common.DecodeSide(orderID))

	lv, ok := side.GetMut(&level.Level{Price: price})
	if !ok {
		return common.Trade{}, false
	}
	lv.Cancel(orderID)
	if lv.Empty() {
		side.Delete(lv)
	}
	return common.Trade{}, false
}

// Modify is cancel(oldID); add(newOrder).
func (b *OrderBook) Modify(oldID common.OrderID, newOrder *common.Order) (common.Trade, bool) {
	b.Cancel(oldID)
	return b.Add(newOrder)
}

// match performs at most one match step: the aggressor crossing the
// current best bid/ask is filled against the resting head order on each
// side, settling at the best ask's price (the passive side when a bid is the
// aggressor; a sell that crosses a resting bid also prints at the ask's
// price). Callers that want
// to fully drain a cross invoke match (via Add) repeatedly; spec.md §9
// documents this as the chosen behavior for the "how many steps per call"
// open question — one external Add performs exactly one match step.
func (b *OrderBook) match() (common.Trade, bool) {
	bestBid, bidOk := b.bids.MinMut()
	bestAsk, askOk := b.asks.MinMut()
	if !bidOk || !askOk {
		return common.Trade{}, false
	}
	if bestBid.Price < bestAsk.Price {
		return common.Trade{}, false
	}

	bidOrder := bestBid.Head()
	askOrder := bestAsk.Head()
	qty := min(bidOrder.RemainingQuantity, askOrder.RemainingQuantity)
	settlePrice := bestAsk.Price // passive side: the ask, since a crossing bid is the usual aggressor

	bestBid.FillFront(qty)
	bestAsk.FillFront(qty)

	if bestBid.Empty() {
		b.bids.Delete(bestBid)
	}
	if bestAsk.Empty() {
		b.asks.Delete(bestAsk)
	}

	trade := common.Trade{
		ID:     uuid.New().String(),
		Symbol: b.Symbol,
		MatchedBid: common.OrderTraded{
			Symbol: b.Symbol, OrderID: bidOrder.ID, Price: settlePrice,
			QuantityFilled: qty, ParticipantID: bidOrder.ParticipantID,
		},
		MatchedAsk: common.OrderTraded{
			Symbol: b.Symbol, OrderID: askOrder.ID, Price: settlePrice,
			QuantityFilled: qty, ParticipantID: askOrder.ParticipantID,
		},
		MatchTs: mostRecentOf(bidOrder, askOrder),
	}
	b.trades = append(b.trades, trade)
	log.Debug().Str("symbol", string(b.Symbol)).Int32("price", int32(settlePrice)).
		Uint64("qty", uint64(qty)).Msg("orderbook: matched")

	return trade, true
}

func mostRecentOf(a, bOrd *common.Order) common.TimeStamp {
	if a.CreationTs.After(bOrd.CreationTs) {
		return a.CreationTs
	}
	return bOrd.CreationTs
}

func sideBook(b *OrderBook, side common.Side) *btree.BTreeG[*level.Level] {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}
