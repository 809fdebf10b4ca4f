// Package exchange implements the single-venue, multi-symbol coordinator:
// the participant registry and the per-symbol {OrderBook, bid PreProcessor,
// ask PreProcessor} triples requests are routed through (spec.md §5).
package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"xchange/internal/calendar"
	"xchange/internal/common"
	"xchange/internal/orderbook"
	"xchange/internal/participant"
	"xchange/internal/preprocessor"
)

// Sentinel errors returned by PlaceOrder/CancelOrder/ModifyOrder.
var (
	ErrUnknownSymbol  = errors.New("exchange: unknown symbol")
	ErrUnknownOrder   = errors.New("exchange: unknown order")
	ErrIllegalModify  = errors.New("exchange: modify must preserve symbol, side and type")
	ErrInvalidRequest = errors.New("exchange: invalid request")
)

// ErrTimeParse is re-exported so callers can match it without importing
// common directly; it is the same sentinel common.ParseActivation and
// common.ParseDeactivation return on a malformed datetime string.
var ErrTimeParse = common.ErrTimeParse

// symbolBook is the per-symbol triple: the shared OrderBook and its two
// PreProcessors (spec.md §5.1).
type symbolBook struct {
	book *orderbook.OrderBook
	bid  *preprocessor.PreProcessor
	ask  *preprocessor.PreProcessor
}

// Config carries the construction-time parameters every PreProcessor in
// the exchange shares: the staging thresholds and the session zone.
type Config struct {
	MaxPending         int
	MaxPendingDuration time.Duration
	Zone               string
	WallClock          common.Clock // defaults to SystemClock if nil
	MonoClock          common.Clock // defaults to SystemClock if nil
}

// Exchange is the single-venue coordinator: a participant registry plus one
// symbolBook per traded instrument. All operations are synchronous and
// single-threaded (spec.md §1's concurrency model); callers serialize
// access externally if needed.
type Exchange struct {
	cfg      Config
	calendar calendar.Calendar

	symbols      map[common.Symbol]*symbolBook
	participants map[string]*participant.Participant // govID -> Participant
	nextOrdinal  int

	// orderOwner maps a live OrderID back to its symbol/side/participant so
	// Cancel/Modify can route without the caller repeating that context.
	orderOwner map[common.OrderID]ownerInfo
}

type ownerInfo struct {
	symbol common.Symbol
	side   common.Side
	typ    common.OrderType
	partID common.ParticipantID
}

// New constructs an Exchange. cfg.Zone selects the session calendar shared
// by every symbol traded on this venue.
func New(cfg Config) (*Exchange, error) {
	cal, err := calendar.New(cfg.Zone)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	if cfg.WallClock == nil {
		cfg.WallClock = common.SystemClock{}
	}
	if cfg.MonoClock == nil {
		cfg.MonoClock = common.SystemClock{}
	}
	return &Exchange{
		cfg:          cfg,
		calendar:     cal,
		symbols:      make(map[common.Symbol]*symbolBook),
		participants: make(map[string]*participant.Participant),
		orderOwner:   make(map[common.OrderID]ownerInfo),
	}, nil
}

// TradeNewSymbol admits symbol to the venue with a fresh, empty book and a
// PreProcessor pair. Re-listing an already-traded symbol is a no-op.
func (e *Exchange) TradeNewSymbol(symbol common.Symbol) {
	if _, ok := e.symbols[symbol]; ok {
		return
	}
	book := orderbook.New(symbol)
	sb := &symbolBook{
		book: book,
		bid: preprocessor.New(symbol, true, book, e.calendar,
			e.cfg.WallClock, e.cfg.MonoClock, e.cfg.MaxPending, e.cfg.MaxPendingDuration),
		ask: preprocessor.New(symbol, false, book, e.calendar,
			e.cfg.WallClock, e.cfg.MonoClock, e.cfg.MaxPending, e.cfg.MaxPendingDuration),
	}
	e.symbols[symbol] = sb
	log.Debug().Str("symbol", string(symbol)).Msg("exchange: symbol admitted")
}

// RetireOldSymbol delists symbol. Resting orders are abandoned; this is an
// administrative action, not a cancel broadcast (spec.md §5.2).
func (e *Exchange) RetireOldSymbol(symbol common.Symbol) {
	delete(e.symbols, symbol)
	log.Debug().Str("symbol", string(symbol)).Msg("exchange: symbol retired")
}

// AddParticipant returns the existing ParticipantID for govID, or mints one
// with the next ordinal-prefixed form ("<N>_<govID>") at first registration
// (spec.md §6).
func (e *Exchange) AddParticipant(govID string) common.ParticipantID {
	return e.registerParticipant(govID).ID
}

// RemoveParticipant drops pid from the registry. Orders it already staged
// or booked are unaffected — this only retires the identity, it does not
// cancel anything (spec.md §6: `removeParticipant(pid) → void`).
func (e *Exchange) RemoveParticipant(pid common.ParticipantID) {
	delete(e.participants, govIDOf(pid))
}

// GetOrderBook returns the OrderBook for symbol, or (nil, false) if symbol
// isn't traded on this venue (spec.md §6: `getOrderBook(symbol) → OrderBookRef?`).
func (e *Exchange) GetOrderBook(symbol common.Symbol) (*orderbook.OrderBook, bool) {
	sb, ok := e.symbols[symbol]
	if !ok {
		return nil, false
	}
	return sb.book, true
}

// GetPreProcessor returns the PreProcessor staging side of symbol, or
// (nil, false) if symbol isn't traded on this venue (spec.md §6:
// `getPreProcessor(symbol, side) → PreProcessorRef?`).
func (e *Exchange) GetPreProcessor(symbol common.Symbol, side common.Side) (*preprocessor.PreProcessor, bool) {
	sb, ok := e.symbols[symbol]
	if !ok {
		return nil, false
	}
	return sb.preProcessorFor(side), true
}

// registerParticipant returns the existing Participant for govID or mints
// one with the next ordinal-prefixed ParticipantID ("<N>_<govID>").
func (e *Exchange) registerParticipant(govID string) *participant.Participant {
	if p, ok := e.participants[govID]; ok {
		return p
	}
	e.nextOrdinal++
	id := common.ParticipantID(fmt.Sprintf("%d_%s", e.nextOrdinal, govID))
	p := participant.New(id, govID)
	e.participants[govID] = p
	return p
}

func (e *Exchange) getSymbolBook(symbol common.Symbol) (*symbolBook, error) {
	sb, ok := e.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return sb, nil
}

func (sb *symbolBook) preProcessorFor(side common.Side) *preprocessor.PreProcessor {
	if side == common.Buy {
		return sb.bid
	}
	return sb.ask
}

// PlaceOrder validates and stages a new order, returning its minted
// OrderID. activateStr/deactivateStr are parsed in the exchange's
// configured zone via common.ParseActivation/ParseDeactivation, accepting
// the ""/"NOW" and ""/"EOT" sentinels (spec.md §6); a malformed string
// aborts the call with ErrTimeParse and no state change, per spec.md §7's
// "TimeParseError raised from Order construction" rule.
func (e *Exchange) PlaceOrder(govID string, symbol common.Symbol, typ common.OrderType,
	side common.Side, price common.Price, qty common.Quantity,
	activateStr, deactivateStr string) (common.OrderID, error) {

	if qty == 0 {
		return 0, fmt.Errorf("%w: zero quantity", ErrInvalidRequest)
	}
	sb, err := e.getSymbolBook(symbol)
	if err != nil {
		return 0, err
	}

	now := e.cfg.WallClock.Now()
	loc := e.calendar.Location()
	activation, err := common.ParseActivation(activateStr, loc, now)
	if err != nil {
		return 0, err
	}
	deactivation, err := common.ParseDeactivation(deactivateStr, loc)
	if err != nil {
		return 0, err
	}

	p := e.registerParticipant(govID)
	order := common.NewOrder(symbol, typ, side, price, qty, p.ID, now, activation, deactivation)
	p.RecordNonCancelOrder(order.ID)
	e.orderOwner[order.ID] = ownerInfo{symbol: symbol, side: side, typ: typ, partID: p.ID}

	sb.preProcessorFor(side).SubmitAdd(order)
	return order.ID, nil
}

// CancelOrder stages a cancellation for a previously placed order. Unknown
// OrderIDs return ErrUnknownOrder; the PreProcessor/Level layers below
// treat an unknown or already-settled ID as a silent no-op once routed.
func (e *Exchange) CancelOrder(orderID common.OrderID) error {
	owner, ok := e.orderOwner[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOrder, orderID)
	}
	sb, err := e.getSymbolBook(owner.symbol)
	if err != nil {
		return err
	}
	sb.preProcessorFor(owner.side).SubmitCancel(orderID, owner.typ)
	if p, ok := e.participants[govIDOf(owner.partID)]; ok {
		p.RecordCancelOrder(orderID)
	}
	delete(e.orderOwner, orderID)
	return nil
}

// ModifyOrder cancels oldID and stages a replacement order. The
// replacement must keep the same symbol, side and type as the original —
// changing any of those is a cancel+new-order from the caller's side, not
// a modify (spec.md §4.3's modify-invariant). activateStr/deactivateStr
// are parsed the same way as in PlaceOrder.
func (e *Exchange) ModifyOrder(govID string, oldID common.OrderID, newTyp common.OrderType,
	newPrice common.Price, newQty common.Quantity,
	activateStr, deactivateStr string) (common.OrderID, error) {

	owner, ok := e.orderOwner[oldID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownOrder, oldID)
	}
	if owner.typ != newTyp {
		return 0, ErrIllegalModify
	}
	sb, err := e.getSymbolBook(owner.symbol)
	if err != nil {
		return 0, err
	}

	now := e.cfg.WallClock.Now()
	loc := e.calendar.Location()
	activation, err := common.ParseActivation(activateStr, loc, now)
	if err != nil {
		return 0, err
	}
	deactivation, err := common.ParseDeactivation(deactivateStr, loc)
	if err != nil {
		return 0, err
	}

	p := e.registerParticipant(govID)
	newOrder := common.NewOrder(owner.symbol, newTyp, owner.side, newPrice, newQty, p.ID, now, activation, deactivation)
	if prev, ok := e.participants[govIDOf(owner.partID)]; ok {
		prev.RecordCancelOrder(oldID)
	}
	p.RecordNonCancelOrder(newOrder.ID)
	delete(e.orderOwner, oldID)
	e.orderOwner[newOrder.ID] = ownerInfo{symbol: owner.symbol, side: owner.side, typ: newTyp, partID: p.ID}

	sb.preProcessorFor(owner.side).SubmitModify(oldID, newOrder)
	return newOrder.ID, nil
}

// Trades returns symbol's append-only trade stream, or nil if symbol isn't
// traded on this venue.
func (e *Exchange) Trades(symbol common.Symbol) []common.Trade {
	sb, ok := e.symbols[symbol]
	if !ok {
		return nil
	}
	return sb.book.Trades()
}

// govIDOf strips the "<N>_" ordinal prefix minted in registerParticipant.
func govIDOf(id common.ParticipantID) string {
	s := string(id)
	for i, c := range s {
		if c == '_' {
			return s[i+1:]
		}
	}
	return s
}
