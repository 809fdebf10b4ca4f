// Package participant implements the external bookkeeping collaborator the
// Exchange consults when minting or retiring order identities (spec.md §1's
// "Participant" abstraction): a trading account's record of its own live
// orders, keyed by the externally-visible OrderID.
package participant

import "xchange/internal/common"

// Participant tracks the live order set owned by one trading account. The
// Exchange is the only caller that mutates it; the matching core itself
// never reaches into a Participant.
type Participant struct {
	ID      common.ParticipantID
	GovID   string
	liveIDs map[common.OrderID]struct{}
}

// New constructs an empty Participant for id/govID.
func New(id common.ParticipantID, govID string) *Participant {
	return &Participant{ID: id, GovID: govID, liveIDs: make(map[common.OrderID]struct{})}
}

// RecordNonCancelOrder registers a newly-minted order as belonging to this
// participant. Returns the order's ID for convenience at call sites that
// chain minting and registration.
func (p *Participant) RecordNonCancelOrder(orderID common.OrderID) common.OrderID {
	p.liveIDs[orderID] = struct{}{}
	return orderID
}

// RecordCancelOrder removes orderID from this participant's live set.
// Unknown IDs are a silent no-op, mirroring the OrderBook's cancel
// semantics (spec.md §7).
func (p *Participant) RecordCancelOrder(orderID common.OrderID) {
	delete(p.liveIDs, orderID)
}

// Owns reports whether orderID was recorded through RecordNonCancelOrder and
// not since removed through RecordCancelOrder. Fills are not reported to the
// Participant, so a fully filled order still counts as owned.
func (p *Participant) Owns(orderID common.OrderID) bool {
	_, ok := p.liveIDs[orderID]
	return ok
}

// LiveCount returns the number of orders recorded and not cancelled for
// this participant; fully filled orders are not removed from that count.
func (p *Participant) LiveCount() int { return len(p.liveIDs) }
