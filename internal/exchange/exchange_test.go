package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xchange/internal/common"
)

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	clock := common.NewFixedClock(time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)) // Wed, NYSE session
	ex, err := New(Config{
		MaxPending:         1, // flush every request, to keep scenario tests deterministic
		MaxPendingDuration: time.Hour,
		Zone:               "America/New_York",
		WallClock:          clock,
		MonoClock:          clock,
	})
	require.NoError(t, err)
	ex.TradeNewSymbol("AAPL")
	return ex
}

func TestPlaceOrder_UnknownSymbolErrors(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.PlaceOrder("alice", "MSFT", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestPlaceOrder_ZeroQuantityErrors(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPlaceOrder_RestsAndReportsNoTrade(t *testing.T) {
	ex := newTestExchange(t)
	id, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Empty(t, ex.Trades("AAPL"))
}

func TestPlaceOrder_CrossingOrdersProduceATrade(t *testing.T) {
	ex := newTestExchange(t)

	_, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Sell, 100, 10, "", "")
	require.NoError(t, err)

	_, err = ex.PlaceOrder("bob", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	require.NoError(t, err)

	trades := ex.Trades("AAPL")
	require.Len(t, trades, 1)
	assert.Equal(t, common.Quantity(10), trades[0].MatchedAsk.QuantityFilled)
	assert.Equal(t, common.ParticipantID("1_alice"), trades[0].MatchedAsk.ParticipantID)
	assert.Equal(t, common.ParticipantID("2_bob"), trades[0].MatchedBid.ParticipantID)
}

func TestPlaceOrder_MalformedActivationStringIsTimeParseError(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.PlaceOrder("alice", "AAPL", common.GoodAfterTime, common.Buy, 100, 10, "not-a-date", "")
	assert.ErrorIs(t, err, ErrTimeParse)
	assert.Empty(t, ex.Trades("AAPL"))
}

func TestPlaceOrder_MalformedDeactivationStringIsTimeParseError(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillDate, common.Buy, 100, 10, "", "not-a-date")
	assert.ErrorIs(t, err, ErrTimeParse)
}

func TestPlaceOrder_ExplicitActivationString(t *testing.T) {
	ex := newTestExchange(t)
	// 05-03-2026 09:00:00 local (America/New_York) is after the fixed clock's
	// 2026-03-04 15:00 UTC "now", so the order stages as not-yet-active.
	id, err := ex.PlaceOrder("alice", "AAPL", common.GoodAfterTime, common.Buy, 100, 10,
		"05-03-2026 09:00:00", "")
	require.NoError(t, err)
	assert.NotZero(t, id)

	pp, ok := ex.GetPreProcessor("AAPL", common.Buy)
	require.True(t, ok)
	assert.Equal(t, 1, pp.Snapshot().TotalPending)
}

func TestCancelOrder_UnknownIDErrors(t *testing.T) {
	ex := newTestExchange(t)
	err := ex.CancelOrder(common.OrderID(999))
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestCancelOrder_RemovesRestingOrder(t *testing.T) {
	ex := newTestExchange(t)
	id, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	require.NoError(t, err)

	require.NoError(t, ex.CancelOrder(id))

	book, ok := ex.GetOrderBook("AAPL")
	require.True(t, ok)
	assert.Nil(t, book.BestBid())

	// A second cancel on the same ID is now unknown to the exchange's
	// registry, since CancelOrder forgets the mapping once routed.
	err = ex.CancelOrder(id)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestModifyOrder_RejectsTypeChange(t *testing.T) {
	ex := newTestExchange(t)
	id, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	require.NoError(t, err)

	_, err = ex.ModifyOrder("alice", id, common.FillOrKill, 100, 10, "", "")
	assert.ErrorIs(t, err, ErrIllegalModify)
}

func TestModifyOrder_ReplacesPriceAndQuantity(t *testing.T) {
	ex := newTestExchange(t)
	id, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	require.NoError(t, err)

	newID, err := ex.ModifyOrder("alice", id, common.GoodTillCancel, 99, 20, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)

	// The original ID should no longer be cancellable.
	assert.ErrorIs(t, ex.CancelOrder(id), ErrUnknownOrder)
	assert.NoError(t, ex.CancelOrder(newID))
}

func TestRetireOldSymbol_MakesSymbolUnknownAgain(t *testing.T) {
	ex := newTestExchange(t)
	ex.RetireOldSymbol("AAPL")

	_, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestAddParticipant_ReturnsSamePriorIDForRepeatGovID(t *testing.T) {
	ex := newTestExchange(t)
	id1 := ex.AddParticipant("alice")
	id2 := ex.AddParticipant("alice")
	assert.Equal(t, id1, id2)
	assert.Equal(t, common.ParticipantID("1_alice"), id1)
}

func TestAddParticipant_MintsOrdinalPrefixPerDistinctGovID(t *testing.T) {
	ex := newTestExchange(t)
	alice := ex.AddParticipant("alice")
	bob := ex.AddParticipant("bob")
	assert.Equal(t, common.ParticipantID("1_alice"), alice)
	assert.Equal(t, common.ParticipantID("2_bob"), bob)
}

func TestRemoveParticipant_MintsFreshOrdinalOnReRegistration(t *testing.T) {
	ex := newTestExchange(t)
	first := ex.AddParticipant("alice")
	ex.RemoveParticipant(first)

	second := ex.AddParticipant("alice")
	assert.NotEqual(t, first, second)
}

func TestGetOrderBook_UnknownSymbol(t *testing.T) {
	ex := newTestExchange(t)
	_, ok := ex.GetOrderBook("MSFT")
	assert.False(t, ok)
}

func TestGetOrderBook_KnownSymbolReflectsResting(t *testing.T) {
	ex := newTestExchange(t)
	_, err := ex.PlaceOrder("alice", "AAPL", common.GoodTillCancel, common.Buy, 100, 10, "", "")
	require.NoError(t, err)

	book, ok := ex.GetOrderBook("AAPL")
	require.True(t, ok)
	bid := book.BestBid()
	require.NotNil(t, bid)
	assert.Equal(t, common.Quantity(10), bid.Aggregate)
}

func TestGetPreProcessor_UnknownSymbol(t *testing.T) {
	ex := newTestExchange(t)
	_, ok := ex.GetPreProcessor("MSFT", common.Buy)
	assert.False(t, ok)
}

func TestGetPreProcessor_DistinctPerSide(t *testing.T) {
	ex := newTestExchange(t)
	bid, ok := ex.GetPreProcessor("AAPL", common.Buy)
	require.True(t, ok)
	ask, ok := ex.GetPreProcessor("AAPL", common.Sell)
	require.True(t, ok)
	assert.NotSame(t, bid, ask)
}
