package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownZoneReturnsError(t *testing.T) {
	_, err := New("Not/A_Real_Zone")
	assert.Error(t, err)
}

func TestNew_UnlistedButValidZoneDefaultsToAlwaysOpen(t *testing.T) {
	cal, err := New("UTC")
	require.NoError(t, err)

	// UTC has no session-table row; a Tuesday at any hour should trade.
	tue := time.Date(2026, 3, 3, 23, 0, 0, 0, time.UTC)
	assert.True(t, cal.CanTrade(tue))
}

func TestCanTrade_WithinSession(t *testing.T) {
	cal, err := New("America/New_York")
	require.NoError(t, err)

	// 15:00 UTC on a Wednesday = 10:00 EST, inside the 14:30-21:00 UTC
	// session window (09:30-16:00 local).
	inSession := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	assert.True(t, cal.CanTrade(inSession))
}

func TestCanTrade_OutsideSession(t *testing.T) {
	cal, err := New("America/New_York")
	require.NoError(t, err)

	beforeOpen := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // 05:00 EST
	assert.False(t, cal.CanTrade(beforeOpen))
}

func TestCanTrade_Weekend(t *testing.T) {
	cal, err := New("America/New_York")
	require.NoError(t, err)

	saturday := time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)
	assert.False(t, cal.CanTrade(saturday))
}

func TestCanTrade_Holiday(t *testing.T) {
	cal, err := New("Asia/Kolkata")
	require.NoError(t, err)

	// Holi 2025 (a Friday), 05:00 UTC = 10:30 IST, inside session hours.
	holiday := time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC)
	assert.False(t, cal.CanTrade(holiday))
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	cal, err := New("America/New_York")
	require.NoError(t, err)

	// Friday evening UTC, after close: next open should land on Monday.
	friEvening := time.Date(2026, 3, 6, 23, 0, 0, 0, time.UTC)
	next := cal.NextOpen(friEvening)
	assert.Equal(t, time.Monday, next.In(cal.Location()).Weekday())
}

func TestNextClose_AfterCurrentMoment(t *testing.T) {
	cal, err := New("America/New_York")
	require.NoError(t, err)

	inSession := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	next := cal.NextClose(inSession)
	assert.True(t, next.After(inSession))
}
