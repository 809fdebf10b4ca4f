// Command demo wires a single-venue Exchange in-process and walks it
// through a simple cross, exercising the same path a transport adapter
// would drive PlaceOrder/CancelOrder/ModifyOrder through.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xchange/internal/common"
	"xchange/internal/exchange"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// A fixed Tuesday mid-session instant keeps this demo deterministic
	// regardless of when it's actually run.
	clock := common.NewFixedClock(time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC))

	// Thresholds of (1, 0) flush every submission immediately, so this demo's
	// output is deterministic; a production venue would use something closer
	// to spec's reference (pending=30, duration=1s).
	ex, err := exchange.New(exchange.Config{
		MaxPending:         1,
		MaxPendingDuration: 0,
		Zone:               "Asia/Kolkata",
		WallClock:          clock,
		MonoClock:          clock,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("demo: failed to start exchange")
	}

	ex.TradeNewSymbol("SPY")

	if _, err := ex.PlaceOrder("p1", "SPY", common.GoodTillCancel, common.Buy, 10000, 20, "", ""); err != nil {
		log.Fatal().Err(err).Msg("demo: P1 add rejected")
	}
	if _, err := ex.PlaceOrder("p2", "SPY", common.GoodTillCancel, common.Sell, 9500, 15, "", ""); err != nil {
		log.Fatal().Err(err).Msg("demo: P2 add rejected")
	}

	for _, trade := range ex.Trades("SPY") {
		log.Info().Str("trade", trade.String()).Msg("demo: matched")
	}
}
