package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeParse is raised when a time string does not match the
// "dd-mm-YYYY HH:MM:SS" layout and is not one of the recognized sentinels.
var ErrTimeParse = errors.New("common: malformed datetime string")

const timeLayout = "02-01-2006 15:04:05"

// endOfTime is the far-future instant that "" and "EOT" deactivation strings resolve to.
var endOfTime = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseActivation resolves an activation time string: "" or "NOW" means now,
// relative to the configured zone; any other value is parsed as a local
// "dd-mm-YYYY HH:MM:SS" timestamp in that zone.
func ParseActivation(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" || s == "NOW" {
		return now, nil
	}
	return parseInZone(s, loc)
}

// ParseDeactivation resolves a deactivation time string: "" or "EOT" means
// the fixed 2100-01-01 00:00:00 instant; any other value is parsed the same
// way as ParseActivation.
func ParseDeactivation(s string, loc *time.Location) (time.Time, error) {
	if s == "" || s == "EOT" {
		return endOfTime, nil
	}
	return parseInZone(s, loc)
}

func parseInZone(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrTimeParse, s, err)
	}
	return t, nil
}
