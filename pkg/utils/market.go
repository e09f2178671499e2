package utils

import (
	"strings"
	"time"
)

// SaoPauloLocation is the timezone of the B3 exchange.
var SaoPauloLocation *time.Location

func init() {
	var err error
	SaoPauloLocation, err = time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// Fallback to UTC-3
		SaoPauloLocation = time.FixedZone("BRT", -3*60*60)
	}
}

// Regular session hours, local time.
const (
	sessionOpenMinutes  = 10 * 60
	sessionCloseMinutes = 17 * 60
)

// IsTradingDay reports whether t falls on a weekday in São Paulo. Exchange
// holidays are not tracked.
func IsTradingDay(t time.Time) bool {
	wd := t.In(SaoPauloLocation).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen reports whether the regular session is running at t.
func IsMarketOpen(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	local := t.In(SaoPauloLocation)
	m := local.Hour()*60 + local.Minute()
	return m >= sessionOpenMinutes && m < sessionCloseMinutes
}

// LastSessionClose returns the close of the most recent completed session
// at or before t.
func LastSessionClose(t time.Time) time.Time {
	local := t.In(SaoPauloLocation)
	end := time.Date(local.Year(), local.Month(), local.Day(), sessionCloseMinutes/60, 0, 0, 0, SaoPauloLocation)
	if local.Before(end) {
		end = end.AddDate(0, 0, -1)
	}
	for !IsTradingDay(end) {
		end = end.AddDate(0, 0, -1)
	}
	return end
}

// IsFIITicker reports whether a ticker has the real-estate fund suffix.
func IsFIITicker(ticker string) bool {
	return strings.HasSuffix(strings.ToUpper(strings.TrimSpace(ticker)), "11")
}

// SplitTickers splits a comma or whitespace separated ticker list,
// upper-casing and de-duplicating while keeping order.
func SplitTickers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToUpper(strings.TrimSpace(f))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
