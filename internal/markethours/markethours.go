// Package markethours knows when the NSE cash session is open. The candle
// simulator uses it to lay synthetic history over real trading sessions so
// that charts show overnight and weekend gaps.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session bounds in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// lookback bounds the day scans in NextOpen and PrevClose.
const lookback = 10

// IsMarketOpen reports whether t falls inside a trading session.
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsTradingDay reports whether t is a weekday that is not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	wd := ist.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !IsHoliday(ist)
}

// Open returns the session open on t's IST calendar day.
func Open(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
}

// Close returns the session close on t's IST calendar day.
func Close(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// NextOpen returns the first session open strictly after t, or today's open
// when t is earlier on a trading day.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)
	if open := Open(ist); ist.Before(open) && IsTradingDay(ist) {
		return open
	}
	d := ist
	for i := 0; i < lookback; i++ {
		d = d.AddDate(0, 0, 1)
		if IsTradingDay(d) {
			return Open(d)
		}
	}
	return Open(ist.AddDate(0, 0, 1))
}

// PrevClose returns the last session close at or before t.
func PrevClose(t time.Time) time.Time {
	ist := t.In(IST)
	if cl := Close(ist); !ist.Before(cl) && IsTradingDay(ist) {
		return cl
	}
	d := ist
	for i := 0; i < lookback; i++ {
		d = d.AddDate(0, 0, -1)
		if IsTradingDay(d) {
			return Close(d)
		}
	}
	return Close(ist.AddDate(0, 0, -1))
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("open, closes in %s", fmtDur(Close(t).Sub(t)))
	}
	state := "closed"
	if name := HolidayName(t); name != "" {
		state = "closed (" + name + ")"
	}
	next := NextOpen(t)
	ist := next.In(IST)
	return fmt.Sprintf("%s, opens %s %s (%s)",
		state, ist.Weekday().String()[:3], ist.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
