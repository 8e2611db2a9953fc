package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", ist(2026, 3, 16, 9, 14), false},
		{"at open", ist(2026, 3, 16, 9, 15), true},
		{"midday", ist(2026, 3, 16, 12, 0), true},
		{"at close", ist(2026, 3, 16, 15, 30), false},
		{"saturday", ist(2026, 3, 21, 11, 0), false},
		{"holiday", ist(2026, 1, 26, 11, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsMarketOpen(tc.at))
		})
	}
}

func TestNextOpen_SkipsWeekendAndHoliday(t *testing.T) {
	// Friday evening before a Monday holiday (2026-01-26).
	got := NextOpen(ist(2026, 1, 23, 16, 0))
	assert.True(t, got.Equal(ist(2026, 1, 27, 9, 15)), "got %s", got)

	got = NextOpen(ist(2026, 3, 16, 8, 0))
	assert.True(t, got.Equal(ist(2026, 3, 16, 9, 15)), "got %s", got)
}

func TestPrevClose(t *testing.T) {
	got := PrevClose(ist(2026, 3, 16, 10, 0)) // Monday morning
	assert.True(t, got.Equal(ist(2026, 3, 13, 15, 30)), "got %s", got)

	got = PrevClose(ist(2026, 3, 16, 18, 0))
	assert.True(t, got.Equal(ist(2026, 3, 16, 15, 30)), "got %s", got)
}

func TestHolidayName(t *testing.T) {
	assert.Equal(t, "Christmas", HolidayName(ist(2026, 12, 25, 10, 0)))
	assert.Empty(t, HolidayName(ist(2026, 12, 24, 10, 0)))
}

func TestStatusString(t *testing.T) {
	assert.Contains(t, StatusString(ist(2026, 3, 16, 15, 0)), "open, closes in 30m")
	assert.Contains(t, StatusString(ist(2026, 3, 21, 12, 0)), "closed, opens Mon 09:15")
	assert.Contains(t, StatusString(ist(2026, 12, 25, 12, 0)), "closed (Christmas), opens Mon 09:15")
}
