package services

import (
	"testing"
	"time"

	"github.com/xuebang/xuebang-api/model"
)

func TestWindowStartDaily(t *testing.T) {
	now := time.Date(2025, 6, 18, 15, 42, 7, 0, time.UTC)
	want := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)

	if got := WindowStart(model.WindowDaily, now); !got.Equal(want) {
		t.Errorf("daily window start = %v, want %v", got, want)
	}
}

func TestWindowStartDailyConvertsToUTC(t *testing.T) {
	// 2025-06-18 02:00 +08:00 is 2025-06-17 18:00 UTC; the daily window is
	// anchored on the UTC calendar day, not the caller's local day.
	loc := time.FixedZone("CST", 8*3600)
	now := time.Date(2025, 6, 18, 2, 0, 0, 0, loc)
	want := time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)

	if got := WindowStart(model.WindowDaily, now); !got.Equal(want) {
		t.Errorf("daily window start = %v, want %v", got, want)
	}
}

func TestWindowStartWeekly(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			// Wednesday -> preceding Monday
			name: "midweek",
			now:  time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			// Monday is its own window start
			name: "monday",
			now:  time.Date(2025, 6, 16, 0, 0, 1, 0, time.UTC),
			want: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			// Sunday belongs to the week that started the previous Monday
			name: "sunday",
			now:  time.Date(2025, 6, 22, 23, 59, 59, 0, time.UTC),
			want: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			// Week spanning a month boundary
			name: "month boundary",
			now:  time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := WindowStart(model.WindowWeekly, c.now); !got.Equal(c.want) {
				t.Errorf("weekly window start = %v, want %v", got, c.want)
			}
		})
	}
}

func TestWindowStartMonthly(t *testing.T) {
	now := time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)
	want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	if got := WindowStart(model.WindowMonthly, now); !got.Equal(want) {
		t.Errorf("monthly window start = %v, want %v", got, want)
	}
}

func TestWindowStartUnknownFallsBackToDaily(t *testing.T) {
	now := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)
	want := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)

	if got := WindowStart(model.Window("hourly"), now); !got.Equal(want) {
		t.Errorf("unknown window start = %v, want %v", got, want)
	}
}
