package timewindow

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsWithinWindow(t *testing.T) {
	start := date(2025, 1, 1)
	end := date(2025, 1, 10)

	tests := []struct {
		name      string
		candidate time.Time
		want      bool
	}{
		{"inside", date(2025, 1, 5), true},
		{"on start", date(2025, 1, 1), true},
		{"on end", date(2025, 1, 10), true},
		{"before start", date(2024, 12, 31), false},
		{"after end", date(2025, 1, 15), false},
		{"end day with time component", time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC), true},
		{"start day in other zone", time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithinWindow(tt.candidate, start, end); got != tt.want {
				t.Fatalf("IsWithinWindow(%v) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	due := date(2025, 3, 10)

	tests := []struct {
		name string
		ref  time.Time
		want int
	}{
		{"future due", date(2025, 3, 1), 9},
		{"same day", date(2025, 3, 10), 0},
		{"past due", date(2025, 3, 15), -5},
		{"ignores time of day", time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysRemaining(due, tt.ref); got != tt.want {
				t.Fatalf("DaysRemaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-01-05")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(date(2025, 1, 5)) {
		t.Fatalf("ParseDate = %v", got)
	}

	for _, bad := range []string{"", "2025-13-01", "05/01/2025", "not-a-date"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) expected ErrInvalidDate, got %v", bad, err)
		}
	}
}
