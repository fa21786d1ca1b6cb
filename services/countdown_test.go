package services

import (
	"testing"
	"time"

	"copa-dashboard/models"
)

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sentAt   *time.Time
		expected *int
	}{
		{
			name:     "No notice date",
			sentAt:   nil,
			expected: nil,
		},
		{
			name:     "Sent just now",
			sentAt:   timePtr(now),
			expected: intPtr(5),
		},
		{
			name:     "Partial day counts as a full day",
			sentAt:   timePtr(now.Add(-36 * time.Hour)),
			expected: intPtr(4),
		},
		{
			name:     "Window ends exactly now",
			sentAt:   timePtr(now.Add(-5 * 24 * time.Hour)),
			expected: intPtr(0),
		},
		{
			name:     "Expired long ago clamps to zero",
			sentAt:   timePtr(now.Add(-30 * 24 * time.Hour)),
			expected: intPtr(0),
		},
		{
			name:     "One hour before expiry",
			sentAt:   timePtr(now.Add(-5*24*time.Hour + time.Hour)),
			expected: intPtr(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DaysRemaining(tt.sentAt, now)
			if (got == nil) != (tt.expected == nil) {
				t.Fatalf("DaysRemaining = %v, want %v", got, tt.expected)
			}
			if got != nil && *got != *tt.expected {
				t.Errorf("DaysRemaining = %d, want %d", *got, *tt.expected)
			}
		})
	}
}

func TestDaysRemainingMonotonic(t *testing.T) {
	// As now advances, the countdown never increases.
	sentAt := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	prev := 1 << 30
	for hour := 0; hour <= 7*24; hour++ {
		now := sentAt.Add(time.Duration(hour) * time.Hour)
		got := DaysRemaining(&sentAt, now)
		if got == nil {
			t.Fatalf("DaysRemaining returned nil for a known sent time")
		}
		if *got > prev {
			t.Fatalf("countdown increased from %d to %d at hour %d", prev, *got, hour)
		}
		if *got < 0 {
			t.Fatalf("countdown went negative (%d) at hour %d", *got, hour)
		}
		prev = *got
	}
	if prev != 0 {
		t.Errorf("expected countdown to end at 0, got %d", prev)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		remaining *int
		expected  Status
	}{
		{"Unknown", nil, StatusUnknown},
		{"Expired", intPtr(0), StatusExpired},
		{"Critical", intPtr(1), StatusCritical},
		{"Urgent low", intPtr(2), StatusUrgent},
		{"Urgent high", intPtr(3), StatusUrgent},
		{"Normal", intPtr(4), StatusNormal},
		{"Fresh", intPtr(5), StatusNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.remaining); got != tt.expected {
				t.Errorf("StatusFor(%v) = %s, want %s", tt.remaining, got, tt.expected)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		name      string
		remaining *int
		expected  string
	}{
		{"Unknown", nil, "Not available"},
		{"Expired", intPtr(0), "Past COPA"},
		{"Singular", intPtr(1), "1 day left"},
		{"Plural", intPtr(3), "3 days left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLabel(tt.remaining); got != tt.expected {
				t.Errorf("StatusLabel(%v) = %q, want %q", tt.remaining, got, tt.expected)
			}
		})
	}
}

func TestViewOf(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	sentAt := now.Add(-4 * 24 * time.Hour)

	price := 2500000.0
	view := ViewOf(models.Listing{
		ID:          "lst-1",
		TimeSentTz:  &sentAt,
		AskingPrice: &price,
		TotalUnits:  intPtr(12),
	}, now)

	if view.DaysRemaining == nil || *view.DaysRemaining != 1 {
		t.Fatalf("expected 1 day remaining, got %v", view.DaysRemaining)
	}
	if view.Status != string(StatusCritical) {
		t.Errorf("expected critical status, got %s", view.Status)
	}
	if view.StatusLabel != "1 day left" {
		t.Errorf("expected '1 day left', got %q", view.StatusLabel)
	}
	if view.AskingPriceDisplay != "$2,500,000" {
		t.Errorf("expected formatted asking price, got %q", view.AskingPriceDisplay)
	}
	if !view.AutoPopulated["asking_price"] || !view.AutoPopulated["total_units"] {
		t.Errorf("expected extracted fields to be marked auto-populated: %v", view.AutoPopulated)
	}
	if view.AutoPopulated["neighborhood"] {
		t.Errorf("expected missing neighborhood to not be auto-populated")
	}
}
