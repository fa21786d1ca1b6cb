package services

import (
	"fmt"
	"math"
	"time"

	"copa-dashboard/models"
)

// NoticeWindowDays is the COPA response window: eligible nonprofits have five
// days from the notice being sent to express interest.
const NoticeWindowDays = 5

// Status classifies how much of the notice window is left.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusExpired  Status = "expired"
	StatusCritical Status = "critical"
	StatusUrgent   Status = "urgent"
	StatusNormal   Status = "normal"
)

// DaysRemaining returns the number of whole days left in the notice window,
// clamped at zero. It returns nil when the notice sent time is unknown.
// The result depends on now and must be recomputed per request, never cached.
func DaysRemaining(sentAt *time.Time, now time.Time) *int {
	if sentAt == nil {
		return nil
	}
	windowEnd := sentAt.Add(NoticeWindowDays * 24 * time.Hour)
	days := int(math.Ceil(windowEnd.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

// StatusFor maps a days-remaining value to its urgency classification.
func StatusFor(remaining *int) Status {
	switch {
	case remaining == nil:
		return StatusUnknown
	case *remaining <= 0:
		return StatusExpired
	case *remaining == 1:
		return StatusCritical
	case *remaining <= 3:
		return StatusUrgent
	default:
		return StatusNormal
	}
}

// StatusLabel renders the countdown badge text shown on listing cards.
func StatusLabel(remaining *int) string {
	switch {
	case remaining == nil:
		return "Not available"
	case *remaining <= 0:
		return "Past COPA"
	case *remaining == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", *remaining)
	}
}

// ViewOf decorates a listing with its per-render derived display values.
func ViewOf(listing models.Listing, now time.Time) models.ListingView {
	remaining := DaysRemaining(listing.TimeSentTz, now)
	return models.ListingView{
		Listing:            listing,
		DaysRemaining:      remaining,
		Status:             string(StatusFor(remaining)),
		StatusLabel:        StatusLabel(remaining),
		AskingPriceDisplay: FormatCurrency(listing.AskingPrice),
		AutoPopulated:      AutoPopulatedFields(listing),
	}
}
