package services

import (
	"strings"
	"time"

	"copa-dashboard/models"
)

// DefaultMinDaysLeft is the active-only threshold applied when the filter
// does not carry an explicit one.
const DefaultMinDaysLeft = 1

// FilterListings evaluates the filter spec against each listing and returns
// the retained subset. It is pure: the input slice is never mutated and the
// fetch order (notice sent time descending) is preserved. All active clauses
// are AND-combined.
//
// The flagged clause is a strict partition rather than an opt-in filter:
// spec.Flagged false hides flagged listings, true shows only them. This
// mirrors the dashboard's review-queue toggle.
func FilterListings(listings []models.Listing, spec models.FilterSpec, now time.Time) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	query := strings.ToLower(strings.TrimSpace(spec.Query))

	for _, l := range listings {
		if !matchesQuery(l, query) {
			continue
		}
		if !matchesNeighborhood(l, spec.Neighborhoods) {
			continue
		}
		if !matchesUnitBucket(l, spec.UnitBucket) {
			continue
		}
		if !matchesActive(l, spec, now) {
			continue
		}
		if l.Flagged != spec.Flagged {
			continue
		}
		out = append(out, l)
	}
	return out
}

// matchesQuery does a case-insensitive substring match against the listing
// addresses and the latest associated email's subject and sender.
func matchesQuery(l models.Listing, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(l.FullAddress), query) {
		return true
	}
	if strings.Contains(strings.ToLower(l.StreetAddress), query) {
		return true
	}
	if l.LatestEmailSubject != nil && strings.Contains(strings.ToLower(*l.LatestEmailSubject), query) {
		return true
	}
	if l.LatestEmailSender != nil && strings.Contains(strings.ToLower(*l.LatestEmailSender), query) {
		return true
	}
	return false
}

// matchesNeighborhood requires set membership when a selection exists.
// Listings without an assigned neighborhood fail any active selection.
func matchesNeighborhood(l models.Listing, selected map[string]bool) bool {
	if len(selected) == 0 {
		return true
	}
	if l.Neighborhood == nil {
		return false
	}
	return selected[*l.Neighborhood]
}

// matchesUnitBucket checks the total unit count against the selected range.
// Unknown totals fail any active bucket.
func matchesUnitBucket(l models.Listing, bucket models.UnitBucket) bool {
	if bucket == models.UnitBucketNone {
		return true
	}
	if l.TotalUnits == nil {
		return false
	}
	units := *l.TotalUnits
	switch bucket {
	case models.UnitBucket1To10:
		return units >= 1 && units <= 10
	case models.UnitBucket11To25:
		return units >= 11 && units <= 25
	case models.UnitBucket26To49:
		return units >= 26 && units <= 49
	case models.UnitBucket50Plus:
		return units >= 50
	default:
		return true
	}
}

// matchesActive applies the active-only clause: the listing must have at
// least MinDaysLeft days remaining in its notice window. An unknown notice
// date is treated as not active.
func matchesActive(l models.Listing, spec models.FilterSpec, now time.Time) bool {
	if !spec.ShowActive {
		return true
	}
	remaining := DaysRemaining(l.TimeSentTz, now)
	if remaining == nil {
		return false
	}
	minDays := spec.MinDaysLeft
	if minDays <= 0 {
		minDays = DefaultMinDaysLeft
	}
	return *remaining >= minDays
}
