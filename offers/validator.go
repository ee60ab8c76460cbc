package offers

import (
	"fmt"
	"time"
)

// RuleFailure describes one validation rule the offer failed, with a
// suggestion the UI can surface.
type RuleFailure struct {
	Rule       string `json:"rule"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationInput carries the per-request facts the rules need.
type ValidationInput struct {
	Now                time.Time
	ProvidedCode       string
	CustomerUsageCount int
}

// Validate checks every eligibility rule of the offer against the snapshot
// and returns all failures, not just the first. An empty result means the
// offer is applicable.
func Validate(offer Offer, snap OrderSnapshot, in ValidationInput) []RuleFailure {
	var failures []RuleFailure
	fail := func(rule, message, suggestion string) {
		failures = append(failures, RuleFailure{Rule: rule, Message: message, Suggestion: suggestion})
	}

	if !offer.Active {
		fail("active", "offer is not active", "ask staff whether the promotion is still running")
	}

	if !offer.ValidFrom.IsZero() && in.Now.Before(offer.ValidFrom) {
		fail("valid_from", fmt.Sprintf("offer starts on %s", offer.ValidFrom.Format("2006-01-02")),
			"come back once the promotion has started")
	}
	if !offer.ValidUntil.IsZero() && in.Now.After(offer.ValidUntil) {
		fail("valid_until", "offer has expired", "check current promotions for an alternative")
	}

	if len(offer.DaysOfWeek) > 0 && !containsInt(offer.DaysOfWeek, int(in.Now.Weekday())) {
		fail("day_of_week", "offer does not run today", "check which days the promotion runs")
	}

	if offer.StartTime != "" && offer.EndTime != "" && !withinDailyWindow(in.Now, offer.StartTime, offer.EndTime) {
		fail("time_window", fmt.Sprintf("offer runs between %s and %s", offer.StartTime, offer.EndTime),
			"come back during the offer hours")
	}

	if offer.Conditions.MinOrderAmount > 0 && snap.Amount() < offer.Conditions.MinOrderAmount {
		fail("min_order_amount",
			fmt.Sprintf("order must be at least %.2f", offer.Conditions.MinOrderAmount),
			fmt.Sprintf("add %.2f more to qualify", offer.Conditions.MinOrderAmount-snap.Amount()))
	}

	if offer.UsageLimit > 0 && offer.UsageCount >= offer.UsageLimit {
		fail("usage_limit", "offer usage limit reached", "check current promotions for an alternative")
	}
	if offer.PerCustomerLimit > 0 && in.CustomerUsageCount >= offer.PerCustomerLimit {
		fail("per_customer_limit", "you have already used this offer the maximum number of times", "")
	}

	if len(offer.LocationIDs) > 0 && !containsUUID(offer.LocationIDs, snap.LocationID) {
		fail("location", "offer is not available at this location", "check participating locations")
	}

	if (len(offer.TargetItemIDs) > 0 || len(offer.TargetCategoryIDs) > 0) && offer.eligibleAmount(snap) == 0 {
		fail("target_items", "no items in the order qualify for this offer",
			"add a qualifying item to use this offer")
	}

	if offer.Code != "" && in.ProvidedCode != offer.Code {
		fail("code", "promotion code does not match", "re-check the code for typos")
	}

	return failures
}

func withinDailyWindow(now time.Time, start, end string) bool {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return false
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	sm := s.Hour()*60 + s.Minute()
	em := e.Hour()*60 + e.Minute()
	if sm <= em {
		return cur >= sm && cur <= em
	}
	// window crosses midnight
	return cur >= sm || cur <= em
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
