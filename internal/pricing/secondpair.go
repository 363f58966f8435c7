package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/money"
)

var (
	// ErrInvalidPercent is returned for discount percents outside 0..100.
	ErrInvalidPercent = errors.New("pricing: discount percent out of range")
	// ErrUnknownDiscountType is returned for unrecognized discount types.
	ErrUnknownDiscountType = errors.New("pricing: unknown second pair discount type")
)

// DiscountType is the second-pair eligibility outcome.
type DiscountType string

const (
	NotEligible DiscountType = "NOT_ELIGIBLE"
	SameDay50   DiscountType = "SAME_DAY_50"
	ThirtyDay30 DiscountType = "THIRTY_DAY_30"
)

// ParseDiscountType validates a stored or submitted discount type.
func ParseDiscountType(raw string) (DiscountType, error) {
	switch t := DiscountType(raw); t {
	case NotEligible, SameDay50, ThirtyDay30:
		return t, nil
	case "":
		return NotEligible, nil
	default:
		return NotEligible, fmt.Errorf("%w: %q", ErrUnknownDiscountType, raw)
	}
}

// Purchase is a customer's completed quote used as the first pair.
type Purchase struct {
	QuoteID     string
	CompletedAt time.Time
}

// SecondPairEligibility is recomputed every time eligibility is checked.
type SecondPairEligibility struct {
	IsEligible           bool         `json:"isEligible"`
	DiscountType         DiscountType `json:"discountType"`
	DiscountPercent      int          `json:"discountPercent"`
	DaysAfterOriginal    *int         `json:"daysAfterOriginal"`
	OriginalPurchaseDate *time.Time   `json:"originalPurchaseDate"`
	OriginalQuoteID      string       `json:"originalQuoteId,omitempty"`
}

// Rules holds the configurable second-pair percentages and window.
type Rules struct {
	SameDayPercent   int
	ThirtyDayPercent int
	WindowDays       int
}

// DefaultRules is the standard 50% same-day / 30% within 30 days program.
func DefaultRules() Rules {
	return Rules{SameDayPercent: 50, ThirtyDayPercent: 30, WindowDays: 30}
}

// Percent returns the discount percent for a type.
func (r Rules) Percent(t DiscountType) int {
	switch t {
	case SameDay50:
		return r.SameDayPercent
	case ThirtyDay30:
		return r.ThirtyDayPercent
	case NotEligible:
		return 0
	default:
		return 0
	}
}

// EvaluateEligibility applies DefaultRules.
func EvaluateEligibility(last *Purchase, now time.Time, loc *time.Location) SecondPairEligibility {
	return DefaultRules().Evaluate(last, now, loc)
}

// Evaluate compares calendar days in the location's timezone. A purchase
// dated in the future is not eligible.
func (r Rules) Evaluate(last *Purchase, now time.Time, loc *time.Location) SecondPairEligibility {
	out := SecondPairEligibility{DiscountType: NotEligible}
	if last == nil || last.CompletedAt.IsZero() {
		return out
	}
	if loc == nil {
		loc = time.UTC
	}

	days := calendarDays(last.CompletedAt, now, loc)
	purchased := last.CompletedAt
	out.DaysAfterOriginal = &days
	out.OriginalPurchaseDate = &purchased
	out.OriginalQuoteID = last.QuoteID

	switch {
	case days < 0:
		out.DiscountType = NotEligible
	case days == 0:
		out.DiscountType = SameDay50
	case days <= r.WindowDays:
		out.DiscountType = ThirtyDay30
	default:
		out.DiscountType = NotEligible
	}
	out.DiscountPercent = r.Percent(out.DiscountType)
	out.IsEligible = out.DiscountType != NotEligible
	return out
}

// calendarDays counts midnights between from and to in loc.
func calendarDays(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// SecondPairResult is the discounted total for a second pair.
type SecondPairResult struct {
	OriginalTotal   decimal.Decimal `json:"originalTotal"`
	DiscountPercent int             `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalTotal      decimal.Decimal `json:"finalTotal"`
}

// CalculateSecondPairDiscount applies percent to currentTotal. NOT_ELIGIBLE
// always yields a zero discount.
func CalculateSecondPairDiscount(currentTotal decimal.Decimal, t DiscountType, percent int) (SecondPairResult, error) {
	if percent < 0 || percent > 100 {
		return SecondPairResult{}, fmt.Errorf("%w: %d", ErrInvalidPercent, percent)
	}
	original := money.Cents(money.NonNegative(currentTotal))

	switch t {
	case NotEligible:
		return SecondPairResult{
			OriginalTotal:  original,
			DiscountAmount: money.Zero,
			FinalTotal:     original,
		}, nil
	case SameDay50, ThirtyDay30:
		amount := money.Percent(original, percent)
		return SecondPairResult{
			OriginalTotal:   original,
			DiscountPercent: percent,
			DiscountAmount:  amount,
			FinalTotal:      original.Sub(amount),
		}, nil
	default:
		return SecondPairResult{}, fmt.Errorf("%w: %q", ErrUnknownDiscountType, t)
	}
}
