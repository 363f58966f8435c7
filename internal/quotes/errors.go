package quotes

import "errors"

var (
	// ErrQuoteNotFound is returned when a quote does not exist in the org.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrVersionConflict is returned when a save carries a stale version.
	ErrVersionConflict = errors.New("quote was modified by another save")

	// ErrNotEditable is returned when editing a quote past the presented stage.
	ErrNotEditable = errors.New("quote is not editable in its current status")

	// ErrInvalidTransition is returned for status changes the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid quote status transition")

	// ErrNotEligible is returned when the customer has no qualifying first pair.
	ErrNotEligible = errors.New("customer is not eligible for a second pair discount")

	// ErrSecondPairAlreadyApplied is returned when the discount is applied twice.
	ErrSecondPairAlreadyApplied = errors.New("second pair discount already applied")

	// ErrSecondPairWithInsurance is returned when a quote with insurance gets
	// a second pair discount. The discount is cash only.
	ErrSecondPairWithInsurance = errors.New("second pair discount cannot be combined with insurance")

	// ErrCustomerMismatch is returned when the request names a different
	// customer or location than the quote.
	ErrCustomerMismatch = errors.New("quote belongs to a different customer or location")

	// ErrMissingLocation is returned when no location is given.
	ErrMissingLocation = errors.New("locationId is required")

	// ErrInvalidQuoteID is returned when no quote is named.
	ErrInvalidQuoteID = errors.New("quoteId is required")

	// ErrMissingCustomer is returned when no customer is given.
	ErrMissingCustomer = errors.New("customerId is required")
)
