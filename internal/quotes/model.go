package quotes

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/money"
	"github.com/visionpos/vision-pos/internal/pricing"
)

// Status is a quote lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPresented Status = "presented"
	StatusSigned    Status = "signed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusPresented, StatusCancelled, StatusExpired},
	StatusPresented: {StatusSigned, StatusCancelled, StatusExpired},
	StatusSigned:    {StatusCompleted, StatusCancelled},
}

// ParseStatus validates a status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusDraft, StatusPresented, StatusSigned, StatusCompleted, StatusCancelled, StatusExpired:
		return s, nil
	default:
		return "", fmt.Errorf("unknown quote status %q", raw)
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether selections may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusPresented
}

// Terminal reports whether no further transitions exist.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Quote is the persisted quote aggregate.
type Quote struct {
	ID             string                    `json:"id"`
	OrgID          string                    `json:"orgId"`
	LocationID     string                    `json:"locationId"`
	CustomerID     string                    `json:"customerId"`
	CreatedBy      string                    `json:"createdBy"`
	Status         Status                    `json:"status"`
	CatalogVersion string                    `json:"catalogVersion"`
	Selections     pricing.Selections        `json:"selections"`
	Insurance      *pricing.InsuranceContext `json:"insurance,omitempty"`
	Breakdown      []pricing.LayerBreakdown  `json:"breakdown"`
	ManualDiscount decimal.Decimal           `json:"manualDiscount"`
	TaxRate        decimal.Decimal           `json:"taxRate"`

	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	SecondPairDiscount    decimal.Decimal `json:"secondPairDiscount"`
	Tax                   decimal.Decimal `json:"tax"`
	InsuranceDiscount     decimal.Decimal `json:"insuranceDiscount"`
	Total                 decimal.Decimal `json:"total"`
	PatientResponsibility decimal.Decimal `json:"patientResponsibility"`

	IsSecondPair        bool                 `json:"isSecondPair"`
	SecondPairType      pricing.DiscountType `json:"secondPairType,omitempty"`
	SecondPairPercent   int                  `json:"secondPairPercent,omitempty"`
	IsPatientOwnedFrame bool                 `json:"isPatientOwnedFrame"`
	OriginalQuoteID     string               `json:"originalQuoteId,omitempty"`

	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// applyPriced copies priced totals onto the quote.
func (q *Quote) applyPriced(priced pricing.PricedQuote) {
	q.CatalogVersion = priced.CatalogVersion
	q.Breakdown = priced.Layers
	q.TaxRate = priced.TaxRate
	q.Subtotal = priced.Totals.Subtotal
	q.Discount = priced.Totals.Discount
	q.SecondPairDiscount = priced.Totals.SecondPairDiscount
	q.Tax = priced.Totals.Tax
	q.InsuranceDiscount = priced.Totals.InsuranceDiscount
	q.Total = priced.Totals.Total
	q.PatientResponsibility = priced.Totals.PatientResponsibility
	q.IsPatientOwnedFrame = q.Selections.Eyeglasses.PatientOwnedFrame
}

// pricingInput rebuilds the pricing input from the stored selections.
func (q *Quote) pricingInput() pricing.QuoteInput {
	return pricing.QuoteInput{
		Selections:     q.Selections,
		Insurance:      q.Insurance,
		ManualDiscount: q.ManualDiscount,
	}
}

// Clone returns a deep enough copy for callers that mutate quotes.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	c := *q
	c.Selections.Exam.ServiceIDs = append([]string(nil), q.Selections.Exam.ServiceIDs...)
	c.Selections.Eyeglasses.LensOptionIDs = append([]string(nil), q.Selections.Eyeglasses.LensOptionIDs...)
	c.Breakdown = append([]pricing.LayerBreakdown(nil), q.Breakdown...)
	if q.Insurance != nil {
		ins := *q.Insurance
		if q.Insurance.Benefits != nil {
			ins.Benefits = make(map[string]pricing.CategoryBenefit, len(q.Insurance.Benefits))
			for k, v := range q.Insurance.Benefits {
				ins.Benefits[k] = v
			}
		}
		c.Insurance = &ins
	}
	if q.ExpiresAt != nil {
		t := *q.ExpiresAt
		c.ExpiresAt = &t
	}
	if q.CompletedAt != nil {
		t := *q.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// PriceRequest prices selections without persisting them.
type PriceRequest struct {
	LocationID     string                    `json:"locationId"`
	Selections     pricing.Selections        `json:"selections"`
	Insurance      *pricing.InsuranceContext `json:"insurance,omitempty"`
	ManualDiscount money.Flex                `json:"manualDiscount"`
}

// Validate checks required fields.
func (r *PriceRequest) Validate() error {
	r.LocationID = strings.TrimSpace(r.LocationID)
	if r.LocationID == "" {
		return ErrMissingLocation
	}
	return nil
}

func (r *PriceRequest) input() pricing.QuoteInput {
	return pricing.QuoteInput{
		Selections:     r.Selections,
		Insurance:      r.Insurance,
		ManualDiscount: r.ManualDiscount.Decimal,
	}
}

// CreateQuoteRequest starts a new draft.
type CreateQuoteRequest struct {
	OrgID      string `json:"-"`
	CreatedBy  string `json:"-"`
	CustomerID string `json:"customerId"`
	PriceRequest
}

// Validate checks required fields.
func (r *CreateQuoteRequest) Validate() error {
	if err := r.PriceRequest.Validate(); err != nil {
		return err
	}
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	if r.CustomerID == "" {
		return ErrMissingCustomer
	}
	return nil
}

// UpdateQuoteRequest replaces a draft's selections. ExpectedVersion must
// match the stored version.
type UpdateQuoteRequest struct {
	ExpectedVersion int                       `json:"expectedVersion"`
	Selections      pricing.Selections        `json:"selections"`
	Insurance       *pricing.InsuranceContext `json:"insurance,omitempty"`
	ManualDiscount  money.Flex                `json:"manualDiscount"`
}

// TransitionRequest moves a quote through its lifecycle.
type TransitionRequest struct {
	Status string `json:"status"`
}

// EmailRequest sends the quote summary to a recipient.
type EmailRequest struct {
	To string `json:"to"`
}

// ApplySecondPairRequest is the body of POST /api/quotes/apply-second-pair.
type ApplySecondPairRequest struct {
	QuoteID    string `json:"quoteId"`
	CustomerID string `json:"customerId"`
	LocationID string `json:"locationId"`
	UserID     string `json:"userId"`
}

// Validate checks required fields.
func (r *ApplySecondPairRequest) Validate() error {
	r.QuoteID = strings.TrimSpace(r.QuoteID)
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	r.LocationID = strings.TrimSpace(r.LocationID)
	switch {
	case r.QuoteID == "":
		return ErrInvalidQuoteID
	case r.CustomerID == "":
		return ErrMissingCustomer
	case r.LocationID == "":
		return ErrMissingLocation
	}
	return nil
}

// ApplySecondPairResult is the outcome of a successful application.
type ApplySecondPairResult struct {
	Quote       *Quote
	Eligibility pricing.SecondPairEligibility
	Discount    pricing.SecondPairResult
}

// ListFilter narrows List results.
type ListFilter struct {
	LocationID string
	CustomerID string
	CreatedBy  string
	Status     Status
	Limit      int
	Offset     int
}

func (f *ListFilter) normalize() {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
