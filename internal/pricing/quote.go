package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/catalog"
)

// ErrNilCatalog is returned when pricing is attempted without a catalog.
var ErrNilCatalog = errors.New("pricing: catalog required")

// QuoteInput is a full quote-builder state.
type QuoteInput struct {
	Selections         Selections
	Insurance          *InsuranceContext
	ManualDiscount     decimal.Decimal
	SecondPairDiscount decimal.Decimal
	// TaxRate overrides the catalog rate when set.
	TaxRate *decimal.Decimal
}

// PricedQuote is the priced result of a QuoteInput.
type PricedQuote struct {
	CatalogVersion string             `json:"catalogVersion"`
	LocationID     string             `json:"locationId"`
	TaxRate        decimal.Decimal    `json:"taxRate"`
	Layers         []LayerBreakdown   `json:"layers"`
	Contacts       *ContactsBreakdown `json:"contacts,omitempty"`
	Totals         Totals             `json:"totals"`
}

// PriceQuote prices every non-empty layer and aggregates the totals.
func PriceQuote(cat *catalog.Catalog, in QuoteInput) (PricedQuote, error) {
	if cat == nil {
		return PricedQuote{}, ErrNilCatalog
	}
	rate := cat.TaxRate
	if in.TaxRate != nil {
		rate = *in.TaxRate
	}
	out := PricedQuote{
		CatalogVersion: cat.Version,
		LocationID:     cat.LocationID,
		TaxRate:        rate,
		Layers:         []LayerBreakdown{},
	}

	if exam := ResolveLayer(PriceExam(cat, in.Selections.Exam), in.Insurance); len(exam.Items) > 0 {
		out.Layers = append(out.Layers, exam)
	}
	if glasses := ResolveLayer(PriceEyeglasses(cat, in.Selections.Eyeglasses), in.Insurance); len(glasses.Items) > 0 {
		out.Layers = append(out.Layers, glasses)
	}
	if !in.Selections.Contacts.IsEmpty() {
		contacts := PriceContacts(cat, in.Selections.Contacts)
		out.Contacts = &contacts
		if len(contacts.Layer.Items) > 0 {
			out.Layers = append(out.Layers, contacts.Layer)
		}
	}

	totals, err := Aggregate(AggregateInput{
		Layers:             out.Layers,
		ManualDiscount:     in.ManualDiscount,
		SecondPairDiscount: in.SecondPairDiscount,
		TaxRate:            rate,
	})
	if err != nil {
		return PricedQuote{}, err
	}
	out.Totals = totals
	return out, nil
}

// PriceSecondPair prices the quote without a second-pair discount, applies
// the discount to the discounted pre-tax amount and re-aggregates. Quotes
// carrying insurance are rejected.
func PriceSecondPair(cat *catalog.Catalog, in QuoteInput, t DiscountType, percent int) (PricedQuote, SecondPairResult, error) {
	if in.Insurance != nil {
		return PricedQuote{}, SecondPairResult{}, ErrSecondPairWithInsurance
	}
	in.SecondPairDiscount = decimal.Zero
	base, err := PriceQuote(cat, in)
	if err != nil {
		return PricedQuote{}, SecondPairResult{}, err
	}
	if base.Totals.InsuranceDiscount.IsPositive() {
		return PricedQuote{}, SecondPairResult{}, ErrSecondPairWithInsurance
	}

	result, err := CalculateSecondPairDiscount(base.Totals.Subtotal.Sub(base.Totals.Discount), t, percent)
	if err != nil {
		return PricedQuote{}, SecondPairResult{}, err
	}
	in.SecondPairDiscount = result.DiscountAmount
	priced, err := PriceQuote(cat, in)
	if err != nil {
		return PricedQuote{}, SecondPairResult{}, err
	}
	return priced, result, nil
}
