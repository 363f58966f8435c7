package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/money"
)

var (
	// ErrSecondPairWithInsurance is returned when a second-pair discount is
	// combined with insurance coverage. The discount is cash only.
	ErrSecondPairWithInsurance = errors.New("pricing: second pair discount cannot be combined with insurance")
	// ErrInvalidTaxRate is returned for tax rates outside [0, 1).
	ErrInvalidTaxRate = errors.New("pricing: tax rate out of range")
	// ErrAmountOutOfRange is returned when a quote total exceeds what a
	// quote row can store.
	ErrAmountOutOfRange = errors.New("pricing: amount out of range")
)

var one = decimal.NewFromInt(1)

// AggregateInput is everything the aggregator needs to total a quote.
type AggregateInput struct {
	Layers             []LayerBreakdown
	ManualDiscount     decimal.Decimal
	SecondPairDiscount decimal.Decimal
	TaxRate            decimal.Decimal
}

// Totals are the persisted quote figures, rounded to cents.
type Totals struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	SecondPairDiscount    decimal.Decimal `json:"secondPairDiscount"`
	Tax                   decimal.Decimal `json:"tax"`
	InsuranceDiscount     decimal.Decimal `json:"insuranceDiscount"`
	Total                 decimal.Decimal `json:"total"`
	PatientResponsibility decimal.Decimal `json:"patientResponsibility"`
}

// Aggregate combines layer breakdowns into quote totals. Reductions are
// clamped in order (discounts, second pair, insurance) so together they never
// exceed the subtotal. Tax is charged on the subtotal.
func Aggregate(in AggregateInput) (Totals, error) {
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThanOrEqual(one) {
		return Totals{}, fmt.Errorf("%w: %s", ErrInvalidTaxRate, in.TaxRate)
	}

	subtotal := money.Zero
	layerDiscount := money.Zero
	insurance := money.Zero
	for _, layer := range in.Layers {
		subtotal = subtotal.Add(money.NonNegative(layer.Subtotal))
		layerDiscount = layerDiscount.Add(money.NonNegative(layer.Discount))
		insurance = insurance.Add(money.NonNegative(layer.InsuranceDiscount))
	}
	subtotal = money.Cents(subtotal)
	insurance = money.Cents(insurance)

	secondPair := money.Cents(money.NonNegative(in.SecondPairDiscount))
	if secondPair.IsPositive() && insurance.IsPositive() {
		return Totals{}, ErrSecondPairWithInsurance
	}

	discount := money.Min(money.Cents(layerDiscount.Add(money.NonNegative(in.ManualDiscount))), subtotal)
	secondPair = money.Min(secondPair, subtotal.Sub(discount))
	insurance = money.Min(insurance, subtotal.Sub(discount).Sub(secondPair))
	tax := money.Cents(subtotal.Mul(in.TaxRate))
	total := subtotal.Sub(discount).Sub(secondPair).Sub(insurance).Add(tax)
	if subtotal.Add(tax).GreaterThan(money.MaxAmount) {
		return Totals{}, fmt.Errorf("%w: subtotal %s", ErrAmountOutOfRange, subtotal)
	}

	return Totals{
		Subtotal:              subtotal,
		Discount:              discount,
		SecondPairDiscount:    secondPair,
		Tax:                   tax,
		InsuranceDiscount:     insurance,
		Total:                 total,
		PatientResponsibility: total,
	}, nil
}
