package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/catalog"
	"github.com/visionpos/vision-pos/internal/money"
)

// Coverage is the split of one option's price between patient and carrier.
type Coverage struct {
	PatientPays   decimal.Decimal `json:"patientPays"`
	InsurancePays decimal.Decimal `json:"insurancePays"`
}

// ResolveCoverage splits an option's price. Covered options leave the patient
// the copay, never more than the price; the carrier pays the rest up to the
// category allowance when one is set.
func ResolveCoverage(option catalog.PricedOption, benefit *CategoryBenefit) Coverage {
	price := money.NonNegative(option.Price)
	if !option.InsuranceCovered {
		return Coverage{PatientPays: price, InsurancePays: money.Zero}
	}

	copay := option.CopayOrZero()
	if benefit != nil && benefit.Copay != nil {
		copay = *benefit.Copay
	}
	patient := money.Min(money.NonNegative(copay), price)
	insurer := price.Sub(patient)
	if benefit != nil && benefit.Allowance != nil {
		insurer = money.Min(insurer, money.NonNegative(*benefit.Allowance))
		patient = price.Sub(insurer)
	}
	return Coverage{PatientPays: patient, InsurancePays: insurer}
}

// ResolveLayer applies the insurance context to every item of a layer and
// recomputes its sums. A nil context is self-pay.
func ResolveLayer(layer LayerBreakdown, ins *InsuranceContext) LayerBreakdown {
	items := make([]LineItem, len(layer.Items))
	for i, item := range layer.Items {
		if ins == nil {
			item.InsurancePays = money.Zero
			item.PatientPays = item.Price
		} else {
			cov := ResolveCoverage(catalog.PricedOption{
				ID:               item.OptionID,
				Price:            item.Price,
				InsuranceCovered: item.InsuranceCovered,
				Copay:            item.Copay,
				Category:         item.Category,
			}, ins.Benefit(item.Category))
			item.InsurancePays = cov.InsurancePays
			item.PatientPays = cov.PatientPays
		}
		items[i] = item
	}
	layer.Items = items
	return finishLayer(layer)
}
