package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/catalog"
	"github.com/visionpos/vision-pos/internal/money"
)

// PatientOwnedFrameID identifies the handling fee line for a customer's own frame.
const PatientOwnedFrameID = "patient-owned-frame"

// LineItem is one priced row of a layer breakdown.
type LineItem struct {
	OptionID         string           `json:"optionId"`
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Price            decimal.Decimal  `json:"price"`
	InsuranceCovered bool             `json:"insuranceCovered"`
	Copay            *decimal.Decimal `json:"copay,omitempty"`
	InsurancePays    decimal.Decimal  `json:"insurancePays"`
	PatientPays      decimal.Decimal  `json:"patientPays"`
}

// LayerBreakdown is the priced result for one quote layer.
type LayerBreakdown struct {
	Layer                 string          `json:"layer"`
	Items                 []LineItem      `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	InsuranceDiscount     decimal.Decimal `json:"insuranceDiscount"`
	PatientResponsibility decimal.Decimal `json:"patientResponsibility"`
}

// ContactsBreakdown exposes the intermediate contact lens figures shown in
// the quote builder.
type ContactsBreakdown struct {
	BrandID            string          `json:"brandId,omitempty"`
	NumberOfBoxes      decimal.Decimal `json:"numberOfBoxes"`
	PricePerBox        decimal.Decimal `json:"pricePerBox"`
	TotalCost          decimal.Decimal `json:"totalCost"`
	AdditionalSavings  decimal.Decimal `json:"additionalSavings"`
	InsuranceBenefit   decimal.Decimal `json:"insuranceBenefit"`
	InOfficeTotal      decimal.Decimal `json:"inOfficeTotal"`
	ManufacturerRebate decimal.Decimal `json:"manufacturerRebate"`
	AfterRebateTotal   decimal.Decimal `json:"afterRebateTotal"`
	FinalCostPerBox    decimal.Decimal `json:"finalCostPerBox"`
	Layer              LayerBreakdown  `json:"layer"`
}

// PriceExam sums the selected exam services. Unknown and repeated IDs are
// ignored.
func PriceExam(cat *catalog.Catalog, sel ExamSelection) LayerBreakdown {
	layer := LayerBreakdown{Layer: LayerExam, Items: []LineItem{}}
	seen := make(map[string]struct{}, len(sel.ServiceIDs))
	for _, id := range sel.ServiceIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		opt, ok := cat.ExamService(id)
		if !ok {
			continue
		}
		layer.Items = append(layer.Items, lineItem(opt))
	}
	return finishLayer(layer)
}

// PriceEyeglasses prices the frame, lens type and lens options, plus the
// frame style's mount fee for each selected item.
func PriceEyeglasses(cat *catalog.Catalog, sel EyeglassesSelection) LayerBreakdown {
	layer := LayerBreakdown{Layer: LayerEyeglasses, Items: []LineItem{}}

	var base []LineItem
	if sel.PatientOwnedFrame {
		base = append(base, LineItem{
			OptionID:      PatientOwnedFrameID,
			Name:          "Patient-owned frame",
			Category:      catalog.CategoryFrame,
			Price:         cat.PatientOwnedFrameFee,
			InsurancePays: money.Zero,
			PatientPays:   cat.PatientOwnedFrameFee,
		})
	} else if frame, ok := cat.Frame(sel.FrameID); ok {
		base = append(base, lineItem(frame))
	}
	if lens, ok := cat.LensType(sel.LensTypeID); ok {
		base = append(base, lineItem(lens))
	}
	seen := make(map[string]struct{}, len(sel.LensOptionIDs))
	for _, id := range sel.LensOptionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if opt, ok := cat.LensOption(id); ok {
			base = append(base, lineItem(opt))
		}
	}
	layer.Items = append(layer.Items, base...)

	if style, ok := cat.FrameStyle(sel.FrameStyleID); ok {
		for _, item := range base {
			fee := style.MountFee(item.Category)
			if !fee.IsPositive() {
				continue
			}
			layer.Items = append(layer.Items, LineItem{
				OptionID:      style.ID + ":" + item.OptionID,
				Name:          style.Name + " mounting: " + item.Name,
				Category:      item.Category,
				Price:         fee,
				InsurancePays: money.Zero,
				PatientPays:   fee,
			})
		}
	}
	return finishLayer(layer)
}

// PriceContacts runs the contact lens sub-flow. Savings are applied before
// the insurance benefit and each subtraction is clamped at zero. The
// manufacturer rebate is mailed in by the patient, so it lowers the
// after-rebate figures but not what is collected in office.
func PriceContacts(cat *catalog.Catalog, sel ContactsSelection) ContactsBreakdown {
	boxes := money.NonNegative(sel.NumberOfBoxes.Decimal)
	perBox := money.NonNegative(sel.PricePerBox.Decimal)
	name := "Contact lenses"
	if brand, ok := cat.ContactBrand(sel.BrandID); ok {
		name = brand.Name
		if perBox.IsZero() {
			perBox = brand.Price
		}
	}
	savings := money.NonNegative(sel.AdditionalSavings.Decimal)
	benefit := money.NonNegative(sel.InsuranceBenefit.Decimal)
	rebate := money.NonNegative(sel.ManufacturerRebate.Decimal)

	totalCost := perBox.Mul(boxes)
	appliedSavings := money.Min(savings, totalCost)
	appliedBenefit := money.Min(benefit, totalCost.Sub(appliedSavings))
	inOffice := money.NonNegative(totalCost.Sub(savings).Sub(benefit))
	afterRebate := money.NonNegative(inOffice.Sub(rebate))

	finalPerBox := money.Zero
	if boxes.IsPositive() {
		finalPerBox = afterRebate.Div(boxes)
	}

	layer := LayerBreakdown{
		Layer:                 LayerContacts,
		Items:                 []LineItem{},
		Subtotal:              totalCost,
		Discount:              appliedSavings,
		InsuranceDiscount:     appliedBenefit,
		PatientResponsibility: inOffice,
	}
	if totalCost.IsPositive() {
		id := sel.BrandID
		if id == "" {
			id = LayerContacts
		}
		layer.Items = append(layer.Items, LineItem{
			OptionID:         id,
			Name:             name,
			Category:         catalog.CategoryContacts,
			Price:            totalCost,
			InsuranceCovered: appliedBenefit.IsPositive(),
			InsurancePays:    appliedBenefit,
			PatientPays:      totalCost.Sub(appliedBenefit),
		})
	}

	return ContactsBreakdown{
		BrandID:            sel.BrandID,
		NumberOfBoxes:      boxes,
		PricePerBox:        perBox,
		TotalCost:          totalCost,
		AdditionalSavings:  savings,
		InsuranceBenefit:   benefit,
		InOfficeTotal:      inOffice,
		ManufacturerRebate: rebate,
		AfterRebateTotal:   afterRebate,
		FinalCostPerBox:    finalPerBox,
		Layer:              layer,
	}
}

func lineItem(opt catalog.PricedOption) LineItem {
	item := LineItem{
		OptionID:         opt.ID,
		Name:             opt.Name,
		Category:         opt.Category,
		Price:            money.NonNegative(opt.Price),
		InsuranceCovered: opt.InsuranceCovered,
		InsurancePays:    money.Zero,
	}
	item.PatientPays = item.Price
	if opt.Copay != nil {
		copay := *opt.Copay
		item.Copay = &copay
	}
	return item
}

// finishLayer recomputes the layer sums from its items.
func finishLayer(layer LayerBreakdown) LayerBreakdown {
	layer.Subtotal = money.Zero
	layer.InsuranceDiscount = money.Zero
	layer.PatientResponsibility = money.Zero
	for _, item := range layer.Items {
		layer.Subtotal = layer.Subtotal.Add(item.Price)
		layer.InsuranceDiscount = layer.InsuranceDiscount.Add(item.InsurancePays)
		layer.PatientResponsibility = layer.PatientResponsibility.Add(item.PatientPays)
	}
	layer.Discount = money.Zero
	return layer
}
