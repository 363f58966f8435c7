// Package pricing turns quote-builder selections into priced line items,
// insurance splits, second-pair discounts and final quote totals. Everything
// here is pure: the catalog and insurance context are passed in and nothing
// is cached between calls.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/money"
)

// Layer names used for breakdowns and metrics labels.
const (
	LayerExam       = "exam"
	LayerEyeglasses = "eyeglasses"
	LayerContacts   = "contacts"
)

// ExamSelection lists the exam services chosen for a quote.
type ExamSelection struct {
	ServiceIDs []string `json:"serviceIds"`
}

// EyeglassesSelection is the frame and lens configuration for a quote.
type EyeglassesSelection struct {
	FrameID           string   `json:"frameId,omitempty"`
	FrameStyleID      string   `json:"frameStyleId,omitempty"`
	LensTypeID        string   `json:"lensTypeId,omitempty"`
	LensOptionIDs     []string `json:"lensOptionIds,omitempty"`
	PatientOwnedFrame bool     `json:"patientOwnedFrame"`
}

// IsEmpty reports whether nothing was selected.
func (s EyeglassesSelection) IsEmpty() bool {
	return s.FrameID == "" && s.LensTypeID == "" && len(s.LensOptionIDs) == 0 && !s.PatientOwnedFrame
}

// ContactsSelection carries the manually entered contact lens figures.
type ContactsSelection struct {
	BrandID            string     `json:"brandId,omitempty"`
	NumberOfBoxes      money.Flex `json:"numberOfBoxes"`
	PricePerBox        money.Flex `json:"pricePerBox"`
	AdditionalSavings  money.Flex `json:"additionalSavings"`
	InsuranceBenefit   money.Flex `json:"insuranceBenefit"`
	ManufacturerRebate money.Flex `json:"manufacturerRebate"`
}

// IsEmpty reports whether the contacts layer is unused.
func (s ContactsSelection) IsEmpty() bool {
	return s.BrandID == "" && s.NumberOfBoxes.IsZero() && s.PricePerBox.IsZero()
}

// Selections groups the per-layer selections of one quote.
type Selections struct {
	Exam       ExamSelection       `json:"exam"`
	Eyeglasses EyeglassesSelection `json:"eyeglasses"`
	Contacts   ContactsSelection   `json:"contacts"`
}

// CategoryBenefit overrides the catalog copay and caps what the carrier pays
// for one option category.
type CategoryBenefit struct {
	Copay     *decimal.Decimal `json:"copay,omitempty"`
	Allowance *decimal.Decimal `json:"allowance,omitempty"`
}

// InsuranceContext is the customer's coverage attached to a quote.
type InsuranceContext struct {
	Carrier  string                     `json:"carrier"`
	MemberID string                     `json:"memberId"`
	Benefits map[string]CategoryBenefit `json:"benefits,omitempty"`
}

// Benefit returns the benefit configured for a category, if any.
func (c *InsuranceContext) Benefit(category string) *CategoryBenefit {
	if c == nil || c.Benefits == nil {
		return nil
	}
	b, ok := c.Benefits[category]
	if !ok {
		return nil
	}
	return &b
}
