// Package catalog provides the priced option catalogs that quotes are priced
// against. A catalog is immutable once loaded and is scoped to a location.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCatalog is returned when catalog data fails validation.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
	// ErrUnknownLocation is returned when a location has no catalog.
	ErrUnknownLocation = errors.New("catalog: unknown location")
)

// Option categories used for insurance benefits and frame style mount fees.
const (
	CategoryExam     = "exam"
	CategoryFrame    = "frame"
	CategoryLens     = "lens"
	CategoryCoating  = "coating"
	CategoryAddOn    = "add_on"
	CategoryContacts = "contacts"
)

// PricedOption is a single sellable item in the catalog.
type PricedOption struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Price            decimal.Decimal  `json:"price"`
	InsuranceCovered bool             `json:"insuranceCovered"`
	Copay            *decimal.Decimal `json:"copay,omitempty"`
	Category         string           `json:"category,omitempty"`
}

// CopayOrZero returns the configured copay, or zero when none is set.
func (o PricedOption) CopayOrZero() decimal.Decimal {
	if o.Copay == nil {
		return decimal.Zero
	}
	return *o.Copay
}

// FrameStyle adds per-category mounting fees (drilling, grooving) to an
// eyeglasses layer.
type FrameStyle struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	MountFees map[string]decimal.Decimal `json:"mountFees,omitempty"`
}

// MountFee returns the fee charged for an item of the given category.
func (s FrameStyle) MountFee(category string) decimal.Decimal {
	if fee, ok := s.MountFees[category]; ok {
		return fee
	}
	return decimal.Zero
}

// Catalog is the versioned price list for one location.
type Catalog struct {
	Version              string          `json:"version"`
	LocationID           string          `json:"locationId"`
	Timezone             string          `json:"timezone"`
	TaxRate              decimal.Decimal `json:"taxRate"`
	PatientOwnedFrameFee decimal.Decimal `json:"patientOwnedFrameFee"`
	ExamServices         []PricedOption  `json:"examServices"`
	LensTypes            []PricedOption  `json:"lensTypes"`
	LensOptions          []PricedOption  `json:"lensOptions"`
	Frames               []PricedOption  `json:"frames"`
	FrameStyles          []FrameStyle    `json:"frameStyles"`
	ContactBrands        []PricedOption  `json:"contactBrands"`
}

// ExamService looks up an exam service by ID.
func (c *Catalog) ExamService(id string) (PricedOption, bool) {
	return find(c.ExamServices, id)
}

// LensType looks up a lens type by ID.
func (c *Catalog) LensType(id string) (PricedOption, bool) {
	return find(c.LensTypes, id)
}

// LensOption looks up a coating or add-on by ID.
func (c *Catalog) LensOption(id string) (PricedOption, bool) {
	return find(c.LensOptions, id)
}

// Frame looks up a frame by ID.
func (c *Catalog) Frame(id string) (PricedOption, bool) {
	return find(c.Frames, id)
}

// ContactBrand looks up a contact lens brand by ID.
func (c *Catalog) ContactBrand(id string) (PricedOption, bool) {
	return find(c.ContactBrands, id)
}

// FrameStyle looks up a frame style by ID.
func (c *Catalog) FrameStyle(id string) (FrameStyle, bool) {
	for _, style := range c.FrameStyles {
		if style.ID == id {
			return style, true
		}
	}
	return FrameStyle{}, false
}

// Location resolves the catalog timezone, falling back to UTC.
func (c *Catalog) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TaxRatePlaces is the precision a tax rate may carry.
const TaxRatePlaces = 5

// Validate checks identifiers and amounts.
func (c *Catalog) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate %s out of range", ErrInvalidCatalog, c.TaxRate)
	}
	// quotes.tax_rate stores five decimal places.
	if !c.TaxRate.Equal(c.TaxRate.Round(TaxRatePlaces)) {
		return fmt.Errorf("%w: tax rate %s has more than %d decimal places", ErrInvalidCatalog, c.TaxRate, TaxRatePlaces)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidCatalog, c.Timezone, err)
		}
	}
	lists := map[string][]PricedOption{
		"exam_services":  c.ExamServices,
		"lens_types":     c.LensTypes,
		"lens_options":   c.LensOptions,
		"frames":         c.Frames,
		"contact_brands": c.ContactBrands,
	}
	for name, options := range lists {
		seen := make(map[string]struct{}, len(options))
		for _, opt := range options {
			if opt.ID == "" {
				return fmt.Errorf("%w: %s entry without id", ErrInvalidCatalog, name)
			}
			if _, dup := seen[opt.ID]; dup {
				return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidCatalog, name, opt.ID)
			}
			seen[opt.ID] = struct{}{}
			if opt.Price.IsNegative() {
				return fmt.Errorf("%w: %s %q has negative price", ErrInvalidCatalog, name, opt.ID)
			}
		}
	}
	seen := make(map[string]struct{}, len(c.FrameStyles))
	for _, style := range c.FrameStyles {
		if style.ID == "" {
			return fmt.Errorf("%w: frame style without id", ErrInvalidCatalog)
		}
		if _, dup := seen[style.ID]; dup {
			return fmt.Errorf("%w: duplicate frame style id %q", ErrInvalidCatalog, style.ID)
		}
		seen[style.ID] = struct{}{}
	}
	return nil
}

func find(options []PricedOption, id string) (PricedOption, bool) {
	if id == "" {
		return PricedOption{}, false
	}
	for _, opt := range options {
		if opt.ID == id {
			return opt, true
		}
	}
	return PricedOption{}, false
}
