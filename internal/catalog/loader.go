package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

type optionDoc struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	Price            string  `yaml:"price"`
	InsuranceCovered bool    `yaml:"insurance_covered"`
	Copay            *string `yaml:"copay"`
	Category         string  `yaml:"category"`
}

type frameStyleDoc struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	MountFees map[string]string `yaml:"mount_fees"`
}

type locationDoc struct {
	TaxRate  string `yaml:"tax_rate"`
	Timezone string `yaml:"timezone"`
}

type catalogDoc struct {
	Version              string                 `yaml:"version"`
	Timezone             string                 `yaml:"timezone"`
	TaxRate              string                 `yaml:"tax_rate"`
	PatientOwnedFrameFee string                 `yaml:"patient_owned_frame_fee"`
	ExamServices         []optionDoc            `yaml:"exam_services"`
	LensTypes            []optionDoc            `yaml:"lens_types"`
	LensOptions          []optionDoc            `yaml:"lens_options"`
	Frames               []optionDoc            `yaml:"frames"`
	FrameStyles          []frameStyleDoc        `yaml:"frame_styles"`
	ContactBrands        []optionDoc            `yaml:"contact_brands"`
	Locations            map[string]locationDoc `yaml:"locations"`
}

// FileSource serves catalogs parsed from a YAML document. Every location gets
// the base price list; a location entry may override tax rate and timezone.
type FileSource struct {
	base      Catalog
	locations map[string]locationDoc
	strict    bool
}

// Parse decodes a YAML catalog document.
func Parse(r io.Reader) (*FileSource, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}

	frameFee, err := parseAmount("patient_owned_frame_fee", doc.PatientOwnedFrameFee)
	if err != nil {
		return nil, err
	}
	base := Catalog{
		Version:              strings.TrimSpace(doc.Version),
		Timezone:             strings.TrimSpace(doc.Timezone),
		PatientOwnedFrameFee: frameFee,
	}
	sections := []struct {
		docs     []optionDoc
		category string
		dst      *[]PricedOption
	}{
		{doc.ExamServices, CategoryExam, &base.ExamServices},
		{doc.LensTypes, CategoryLens, &base.LensTypes},
		{doc.LensOptions, CategoryCoating, &base.LensOptions},
		{doc.Frames, CategoryFrame, &base.Frames},
		{doc.ContactBrands, CategoryContacts, &base.ContactBrands},
	}
	for _, sec := range sections {
		opts, err := convertOptions(sec.docs, sec.category)
		if err != nil {
			return nil, err
		}
		*sec.dst = opts
	}
	rate, err := parseRate(doc.TaxRate)
	if err != nil {
		return nil, err
	}
	base.TaxRate = rate
	for _, style := range doc.FrameStyles {
		fs := FrameStyle{ID: strings.TrimSpace(style.ID), Name: style.Name}
		if len(style.MountFees) > 0 {
			fs.MountFees = make(map[string]decimal.Decimal, len(style.MountFees))
			for category, fee := range style.MountFees {
				amount, err := parseAmount("frame style "+fs.ID+" mount fee "+category, fee)
				if err != nil {
					return nil, err
				}
				fs.MountFees[category] = amount
			}
		}
		base.FrameStyles = append(base.FrameStyles, fs)
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	src := &FileSource{base: base, locations: doc.Locations}
	for id := range doc.Locations {
		if _, err := src.build(id); err != nil {
			return nil, err
		}
	}
	return src, nil
}

// LoadFile parses the catalog at path.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Default returns the catalog compiled into the binary.
func Default() *FileSource {
	src, err := Parse(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default catalog is invalid: %v", err))
	}
	return src
}

// Strict makes unlisted locations an error instead of receiving the base catalog.
func (s *FileSource) Strict() *FileSource {
	s.strict = true
	return s
}

// WithBaseDefaults replaces the base tax rate and timezone used by locations
// without their own override. Empty values keep the document's settings.
func (s *FileSource) WithBaseDefaults(taxRate, timezone string) error {
	base := s.base
	if strings.TrimSpace(taxRate) != "" {
		rate, err := parseRate(taxRate)
		if err != nil {
			return err
		}
		base.TaxRate = rate
	}
	if tz := strings.TrimSpace(timezone); tz != "" {
		base.Timezone = tz
	}
	if err := base.Validate(); err != nil {
		return err
	}
	s.base = base
	return nil
}

// Catalog implements Source.
func (s *FileSource) Catalog(_ context.Context, locationID string) (*Catalog, error) {
	return s.build(locationID)
}

func (s *FileSource) build(locationID string) (*Catalog, error) {
	locationID = strings.TrimSpace(locationID)
	cat := s.base
	cat.LocationID = locationID

	override, ok := s.locations[locationID]
	if !ok {
		if s.strict {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, locationID)
		}
		return &cat, nil
	}
	if strings.TrimSpace(override.TaxRate) != "" {
		rate, err := parseRate(override.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("catalog: location %s: %w", locationID, err)
		}
		cat.TaxRate = rate
	}
	if tz := strings.TrimSpace(override.Timezone); tz != "" {
		cat.Timezone = tz
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: location %s: %w", locationID, err)
	}
	return &cat, nil
}

func convertOptions(docs []optionDoc, defaultCategory string) ([]PricedOption, error) {
	out := make([]PricedOption, 0, len(docs))
	for _, d := range docs {
		id := strings.TrimSpace(d.ID)
		price, err := parseAmount(id+" price", d.Price)
		if err != nil {
			return nil, err
		}
		opt := PricedOption{
			ID:               id,
			Name:             d.Name,
			Price:            price,
			InsuranceCovered: d.InsuranceCovered,
			Category:         strings.TrimSpace(d.Category),
		}
		if opt.Category == "" {
			opt.Category = defaultCategory
		}
		if d.Copay != nil {
			copay, err := parseAmount(id+" copay", *d.Copay)
			if err != nil {
				return nil, err
			}
			opt.Copay = &copay
		}
		out = append(out, opt)
	}
	return out, nil
}

// parseAmount reads a catalog amount. Reference data is never coerced:
// a blank amount is zero, anything unparsable rejects the document.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q", ErrInvalidCatalog, field, raw)
	}
	return d, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: tax rate %q", ErrInvalidCatalog, raw)
	}
	return rate, nil
}
