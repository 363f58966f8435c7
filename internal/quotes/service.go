package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/visionpos/vision-pos/internal/archive"
	"github.com/visionpos/vision-pos/internal/catalog"
	"github.com/visionpos/vision-pos/internal/events"
	"github.com/visionpos/vision-pos/internal/notify"
	"github.com/visionpos/vision-pos/internal/observability/metrics"
	"github.com/visionpos/vision-pos/internal/pricing"
	"github.com/visionpos/vision-pos/pkg/logging"
)

var quoteTracer = otel.Tracer("visionpos.internal.quotes")

const (
	defaultExpiryDays = 30
	expireBatchSize   = 100
	systemActor       = "system"
)

// Archiver stores completed quote snapshots.
type Archiver interface {
	Enabled() bool
	ArchiveQuote(ctx context.Context, record *archive.QuoteRecord) (string, error)
}

// SummaryMailer delivers quote summaries to customers.
type SummaryMailer interface {
	SendQuoteSummary(ctx context.Context, to string, summary notify.QuoteSummary) error
}

// Service prices, persists and transitions quotes.
type Service struct {
	repo       Repository
	catalogs   catalog.Source
	rules      pricing.Rules
	metrics    *metrics.QuoteMetrics
	archiver   Archiver
	mailer     SummaryMailer
	logger     *logging.Logger
	now        func() time.Time
	expiryDays int
}

// NewService wires a quote service. Archiving and metrics stay off until the
// matching With method is called.
func NewService(repo Repository, catalogs catalog.Source, logger *logging.Logger) *Service {
	if repo == nil {
		panic("quotes: repository required")
	}
	if catalogs == nil {
		panic("quotes: catalog source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:       repo,
		catalogs:   catalogs,
		rules:      pricing.DefaultRules(),
		mailer:     notify.NewMailer(nil, logger),
		logger:     logger,
		now:        time.Now,
		expiryDays: defaultExpiryDays,
	}
}

func (s *Service) WithRules(rules pricing.Rules) *Service {
	s.rules = rules
	return s
}

func (s *Service) WithMetrics(m *metrics.QuoteMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

func (s *Service) WithMailer(m SummaryMailer) *Service {
	if m != nil {
		s.mailer = m
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithExpiryDays sets how long new quotes stay open. Zero disables expiry.
func (s *Service) WithExpiryDays(days int) *Service {
	if days >= 0 {
		s.expiryDays = days
	}
	return s
}

// Preview prices selections against the location catalog without saving.
func (s *Service) Preview(ctx context.Context, req PriceRequest) (*pricing.PricedQuote, error) {
	ctx, span := quoteTracer.Start(ctx, "quotes.preview")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("visionpos.location_id", req.LocationID))

	cat, err := s.catalog(ctx, span, req.LocationID)
	if err != nil {
		return nil, err
	}
	priced, err := s.price(span, "preview", func() (pricing.PricedQuote, error) {
		return pricing.PriceQuote(cat, req.input())
	})
	if err != nil {
		return nil, err
	}
	return &priced, nil
}

// Create prices and stores a new draft.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "quotes.create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("visionpos.org_id", req.OrgID),
		attribute.String("visionpos.location_id", req.LocationID),
	)

	cat, err := s.catalog(ctx, span, req.LocationID)
	if err != nil {
		return nil, err
	}
	priced, err := s.price(span, "create", func() (pricing.PricedQuote, error) {
		return pricing.PriceQuote(cat, req.input())
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	q := &Quote{
		ID:             uuid.NewString(),
		OrgID:          req.OrgID,
		LocationID:     req.LocationID,
		CustomerID:     req.CustomerID,
		CreatedBy:      req.CreatedBy,
		Status:         StatusDraft,
		Selections:     req.Selections,
		Insurance:      req.Insurance,
		ManualDiscount: req.ManualDiscount.Decimal,
		CreatedAt:      now,
	}
	if s.expiryDays > 0 {
		expires := now.AddDate(0, 0, s.expiryDays)
		q.ExpiresAt = &expires
	}
	q.applyPriced(priced)

	evt := Event{Type: events.TypeQuoteCreated, Payload: events.QuoteCreatedV1{
		EventID:    uuid.NewString(),
		OrgID:      q.OrgID,
		QuoteID:    q.ID,
		LocationID: q.LocationID,
		CustomerID: q.CustomerID,
		CreatedBy:  q.CreatedBy,
		Total:      amount(q.Total),
		CreatedAt:  now,
	}}
	if err := s.repo.Create(ctx, q, evt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("quotes: create: %w", err)
	}
	span.SetAttributes(attribute.String("visionpos.quote_id", q.ID))
	s.logger.Info("quote created", "org_id", q.OrgID, "quote_id", q.ID, "location_id", q.LocationID)
	return q, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (*Quote, error) {
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, orgID string, filter ListFilter) ([]*Quote, error) {
	return s.repo.List(ctx, orgID, filter)
}

// SaveDraft re-prices the quote with new selections. The save is rejected
// with ErrVersionConflict when ExpectedVersion is stale.
func (s *Service) SaveDraft(ctx context.Context, orgID, id string, req UpdateQuoteRequest) (*Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "quotes.save_draft")
	defer span.End()
	span.SetAttributes(attribute.String("visionpos.org_id", orgID), attribute.String("visionpos.quote_id", id))

	q, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.Editable() {
		return nil, ErrNotEditable
	}
	if req.ExpectedVersion != q.Version {
		return nil, ErrVersionConflict
	}

	q.Selections = req.Selections
	q.Insurance = req.Insurance
	q.ManualDiscount = req.ManualDiscount.Decimal

	cat, err := s.catalog(ctx, span, q.LocationID)
	if err != nil {
		return nil, err
	}
	priced, err := s.price(span, "save_draft", func() (pricing.PricedQuote, error) {
		if !q.IsSecondPair {
			return pricing.PriceQuote(cat, q.pricingInput())
		}
		p, _, err := pricing.PriceSecondPair(cat, q.pricingInput(), q.SecondPairType, q.SecondPairPercent)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pricing.ErrSecondPairWithInsurance) {
			return nil, ErrSecondPairWithInsurance
		}
		return nil, err
	}
	q.applyPriced(priced)

	if err := s.repo.Update(ctx, q, req.ExpectedVersion); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return q, nil
}

// Transition moves a quote to target. Completing a quote stamps CompletedAt
// and archives a snapshot once the change is stored.
func (s *Service) Transition(ctx context.Context, orgID, id string, target Status, actor string) (*Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "quotes.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("visionpos.org_id", orgID),
		attribute.String("visionpos.quote_id", id),
		attribute.String("visionpos.status", string(target)),
	)

	q, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, q.Status, target)
	}

	now := s.now().UTC()
	from := q.Status
	expected := q.Version
	q.Status = target
	evts := []Event{statusChanged(q, from, actor, now)}

	var archiveKey string
	if target == StatusCompleted {
		q.CompletedAt = &now
		if s.archiver != nil && s.archiver.Enabled() {
			archiveKey = archive.QuoteKey(q.OrgID, q.ID, now)
		}
		evts = append(evts, Event{Type: events.TypeQuoteCompleted, Payload: events.QuoteCompletedV1{
			EventID:               uuid.NewString(),
			OrgID:                 q.OrgID,
			QuoteID:               q.ID,
			LocationID:            q.LocationID,
			CustomerID:            q.CustomerID,
			CreatedBy:             q.CreatedBy,
			Total:                 amount(q.Total),
			PatientResponsibility: amount(q.PatientResponsibility),
			IsSecondPair:          q.IsSecondPair,
			ArchiveKey:            archiveKey,
			CompletedAt:           now,
		}})
	}

	if err := s.repo.Update(ctx, q, expected, evts...); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveTransition(string(target))
	s.logger.Info("quote status changed", "org_id", q.OrgID, "quote_id", q.ID, "from", from, "to", target)

	if archiveKey != "" {
		s.archive(ctx, q)
	}
	return q, nil
}

// archive writes a completed quote snapshot. Failures are logged; the
// completion itself has already been stored.
func (s *Service) archive(ctx context.Context, q *Quote) {
	snapshot := q.Clone()
	snapshot.CustomerID = ""
	if snapshot.Insurance != nil {
		snapshot.Insurance.MemberID = archive.MaskMemberID(snapshot.Insurance.MemberID)
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("failed to encode quote snapshot", "error", err, "quote_id", q.ID)
		return
	}
	record := &archive.QuoteRecord{
		Version:      "1.0",
		OrgID:        q.OrgID,
		QuoteID:      q.ID,
		LocationID:   q.LocationID,
		CustomerHash: archive.HashIdentifier(q.CustomerID),
		CompletedAt:  *q.CompletedAt,
		Total:        amount(q.Total),
		IsSecondPair: q.IsSecondPair,
		Quote:        body,
	}
	if _, err := s.archiver.ArchiveQuote(ctx, record); err != nil {
		s.logger.Error("failed to archive quote", "error", err, "org_id", q.OrgID, "quote_id", q.ID)
	}
}

// CheckSecondPair reports whether the customer currently qualifies for a
// second pair discount at the location.
func (s *Service) CheckSecondPair(ctx context.Context, orgID, customerID, locationID string) (pricing.SecondPairEligibility, error) {
	ctx, span := quoteTracer.Start(ctx, "quotes.check_second_pair")
	defer span.End()
	span.SetAttributes(attribute.String("visionpos.org_id", orgID), attribute.String("visionpos.location_id", locationID))

	if customerID == "" {
		return pricing.SecondPairEligibility{}, ErrMissingCustomer
	}
	if locationID == "" {
		return pricing.SecondPairEligibility{}, ErrMissingLocation
	}
	cat, err := s.catalog(ctx, span, locationID)
	if err != nil {
		return pricing.SecondPairEligibility{}, err
	}
	now := s.now()
	last, err := s.repo.LastCompletedPurchase(ctx, orgID, customerID, "", now)
	if err != nil {
		span.RecordError(err)
		return pricing.SecondPairEligibility{}, err
	}
	eligibility := s.rules.Evaluate(last, now, cat.Location())
	if eligibility.IsEligible {
		s.metrics.ObserveSecondPair("eligible")
	} else {
		s.metrics.ObserveSecondPair("not_eligible")
	}
	return eligibility, nil
}

// ApplySecondPair discounts a quote as the customer's second pair. The new
// totals and the audit event are stored together under a version check, so
// on any error the stored quote is unchanged.
func (s *Service) ApplySecondPair(ctx context.Context, orgID string, req ApplySecondPairRequest) (*ApplySecondPairResult, error) {
	ctx, span := quoteTracer.Start(ctx, "quotes.apply_second_pair")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("visionpos.org_id", orgID),
		attribute.String("visionpos.quote_id", req.QuoteID),
		attribute.String("visionpos.location_id", req.LocationID),
	)

	q, err := s.repo.Get(ctx, orgID, req.QuoteID)
	if err != nil {
		return nil, err
	}
	switch {
	case q.CustomerID != req.CustomerID || q.LocationID != req.LocationID:
		return nil, ErrCustomerMismatch
	case !q.Status.Editable():
		return nil, ErrNotEditable
	case q.IsSecondPair:
		return nil, ErrSecondPairAlreadyApplied
	case q.Insurance != nil:
		s.metrics.ObserveSecondPair("rejected")
		return nil, ErrSecondPairWithInsurance
	}

	cat, err := s.catalog(ctx, span, q.LocationID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	last, err := s.repo.LastCompletedPurchase(ctx, orgID, q.CustomerID, q.ID, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	eligibility := s.rules.Evaluate(last, now, cat.Location())
	span.SetAttributes(attribute.String("visionpos.discount_type", string(eligibility.DiscountType)))
	if !eligibility.IsEligible {
		s.metrics.ObserveSecondPair("not_eligible")
		return nil, ErrNotEligible
	}

	var result pricing.SecondPairResult
	priced, err := s.price(span, "apply_second_pair", func() (pricing.PricedQuote, error) {
		p, r, err := pricing.PriceSecondPair(cat, q.pricingInput(), eligibility.DiscountType, eligibility.DiscountPercent)
		result = r
		return p, err
	})
	if err != nil {
		if errors.Is(err, pricing.ErrSecondPairWithInsurance) {
			s.metrics.ObserveSecondPair("rejected")
			return nil, ErrSecondPairWithInsurance
		}
		return nil, err
	}

	updated := q.Clone()
	updated.applyPriced(priced)
	updated.IsSecondPair = true
	updated.SecondPairType = eligibility.DiscountType
	updated.SecondPairPercent = eligibility.DiscountPercent
	updated.OriginalQuoteID = eligibility.OriginalQuoteID

	evt := Event{Type: events.TypeQuoteSecondPairApplied, Payload: events.QuoteSecondPairAppliedV1{
		EventID:         uuid.NewString(),
		OrgID:           orgID,
		QuoteID:         updated.ID,
		OriginalQuoteID: eligibility.OriginalQuoteID,
		CustomerID:      updated.CustomerID,
		DiscountType:    string(eligibility.DiscountType),
		DiscountPercent: eligibility.DiscountPercent,
		DiscountAmount:  amount(result.DiscountAmount),
		FinalTotal:      amount(updated.Total),
		AppliedBy:       req.UserID,
		AppliedAt:       now.UTC(),
	}}
	if err := s.repo.Update(ctx, updated, q.Version, evt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveSecondPair("applied")
	s.logger.Info("second pair discount applied",
		"org_id", orgID,
		"quote_id", updated.ID,
		"discount_type", eligibility.DiscountType,
		"discount_amount", amount(result.DiscountAmount),
		"user_id", req.UserID,
	)
	return &ApplySecondPairResult{Quote: updated, Eligibility: eligibility, Discount: result}, nil
}

// EmailSummary sends the quote's totals to the given address.
func (s *Service) EmailSummary(ctx context.Context, orgID, id, to string) error {
	ctx, span := quoteTracer.Start(ctx, "quotes.email_summary")
	defer span.End()
	span.SetAttributes(attribute.String("visionpos.org_id", orgID), attribute.String("visionpos.quote_id", id))

	q, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.mailer.SendQuoteSummary(ctx, to, summaryOf(q)); err != nil {
		span.RecordError(err)
		return err
	}

	evt := Event{Type: events.TypeQuoteEmailed, Payload: events.QuoteEmailedV1{
		EventID:   uuid.NewString(),
		OrgID:     orgID,
		QuoteID:   q.ID,
		Recipient: archive.HashIdentifier(to),
		SentAt:    s.now().UTC(),
	}}
	if err := s.repo.RecordEvent(ctx, orgID, evt); err != nil {
		s.logger.Warn("failed to record email event", "error", err, "quote_id", q.ID)
	}
	return nil
}

// ExpireStale moves open quotes past their expiry to expired and returns
// how many were changed. Quotes edited concurrently are left for the next run.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.repo.ListExpirable(ctx, now, expireBatchSize)
	if err != nil {
		return 0, fmt.Errorf("quotes: list expirable: %w", err)
	}
	expired := 0
	for _, q := range stale {
		from := q.Status
		expected := q.Version
		q.Status = StatusExpired
		if err := s.repo.Update(ctx, q, expected, statusChanged(q, from, systemActor, now)); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			s.logger.Error("failed to expire quote", "error", err, "org_id", q.OrgID, "quote_id", q.ID)
			continue
		}
		s.metrics.ObserveTransition(string(StatusExpired))
		expired++
	}
	return expired, nil
}

// StartExpirySweep runs ExpireStale on every tick until ctx is cancelled.
func (s *Service) StartExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireStale(ctx)
			if err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("expired stale quotes", "count", n)
			}
		}
	}
}

func (s *Service) catalog(ctx context.Context, span trace.Span, locationID string) (*catalog.Catalog, error) {
	cat, err := s.catalogs.Catalog(ctx, locationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("quotes: load catalog: %w", err)
	}
	return cat, nil
}

func (s *Service) price(span trace.Span, operation string, fn func() (pricing.PricedQuote, error)) (pricing.PricedQuote, error) {
	start := time.Now()
	priced, err := fn()
	s.metrics.ObservePricingDuration(operation, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return pricing.PricedQuote{}, err
	}
	for _, layer := range priced.Layers {
		s.metrics.ObservePriced(layer.Layer)
	}
	span.SetAttributes(attribute.String("visionpos.total", amount(priced.Totals.Total)))
	return priced, nil
}

func statusChanged(q *Quote, from Status, actor string, at time.Time) Event {
	return Event{Type: events.TypeQuoteStatusChanged, Payload: events.QuoteStatusChangedV1{
		EventID:    uuid.NewString(),
		OrgID:      q.OrgID,
		QuoteID:    q.ID,
		From:       string(from),
		To:         string(q.Status),
		Actor:      actor,
		OccurredAt: at,
	}}
}

func summaryOf(q *Quote) notify.QuoteSummary {
	summary := notify.QuoteSummary{
		QuoteID:               q.ID,
		LocationID:            q.LocationID,
		CreatedAt:             q.CreatedAt,
		Subtotal:              q.Subtotal,
		Discount:              q.Discount,
		SecondPairDiscount:    q.SecondPairDiscount,
		SecondPairType:        string(q.SecondPairType),
		InsuranceDiscount:     q.InsuranceDiscount,
		Tax:                   q.Tax,
		Total:                 q.Total,
		PatientResponsibility: q.PatientResponsibility,
	}
	for _, layer := range q.Breakdown {
		for _, item := range layer.Items {
			summary.Lines = append(summary.Lines, notify.SummaryLine{Name: item.Name, Amount: item.Price})
		}
	}
	return summary
}
