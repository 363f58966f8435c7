package quotes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/visionpos/vision-pos/internal/pricing"
)

// Event is a domain event written together with a quote change.
type Event struct {
	Type    string
	Payload any
}

// Repository defines the interface for quote storage.
type Repository interface {
	Create(ctx context.Context, q *Quote, evts ...Event) error
	Get(ctx context.Context, orgID, id string) (*Quote, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]*Quote, error)
	// Update persists q if the stored version still equals expectedVersion,
	// bumping Version and UpdatedAt. Events are recorded atomically with the
	// change. A stale version yields ErrVersionConflict and changes nothing.
	Update(ctx context.Context, q *Quote, expectedVersion int, evts ...Event) error
	// RecordEvent writes an event that is not tied to a quote change.
	RecordEvent(ctx context.Context, orgID string, evt Event) error
	// LastCompletedPurchase returns the customer's most recent completed quote
	// before the given time, excluding excludeQuoteID. It returns nil when
	// there is none.
	LastCompletedPurchase(ctx context.Context, orgID, customerID, excludeQuoteID string, before time.Time) (*pricing.Purchase, error)
	// ListExpirable returns open quotes across orgs whose expiry has passed.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Quote, error)
}

// InMemoryRepository is a Repository kept in process memory.
type InMemoryRepository struct {
	mu     sync.RWMutex
	quotes map[string]*Quote
	events []RecordedEvent
}

// RecordedEvent is an event captured by InMemoryRepository.
type RecordedEvent struct {
	OrgID string
	Event
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		quotes: make(map[string]*Quote),
	}
}

func (r *InMemoryRepository) Create(_ context.Context, q *Quote, evts ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = q.CreatedAt
	if q.Version == 0 {
		q.Version = 1
	}
	r.quotes[q.ID] = q.Clone()
	r.record(q.OrgID, evts)
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, orgID, id string) (*Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.quotes[id]
	if !ok || q.OrgID != orgID {
		return nil, ErrQuoteNotFound
	}
	return q.Clone(), nil
}

func (r *InMemoryRepository) List(_ context.Context, orgID string, filter ListFilter) ([]*Quote, error) {
	filter.normalize()
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Quote
	for _, q := range r.quotes {
		if q.OrgID != orgID {
			continue
		}
		if filter.LocationID != "" && q.LocationID != filter.LocationID {
			continue
		}
		if filter.CustomerID != "" && q.CustomerID != filter.CustomerID {
			continue
		}
		if filter.CreatedBy != "" && q.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out = append(out, q.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset >= len(out) {
		return []*Quote{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Update(_ context.Context, q *Quote, expectedVersion int, evts ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.quotes[q.ID]
	if !ok || current.OrgID != q.OrgID {
		return ErrQuoteNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	q.Version = expectedVersion + 1
	q.UpdatedAt = time.Now().UTC()
	r.quotes[q.ID] = q.Clone()
	r.record(q.OrgID, evts)
	return nil
}

func (r *InMemoryRepository) RecordEvent(_ context.Context, orgID string, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(orgID, []Event{evt})
	return nil
}

func (r *InMemoryRepository) LastCompletedPurchase(_ context.Context, orgID, customerID, excludeQuoteID string, before time.Time) (*pricing.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *pricing.Purchase
	for _, q := range r.quotes {
		if q.OrgID != orgID || q.CustomerID != customerID || q.ID == excludeQuoteID {
			continue
		}
		if q.Status != StatusCompleted || q.CompletedAt == nil || !q.CompletedAt.Before(before) {
			continue
		}
		if last == nil || q.CompletedAt.After(last.CompletedAt) {
			last = &pricing.Purchase{QuoteID: q.ID, CompletedAt: *q.CompletedAt}
		}
	}
	return last, nil
}

func (r *InMemoryRepository) ListExpirable(_ context.Context, now time.Time, limit int) ([]*Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Quote
	for _, q := range r.quotes {
		if !q.Status.Editable() || q.ExpiresAt == nil || !q.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, q.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Events returns a copy of every recorded event.
func (r *InMemoryRepository) Events() []RecordedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RecordedEvent(nil), r.events...)
}

func (r *InMemoryRepository) record(orgID string, evts []Event) {
	for _, evt := range evts {
		r.events = append(r.events, RecordedEvent{OrgID: orgID, Event: evt})
	}
}
