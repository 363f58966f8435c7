package events

import "time"

// Event types written to the outbox.
const (
	TypeQuoteCreated           = "quote.created.v1"
	TypeQuoteStatusChanged     = "quote.status_changed.v1"
	TypeQuoteCompleted         = "quote.completed.v1"
	TypeQuoteSecondPairApplied = "quote.second_pair_applied.v1"
	TypeQuoteEmailed           = "quote.emailed.v1"
)

// Money amounts are carried as strings to avoid float rounding downstream.

type QuoteCreatedV1 struct {
	EventID    string    `json:"event_id"`
	OrgID      string    `json:"org_id"`
	QuoteID    string    `json:"quote_id"`
	LocationID string    `json:"location_id"`
	CustomerID string    `json:"customer_id"`
	CreatedBy  string    `json:"created_by"`
	Total      string    `json:"total"`
	CreatedAt  time.Time `json:"created_at"`
}

type QuoteStatusChangedV1 struct {
	EventID    string    `json:"event_id"`
	OrgID      string    `json:"org_id"`
	QuoteID    string    `json:"quote_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type QuoteCompletedV1 struct {
	EventID               string    `json:"event_id"`
	OrgID                 string    `json:"org_id"`
	QuoteID               string    `json:"quote_id"`
	LocationID            string    `json:"location_id"`
	CustomerID            string    `json:"customer_id"`
	CreatedBy             string    `json:"created_by"`
	Total                 string    `json:"total"`
	PatientResponsibility string    `json:"patient_responsibility"`
	IsSecondPair          bool      `json:"is_second_pair"`
	ArchiveKey            string    `json:"archive_key,omitempty"`
	CompletedAt           time.Time `json:"completed_at"`
}

type QuoteSecondPairAppliedV1 struct {
	EventID         string    `json:"event_id"`
	OrgID           string    `json:"org_id"`
	QuoteID         string    `json:"quote_id"`
	OriginalQuoteID string    `json:"original_quote_id"`
	CustomerID      string    `json:"customer_id"`
	DiscountType    string    `json:"discount_type"`
	DiscountPercent int       `json:"discount_percent"`
	DiscountAmount  string    `json:"discount_amount"`
	FinalTotal      string    `json:"final_total"`
	AppliedBy       string    `json:"applied_by"`
	AppliedAt       time.Time `json:"applied_at"`
}

type QuoteEmailedV1 struct {
	EventID   string    `json:"event_id"`
	OrgID     string    `json:"org_id"`
	QuoteID   string    `json:"quote_id"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
}
