package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Envelope carries transport metadata around an outbox payload so queue
// consumers can route and deduplicate without parsing the payload.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Aggregate       string          `json:"aggregate"`
	OrgID           string          `json:"org_id"`
	TimestampMicros int64           `json:"timestamp"`
	Payload         json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an outbox entry. The aggregate is the event type prefix,
// e.g. "quote" for "quote.completed.v1".
func NewEnvelope(entry OutboxEntry) (Envelope, error) {
	eventType := strings.TrimSpace(entry.Type)
	if eventType == "" {
		return Envelope{}, fmt.Errorf("events: event type missing")
	}
	if len(entry.Payload) == 0 || !json.Valid(entry.Payload) {
		return Envelope{}, fmt.Errorf("events: invalid payload for %s", eventType)
	}
	aggregate, _, _ := strings.Cut(eventType, ".")
	return Envelope{
		EventID:         entry.ID,
		EventType:       eventType,
		Aggregate:       aggregate,
		OrgID:           entry.OrgID,
		TimestampMicros: entry.CreatedAt.UTC().UnixMicro(),
		Payload:         append(json.RawMessage(nil), entry.Payload...),
	}, nil
}
