package archive

import (
	"encoding/json"
	"time"
)

// QuoteRecord is the snapshot of a completed quote written to S3.
type QuoteRecord struct {
	Version      string          `json:"version"` // "1.0"
	OrgID        string          `json:"org_id"`
	QuoteID      string          `json:"quote_id"`
	LocationID   string          `json:"location_id"`
	CustomerHash string          `json:"customer_hash"` // sha256 of customer id
	CompletedAt  time.Time       `json:"completed_at"`
	ArchivedAt   time.Time       `json:"archived_at"`
	Total        string          `json:"total"`
	IsSecondPair bool            `json:"is_second_pair"`
	Quote        json.RawMessage `json:"quote"`
}

// ManifestEntry is one line in the monthly JSONL manifest.
type ManifestEntry struct {
	QuoteID      string `json:"quote_id"`
	S3Key        string `json:"s3_key"`
	LocationID   string `json:"location_id"`
	Total        string `json:"total"`
	IsSecondPair bool   `json:"is_second_pair"`
	CompletedAt  string `json:"completed_at"`
}
