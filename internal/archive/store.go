package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives completed quotes to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// QuoteKey is the object key for a quote snapshot.
func QuoteKey(orgID, quoteID string, completedAt time.Time) string {
	completedAt = completedAt.UTC()
	return fmt.Sprintf("quotes/v1/%s/%d/%02d/%s.json", orgID, completedAt.Year(), completedAt.Month(), quoteID)
}

// ArchiveQuote writes a QuoteRecord as JSON to S3, appends it to the org's
// monthly manifest and returns the object key. It returns "" when archival is
// disabled.
func (s *Store) ArchiveQuote(ctx context.Context, record *QuoteRecord) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if record.Version == "" {
		record.Version = "1.0"
	}
	if record.ArchivedAt.IsZero() {
		record.ArchivedAt = s.now()
	}
	completedAt := record.CompletedAt
	if completedAt.IsZero() {
		completedAt = record.ArchivedAt
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	s3Key := QuoteKey(record.OrgID, record.QuoteID, completedAt)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived quote to S3",
		"org_id", record.OrgID,
		"quote_id", record.QuoteID,
		"s3_key", s3Key,
	)

	entry := ManifestEntry{
		QuoteID:      record.QuoteID,
		S3Key:        s3Key,
		LocationID:   record.LocationID,
		Total:        record.Total,
		IsSecondPair: record.IsSecondPair,
		CompletedAt:  completedAt.UTC().Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, record.OrgID, completedAt, entry); err != nil {
		// The snapshot is already stored.
		s.logger.Warn("failed to append manifest", "error", err, "quote_id", record.QuoteID)
	}

	return s3Key, nil
}

// AppendManifest appends a JSONL line to the org's monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, orgID string, month time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	month = month.UTC()
	manifestKey := fmt.Sprintf("quotes/v1/%s/manifests/%d-%02d.jsonl", orgID, month.Year(), month.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
