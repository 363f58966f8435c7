package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
	getErr   error
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket: *input.Bucket,
		key:    *input.Key,
		body:   body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func TestStore_ArchiveQuote(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	completed := time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC)
	record := &QuoteRecord{
		OrgID:        "org-1",
		QuoteID:      "q-123",
		LocationID:   "loc-downtown",
		CustomerHash: HashIdentifier("cust-1"),
		CompletedAt:  completed,
		Total:        "184.00",
		Quote:        json.RawMessage(`{"id":"q-123"}`),
	}

	key, err := store.ArchiveQuote(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "quotes/v1/org-1/2026/03/q-123.json", key)

	require.Len(t, mock.putCalls, 2)
	assert.Equal(t, "test-bucket", mock.putCalls[0].bucket)
	assert.Equal(t, key, mock.putCalls[0].key)

	var stored QuoteRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &stored))
	assert.Equal(t, "1.0", stored.Version)
	assert.Equal(t, "q-123", stored.QuoteID)
	assert.False(t, stored.ArchivedAt.IsZero())
	assert.JSONEq(t, `{"id":"q-123"}`, string(stored.Quote))

	assert.Equal(t, "quotes/v1/org-1/manifests/2026-03.jsonl", mock.putCalls[1].key)
	assert.Contains(t, string(mock.putCalls[1].body), `"quote_id":"q-123"`)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	key, err := store.ArchiveQuote(context.Background(), &QuoteRecord{QuoteID: "q-1"})
	assert.NoError(t, err)
	assert.Empty(t, key)

	var nilStore *Store
	assert.False(t, nilStore.Enabled())
}

func TestStore_ManifestAppend(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)
	month := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendManifest(context.Background(), "org-1", month, ManifestEntry{QuoteID: "q-1"}))
	require.NoError(t, store.AppendManifest(context.Background(), "org-1", month, ManifestEntry{QuoteID: "q-2"}))

	manifest := string(mock.objects["quotes/v1/org-1/manifests/2026-10.jsonl"])
	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "q-1")
	assert.Contains(t, lines[1], "q-2")
}

func TestStore_ManifestReadFailure(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("access denied")
	store := NewStore(mock, "test-bucket", nil)

	err := store.AppendManifest(context.Background(), "org-1", time.Now(), ManifestEntry{QuoteID: "q-1"})
	assert.Error(t, err)

	// The snapshot still lands even when the manifest cannot be read.
	key, err := store.ArchiveQuote(context.Background(), &QuoteRecord{OrgID: "org-1", QuoteID: "q-2", CompletedAt: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, mock.objects[key])
}

func TestMaskMemberID(t *testing.T) {
	assert.Equal(t, "*****6789", MaskMemberID("123456789"))
	assert.Equal(t, "***", MaskMemberID("abc"))
	assert.Equal(t, "", MaskMemberID(""))
}

func TestHashIdentifier(t *testing.T) {
	h := HashIdentifier("cust-1")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashIdentifier("cust-1"))
	assert.NotEqual(t, h, HashIdentifier("cust-2"))
}
