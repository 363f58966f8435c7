package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/shopspring/decimal"

	appconfig "github.com/visionpos/vision-pos/internal/config"
	"github.com/visionpos/vision-pos/internal/events"
	"github.com/visionpos/vision-pos/internal/notify"
	"github.com/visionpos/vision-pos/pkg/logging"
)

type stubSQS struct{}

func (stubSQS) SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{}, nil
}

type stubSES struct{}

func (stubSES) SendEmail(context.Context, *sesv2.SendEmailInput, ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return &sesv2.SendEmailOutput{}, nil
}

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildCatalogSourceAppliesDefaults(t *testing.T) {
	cfg := &appconfig.Config{DefaultTaxRate: "0.05"}
	store, err := BuildCatalogSource(cfg, nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cat, err := store.Catalog(context.Background(), "loc-main")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if !cat.TaxRate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected overridden tax rate, got %s", cat.TaxRate)
	}
}

func TestBuildCatalogSourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "version: \"file-1\"\ntax_rate: \"0.1\"\nexam_services:\n  - id: exam\n    name: Exam\n    price: \"90\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	store, err := BuildCatalogSource(&appconfig.Config{CatalogPath: path}, nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cat, err := store.Catalog(context.Background(), "anywhere")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if cat.Version != "file-1" {
		t.Fatalf("expected file catalog, got %s", cat.Version)
	}

	if _, err := BuildCatalogSource(&appconfig.Config{CatalogPath: filepath.Join(t.TempDir(), "missing.yaml")}, nil, nil); err == nil {
		t.Fatalf("expected error for missing catalog file")
	}
	if _, err := BuildCatalogSource(&appconfig.Config{DefaultTimezone: "Nowhere/Land"}, nil, nil); err == nil {
		t.Fatalf("expected error for invalid timezone")
	}
}

func TestBuildRules(t *testing.T) {
	rules := BuildRules(&appconfig.Config{SecondPairSameDay: 40, SecondPairThirty: 150, SecondPairMaxDays: 45}, logging.New("error"))
	if rules.SameDayPercent != 40 {
		t.Fatalf("expected same day override, got %d", rules.SameDayPercent)
	}
	if rules.ThirtyDayPercent != 30 {
		t.Fatalf("expected invalid thirty day percent to be ignored, got %d", rules.ThirtyDayPercent)
	}
	if rules.WindowDays != 45 {
		t.Fatalf("expected window override, got %d", rules.WindowDays)
	}
}

func TestBuildDeliveryHandler(t *testing.T) {
	if _, kind := BuildDeliveryHandler(&appconfig.Config{}, stubSQS{}, nil); kind != "log" {
		t.Fatalf("expected log handler without queue, got %s", kind)
	}
	handler, kind := BuildDeliveryHandler(&appconfig.Config{QuoteEventsQueue: "https://sqs.local/quotes"}, stubSQS{}, nil)
	if kind != "sqs" {
		t.Fatalf("expected sqs handler, got %s", kind)
	}
	if _, ok := handler.(*events.SQSPublisher); !ok {
		t.Fatalf("expected *events.SQSPublisher, got %T", handler)
	}
}

func TestBuildEmailSender(t *testing.T) {
	if sender, kind := BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, nil, nil); sender != nil || kind != "stub" {
		t.Fatalf("expected stub without sendgrid key, got %T/%s", sender, kind)
	}
	sender, kind := BuildEmailSender(&appconfig.Config{EmailProvider: "ses", EmailFromAddress: "quotes@example.com"}, stubSES{}, nil)
	if kind != "ses" {
		t.Fatalf("expected ses sender, got %s", kind)
	}
	if _, ok := sender.(*notify.SESSender); !ok {
		t.Fatalf("expected *notify.SESSender, got %T", sender)
	}
	if sender, _ := BuildEmailSender(&appconfig.Config{EmailProvider: "ses"}, nil, nil); sender != nil {
		t.Fatalf("expected nil sender without SES client")
	}
}

func TestBuildArchiverDisabledWithoutBucket(t *testing.T) {
	if BuildArchiver(&appconfig.Config{}, nil, nil).Enabled() {
		t.Fatalf("expected archiver disabled")
	}
}
