package bootstrap

import (
	"strings"

	"github.com/visionpos/vision-pos/internal/archive"
	appconfig "github.com/visionpos/vision-pos/internal/config"
	"github.com/visionpos/vision-pos/internal/events"
	"github.com/visionpos/vision-pos/internal/notify"
	"github.com/visionpos/vision-pos/pkg/logging"
)

// BuildDeliveryHandler picks the outbox transport. Without a queue URL or
// client, events are only logged.
func BuildDeliveryHandler(cfg *appconfig.Config, sqsClient events.SQSAPI, logger *logging.Logger) (events.DeliveryHandler, string) {
	if cfg == nil || strings.TrimSpace(cfg.QuoteEventsQueue) == "" || sqsClient == nil {
		return events.NewLogHandler(logger), "log"
	}
	return events.NewSQSPublisher(sqsClient, cfg.QuoteEventsQueue), "sqs"
}

// BuildEmailSender selects the email provider from EMAIL_PROVIDER. It returns
// nil when the chosen provider is not usable so callers fall back to the stub.
func BuildEmailSender(cfg *appconfig.Config, sesClient notify.SESAPI, logger *logging.Logger) (notify.EmailSender, string) {
	if cfg == nil {
		return nil, "stub"
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, "stub"
		}
		return sender, "sendgrid"
	case "ses":
		sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, "stub"
		}
		return sender, "ses"
	default:
		return nil, "stub"
	}
}

// BuildArchiver returns the S3 quote archive. An empty bucket yields a
// disabled store.
func BuildArchiver(cfg *appconfig.Config, s3Client archive.S3API, logger *logging.Logger) *archive.Store {
	if logger == nil {
		logger = logging.Default()
	}
	bucket := ""
	if cfg != nil && s3Client != nil {
		bucket = strings.TrimSpace(cfg.QuoteArchiveBucket)
	}
	return archive.NewStore(s3Client, bucket, logger.Logger)
}
