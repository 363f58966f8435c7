package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/pkg/logging"
)

// ErrInvalidRecipient is returned when an email address is missing or malformed.
var ErrInvalidRecipient = errors.New("notify: invalid recipient")

// SummaryLine is one priced row of a quote summary.
type SummaryLine struct {
	Name   string
	Amount decimal.Decimal
}

// QuoteSummary is the data rendered into a quote summary email.
type QuoteSummary struct {
	QuoteID               string
	LocationID            string
	CreatedAt             time.Time
	Lines                 []SummaryLine
	Subtotal              decimal.Decimal
	Discount              decimal.Decimal
	SecondPairDiscount    decimal.Decimal
	SecondPairType        string
	InsuranceDiscount     decimal.Decimal
	Tax                   decimal.Decimal
	Total                 decimal.Decimal
	PatientResponsibility decimal.Decimal
}

// RenderQuoteSummary builds the subject and plain-text body. Zero reductions
// are omitted.
func RenderQuoteSummary(s QuoteSummary) (string, string) {
	subject := fmt.Sprintf("Your eyewear quote %s", shortID(s.QuoteID))

	var b strings.Builder
	fmt.Fprintf(&b, "Quote %s\n", s.QuoteID)
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Prepared %s\n", s.CreatedAt.Format("January 2, 2006"))
	}
	b.WriteString("\n")
	for _, line := range s.Lines {
		writeRow(&b, line.Name, line.Amount)
	}
	b.WriteString("\n")
	writeRow(&b, "Subtotal", s.Subtotal)
	if s.Discount.IsPositive() {
		writeRow(&b, "Discount", s.Discount.Neg())
	}
	if s.SecondPairDiscount.IsPositive() {
		label := "Second pair discount"
		if s.SecondPairType != "" {
			label += " (" + s.SecondPairType + ")"
		}
		writeRow(&b, label, s.SecondPairDiscount.Neg())
	}
	if s.InsuranceDiscount.IsPositive() {
		writeRow(&b, "Insurance", s.InsuranceDiscount.Neg())
	}
	writeRow(&b, "Tax", s.Tax)
	writeRow(&b, "Total", s.Total)
	writeRow(&b, "You pay", s.PatientResponsibility)
	return subject, b.String()
}

func writeRow(b *strings.Builder, label string, amount decimal.Decimal) {
	fmt.Fprintf(b, "%-44s %12s\n", label, "$"+amount.StringFixed(2))
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

// Mailer sends customer-facing quote emails.
type Mailer struct {
	sender EmailSender
	logger *logging.Logger
}

// NewMailer wraps an EmailSender. A nil sender falls back to the stub.
func NewMailer(sender EmailSender, logger *logging.Logger) *Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &Mailer{sender: sender, logger: logger}
}

// SendQuoteSummary renders and sends a quote summary to one recipient.
func (m *Mailer) SendQuoteSummary(ctx context.Context, to string, summary QuoteSummary) error {
	subject, body := RenderQuoteSummary(summary)
	msg := EmailMessage{
		To:         strings.TrimSpace(to),
		Subject:    subject,
		Body:       body,
		Categories: []string{"quote_summary"},
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send quote summary: %w", err)
	}
	m.logger.Info("quote summary sent", "quote_id", summary.QuoteID)
	return nil
}
