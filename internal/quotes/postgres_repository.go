package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/events"
	"github.com/visionpos/vision-pos/internal/pricing"
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores quotes in Postgres. Amounts are NUMERIC(12,2)
// and read back as text to keep full precision.
type PostgresRepository struct {
	db     db
	outbox *events.OutboxStore
}

// NewPostgresRepository initializes a repo backed by a pgx pool. Events are
// written to outbox inside the same transaction as the quote change.
func NewPostgresRepository(pool db, outbox *events.OutboxStore) *PostgresRepository {
	if pool == nil {
		panic("quotes: pgx pool required")
	}
	if outbox == nil {
		outbox = &events.OutboxStore{}
	}
	return &PostgresRepository{db: pool, outbox: outbox}
}

const quoteColumns = `
	id, org_id, location_id, customer_id, created_by, status, catalog_version,
	selections, COALESCE(insurance, 'null'::jsonb), breakdown,
	manual_discount::text, tax_rate::text,
	subtotal::text, discount::text, second_pair_discount::text, tax::text,
	insurance_discount::text, total::text, patient_responsibility::text,
	is_second_pair, second_pair_type, second_pair_percent, is_patient_owned_frame, original_quote_id,
	version, created_at, updated_at, expires_at, completed_at`

func (r *PostgresRepository) Create(ctx context.Context, q *Quote, evts ...Event) error {
	selections, insurance, breakdown, err := encodeDocuments(q)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = q.CreatedAt
	if q.Version == 0 {
		q.Version = 1
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("quotes: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO quotes (
			id, org_id, location_id, customer_id, created_by, status, catalog_version,
			selections, insurance, breakdown, manual_discount, tax_rate,
			subtotal, discount, second_pair_discount, tax, insurance_discount, total, patient_responsibility,
			is_second_pair, second_pair_type, second_pair_percent, is_patient_owned_frame, original_quote_id,
			version, created_at, updated_at, expires_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24,
			$25, $26, $27, $28, $29
		)
	`
	if _, err := tx.Exec(ctx, query,
		q.ID, q.OrgID, q.LocationID, q.CustomerID, q.CreatedBy, string(q.Status), q.CatalogVersion,
		selections, insurance, breakdown, amount(q.ManualDiscount), q.TaxRate.String(),
		amount(q.Subtotal), amount(q.Discount), amount(q.SecondPairDiscount), amount(q.Tax),
		amount(q.InsuranceDiscount), amount(q.Total), amount(q.PatientResponsibility),
		q.IsSecondPair, string(q.SecondPairType), q.SecondPairPercent, q.IsPatientOwnedFrame, q.OriginalQuoteID,
		q.Version, q.CreatedAt, q.UpdatedAt, q.ExpiresAt, q.CompletedAt,
	); err != nil {
		return fmt.Errorf("quotes: insert failed: %w", err)
	}
	if err := r.writeEvents(ctx, tx, q.OrgID, evts); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("quotes: commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, orgID, id string) (*Quote, error) {
	query := `SELECT ` + quoteColumns + `
		FROM quotes
		WHERE id = $1 AND org_id = $2
	`
	q, err := scanQuote(r.db.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("quotes: select failed: %w", err)
	}
	return q, nil
}

func (r *PostgresRepository) List(ctx context.Context, orgID string, filter ListFilter) ([]*Quote, error) {
	filter.normalize()
	query := `SELECT ` + quoteColumns + `
		FROM quotes
		WHERE org_id = $1
		  AND ($2 = '' OR location_id = $2)
		  AND ($3 = '' OR customer_id = $3)
		  AND ($4 = '' OR created_by = $4)
		  AND ($5 = '' OR status = $5)
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7
	`
	rows, err := r.db.Query(ctx, query, orgID, filter.LocationID, filter.CustomerID, filter.CreatedBy, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("quotes: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quotes: scan failed: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, q *Quote, expectedVersion int, evts ...Event) error {
	selections, insurance, breakdown, err := encodeDocuments(q)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("quotes: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE quotes SET
			status = $4, catalog_version = $5,
			selections = $6, insurance = $7, breakdown = $8,
			manual_discount = $9, tax_rate = $10,
			subtotal = $11, discount = $12, second_pair_discount = $13, tax = $14,
			insurance_discount = $15, total = $16, patient_responsibility = $17,
			is_second_pair = $18, second_pair_type = $19, second_pair_percent = $20,
			is_patient_owned_frame = $21, original_quote_id = $22,
			expires_at = $23, completed_at = $24,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND version = $3
		RETURNING version, updated_at
	`
	var version int
	var updatedAt time.Time
	err = tx.QueryRow(ctx, query,
		q.ID, q.OrgID, expectedVersion,
		string(q.Status), q.CatalogVersion,
		selections, insurance, breakdown,
		amount(q.ManualDiscount), q.TaxRate.String(),
		amount(q.Subtotal), amount(q.Discount), amount(q.SecondPairDiscount), amount(q.Tax),
		amount(q.InsuranceDiscount), amount(q.Total), amount(q.PatientResponsibility),
		q.IsSecondPair, string(q.SecondPairType), q.SecondPairPercent,
		q.IsPatientOwnedFrame, q.OriginalQuoteID,
		q.ExpiresAt, q.CompletedAt,
	).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrConflict(ctx, tx, q.OrgID, q.ID)
		}
		return fmt.Errorf("quotes: update failed: %w", err)
	}
	if err := r.writeEvents(ctx, tx, q.OrgID, evts); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("quotes: commit: %w", err)
	}
	q.Version = version
	q.UpdatedAt = updatedAt
	return nil
}

// missOrConflict explains why a versioned update matched no row.
func (r *PostgresRepository) missOrConflict(ctx context.Context, tx pgx.Tx, orgID, id string) error {
	var current int
	err := tx.QueryRow(ctx, `SELECT version FROM quotes WHERE id = $1 AND org_id = $2`, id, orgID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuoteNotFound
		}
		return fmt.Errorf("quotes: version lookup failed: %w", err)
	}
	return ErrVersionConflict
}

func (r *PostgresRepository) RecordEvent(ctx context.Context, orgID string, evt Event) error {
	if _, err := r.outbox.InsertTx(ctx, r.db, orgID, evt.Type, evt.Payload); err != nil {
		return fmt.Errorf("quotes: record event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LastCompletedPurchase(ctx context.Context, orgID, customerID, excludeQuoteID string, before time.Time) (*pricing.Purchase, error) {
	query := `
		SELECT id, completed_at
		FROM quotes
		WHERE org_id = $1
		  AND customer_id = $2
		  AND id <> $3
		  AND status = 'completed'
		  AND completed_at IS NOT NULL
		  AND completed_at < $4
		ORDER BY completed_at DESC
		LIMIT 1
	`
	var p pricing.Purchase
	if err := r.db.QueryRow(ctx, query, orgID, customerID, excludeQuoteID, before).Scan(&p.QuoteID, &p.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("quotes: last purchase lookup failed: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + quoteColumns + `
		FROM quotes
		WHERE status IN ('draft', 'presented')
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("quotes: list expirable failed: %w", err)
	}
	defer rows.Close()

	var out []*Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quotes: scan failed: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) writeEvents(ctx context.Context, tx pgx.Tx, orgID string, evts []Event) error {
	for _, evt := range evts {
		if _, err := r.outbox.InsertTx(ctx, tx, orgID, evt.Type, evt.Payload); err != nil {
			return fmt.Errorf("quotes: record %s: %w", evt.Type, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (*Quote, error) {
	var (
		q                                           Quote
		status, secondPairType                      string
		selections, insurance, breakdown            []byte
		manual, taxRate, subtotal, discount, spDisc string
		tax, insDisc, total, patient                string
	)
	if err := row.Scan(
		&q.ID, &q.OrgID, &q.LocationID, &q.CustomerID, &q.CreatedBy, &status, &q.CatalogVersion,
		&selections, &insurance, &breakdown,
		&manual, &taxRate,
		&subtotal, &discount, &spDisc, &tax,
		&insDisc, &total, &patient,
		&q.IsSecondPair, &secondPairType, &q.SecondPairPercent, &q.IsPatientOwnedFrame, &q.OriginalQuoteID,
		&q.Version, &q.CreatedAt, &q.UpdatedAt, &q.ExpiresAt, &q.CompletedAt,
	); err != nil {
		return nil, err
	}
	q.Status = Status(status)
	q.SecondPairType = pricing.DiscountType(secondPairType)

	if err := json.Unmarshal(selections, &q.Selections); err != nil {
		return nil, fmt.Errorf("quotes: decode selections: %w", err)
	}
	if len(insurance) > 0 {
		if err := json.Unmarshal(insurance, &q.Insurance); err != nil {
			return nil, fmt.Errorf("quotes: decode insurance: %w", err)
		}
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &q.Breakdown); err != nil {
			return nil, fmt.Errorf("quotes: decode breakdown: %w", err)
		}
	}

	targets := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{manual, &q.ManualDiscount}, {taxRate, &q.TaxRate},
		{subtotal, &q.Subtotal}, {discount, &q.Discount}, {spDisc, &q.SecondPairDiscount},
		{tax, &q.Tax}, {insDisc, &q.InsuranceDiscount}, {total, &q.Total}, {patient, &q.PatientResponsibility},
	}
	for _, t := range targets {
		d, err := decimal.NewFromString(strings.TrimSpace(t.raw))
		if err != nil {
			return nil, fmt.Errorf("quotes: decode amount %q: %w", t.raw, err)
		}
		*t.dst = d
	}
	return &q, nil
}

func encodeDocuments(q *Quote) (selections, insurance, breakdown []byte, err error) {
	if selections, err = json.Marshal(q.Selections); err != nil {
		return nil, nil, nil, fmt.Errorf("quotes: encode selections: %w", err)
	}
	if q.Insurance != nil {
		if insurance, err = json.Marshal(q.Insurance); err != nil {
			return nil, nil, nil, fmt.Errorf("quotes: encode insurance: %w", err)
		}
	}
	if breakdown, err = json.Marshal(q.Breakdown); err != nil {
		return nil, nil, nil, fmt.Errorf("quotes: encode breakdown: %w", err)
	}
	return selections, insurance, breakdown, nil
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
