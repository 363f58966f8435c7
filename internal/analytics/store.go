// Package analytics computes quote funnel and staff performance figures.
// Every filter is a bound parameter.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned when from is not before to.
var ErrInvalidRange = errors.New("analytics: from must be before to")

const maxLeaderboard = 100

// Funnel counts quotes created in a period by how far they progressed.
type Funnel struct {
	Created   int `json:"created"`
	Presented int `json:"presented"`
	Signed    int `json:"signed"`
	Completed int `json:"completed"`
}

// CaptureRate is the quote funnel for an org or one of its locations.
type CaptureRate struct {
	OrgID            string          `json:"orgId"`
	LocationID       string          `json:"locationId,omitempty"`
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	Funnel           Funnel          `json:"funnel"`
	PresentationRate float64         `json:"presentationRate"`
	CloseRate        float64         `json:"closeRate"`
	CaptureRate      float64         `json:"captureRate"`
	Revenue          decimal.Decimal `json:"revenue"`
}

// StaffPerformance is one leaderboard row.
type StaffPerformance struct {
	StaffID       string          `json:"staffId"`
	Quotes        int             `json:"quotes"`
	Completed     int             `json:"completed"`
	SecondPairs   int             `json:"secondPairs"`
	Revenue       decimal.Decimal `json:"revenue"`
	CaptureRate   float64         `json:"captureRate"`
	AverageTicket decimal.Decimal `json:"averageTicket"`
}

// Store runs analytics queries over the quotes table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("analytics: sql db required")
	}
	return &Store{db: db}
}

// CaptureRate returns the funnel for quotes created in [from, to). An empty
// locationID covers every location in the org.
func (s *Store) CaptureRate(ctx context.Context, orgID, locationID string, from, to time.Time) (*CaptureRate, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('presented', 'signed', 'completed')),
			COUNT(*) FILTER (WHERE status IN ('signed', 'completed')),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(total) FILTER (WHERE status = 'completed'), 0)::text
		FROM quotes
		WHERE org_id = $1
		  AND ($2 = '' OR location_id = $2)
		  AND created_at >= $3
		  AND created_at < $4
	`
	out := &CaptureRate{OrgID: orgID, LocationID: locationID, From: from, To: to}
	var revenue string
	err := s.db.QueryRowContext(ctx, query, orgID, locationID, from, to).Scan(
		&out.Funnel.Created, &out.Funnel.Presented, &out.Funnel.Signed, &out.Funnel.Completed, &revenue,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics: capture rate: %w", err)
	}
	if out.Revenue, err = parseAmount(revenue); err != nil {
		return nil, err
	}
	out.PresentationRate = ratio(out.Funnel.Presented, out.Funnel.Created)
	out.CloseRate = ratio(out.Funnel.Completed, out.Funnel.Presented)
	out.CaptureRate = ratio(out.Funnel.Completed, out.Funnel.Created)
	return out, nil
}

// StaffLeaderboard ranks staff by completed revenue for quotes created in
// [from, to). A non-empty staffIDs restricts the rows to those users.
func (s *Store) StaffLeaderboard(ctx context.Context, orgID string, from, to time.Time, staffIDs []string, limit int) ([]StaffPerformance, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	if limit <= 0 || limit > maxLeaderboard {
		limit = 10
	}
	ids := make([]string, 0, len(staffIDs))
	for _, id := range staffIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	query := `
		SELECT
			created_by,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'completed' AND is_second_pair),
			COALESCE(SUM(total) FILTER (WHERE status = 'completed'), 0)::text AS revenue
		FROM quotes
		WHERE org_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		  AND created_by <> ''
		  AND (cardinality($4::text[]) = 0 OR created_by = ANY($4::text[]))
		GROUP BY created_by
		ORDER BY COALESCE(SUM(total) FILTER (WHERE status = 'completed'), 0) DESC, created_by
		LIMIT $5
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, from, to, pq.Array(ids), limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: staff leaderboard: %w", err)
	}
	defer rows.Close()

	out := []StaffPerformance{}
	for rows.Next() {
		var row StaffPerformance
		var revenue string
		if err := rows.Scan(&row.StaffID, &row.Quotes, &row.Completed, &row.SecondPairs, &revenue); err != nil {
			return nil, fmt.Errorf("analytics: scan leaderboard: %w", err)
		}
		if row.Revenue, err = parseAmount(revenue); err != nil {
			return nil, err
		}
		row.CaptureRate = ratio(row.Completed, row.Quotes)
		row.AverageTicket = decimal.Zero
		if row.Completed > 0 {
			row.AverageTicket = row.Revenue.Div(decimal.NewFromInt(int64(row.Completed))).Round(2)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	r, _ := decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(d))).Round(4).Float64()
	return r
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("analytics: parse amount %q: %w", raw, err)
	}
	return d, nil
}
