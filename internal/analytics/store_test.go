package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionpos/vision-pos/internal/tenancy"
	"github.com/visionpos/vision-pos/pkg/logging"
)

var (
	from = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
)

func TestCaptureRate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"created", "presented", "signed", "completed", "revenue"}).
		AddRow(40, 30, 20, 15, "4312.50")
	mock.ExpectQuery("FROM quotes").
		WithArgs("org-1", "loc-downtown", from, to).
		WillReturnRows(rows)

	got, err := NewStore(db).CaptureRate(context.Background(), "org-1", "loc-downtown", from, to)
	require.NoError(t, err)

	assert.Equal(t, Funnel{Created: 40, Presented: 30, Signed: 20, Completed: 15}, got.Funnel)
	assert.Equal(t, 0.75, got.PresentationRate)
	assert.Equal(t, 0.5, got.CloseRate)
	assert.Equal(t, 0.375, got.CaptureRate)
	assert.Equal(t, "4312.50", got.Revenue.StringFixed(2))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaptureRateEmptyPeriod(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM quotes").
		WillReturnRows(sqlmock.NewRows([]string{"created", "presented", "signed", "completed", "revenue"}).AddRow(0, 0, 0, 0, "0"))

	got, err := NewStore(db).CaptureRate(context.Background(), "org-1", "", from, to)
	require.NoError(t, err)
	assert.Zero(t, got.CaptureRate)
	assert.True(t, got.Revenue.IsZero())

	_, err = NewStore(db).CaptureRate(context.Background(), "org-1", "", to, from)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestStaffLeaderboardBindsStaffFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"created_by", "quotes", "completed", "second_pairs", "revenue"}).
		AddRow("staff-1", 10, 4, 1, "1000.00").
		AddRow("staff-2", 8, 0, 0, "0")
	// A hostile ID must travel as data inside the array parameter.
	mock.ExpectQuery("ANY\\(\\$4::text\\[\\]\\)").
		WithArgs("org-1", from, to, pq.Array([]string{"staff-1", "x' OR '1'='1"}), 5).
		WillReturnRows(rows)

	got, err := NewStore(db).StaffLeaderboard(context.Background(), "org-1", from, to, []string{"staff-1", " ", "x' OR '1'='1"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "staff-1", got[0].StaffID)
	assert.Equal(t, 0.4, got[0].CaptureRate)
	assert.Equal(t, "250.00", got[0].AverageTicket.StringFixed(2))
	assert.Equal(t, 1, got[0].SecondPairs)
	assert.True(t, got[1].AverageTicket.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffLeaderboardDefaultsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM quotes").
		WithArgs("org-1", from, to, pq.Array([]string{}), 10).
		WillReturnRows(sqlmock.NewRows([]string{"created_by", "quotes", "completed", "second_pairs", "revenue"}))

	got, err := NewStore(db).StaffLeaderboard(context.Background(), "org-1", from, to, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerCaptureRate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM quotes").
		WithArgs("org-1", "", from, time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"created", "presented", "signed", "completed", "revenue"}).AddRow(4, 2, 1, 1, "99.00"))

	handler := NewHandler(NewStore(db), logging.Default())
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/capture-rate?from=2026-09-01&to=2026-09-29", nil)
	req = req.WithContext(tenancy.WithOrgID(req.Context(), "org-1"))
	rec := httptest.NewRecorder()
	handler.CaptureRate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CaptureRate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.Funnel.Created)
	assert.Equal(t, 0.25, resp.CaptureRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerRejectsBadDates(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(NewStore(db), logging.Default())
	for _, path := range []string{
		"/api/analytics/staff-performance?from=09-01-2026",
		"/api/analytics/staff-performance?from=2026-10-02&to=2026-09-01",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(tenancy.WithOrgID(req.Context(), "org-1"))
		rec := httptest.NewRecorder()
		handler.StaffPerformance(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}
