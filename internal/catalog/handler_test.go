package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerGet(t *testing.T) {
	h := NewHandler(Default(), nil)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/catalog?locationId=loc-main", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Version    string          `json:"version"`
		LocationID string          `json:"locationId"`
		TaxRate    decimal.Decimal `json:"taxRate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026.10", body.Version)
	assert.Equal(t, "loc-main", body.LocationID)
	assert.True(t, body.TaxRate.Equal(decimal.RequireFromString("0.08")))
}

func TestHandlerGetErrors(t *testing.T) {
	h := NewHandler(Default().Strict(), nil)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/catalog?locationId=loc-nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
