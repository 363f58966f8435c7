package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionpos/vision-pos/internal/events"
	"github.com/visionpos/vision-pos/internal/tenancy"
)

func newTestHandler(t *testing.T) (http.Handler, *Service, *InMemoryRepository, *testClock) {
	t.Helper()
	svc, repo, clock := newTestService(t)
	routes := NewHandler(svc, nil).Routes()
	withTenant := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if org := r.Header.Get("X-Org-Id"); org != "" {
			ctx = tenancy.WithOrgID(ctx, org)
		}
		ctx = tenancy.WithStaffID(ctx, "staff-1")
		routes.ServeHTTP(w, r.WithContext(ctx))
	})
	return withTenant, svc, repo, clock
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Org-Id", testOrg)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndGet(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/", map[string]any{
		"customerId": testCustomer,
		"locationId": testLocation,
		"selections": map[string]any{"exam": map[string]any{"serviceIds": []string{"routine-exam"}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "draft", created["status"])
	assert.Equal(t, "staff-1", created["createdBy"])
	assert.EqualValues(t, 162, created["total"])

	rec = doJSON(t, h, http.MethodGet, "/"+created["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateRequiresOrg(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"customerId":"c","locationId":"l"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPreviewCoercesMalformedNumbers(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/preview", map[string]any{
		"locationId":     testLocation,
		"manualDiscount": "abc",
		"selections": map[string]any{"contacts": map[string]any{
			"brandId":       "acuvue-oasys",
			"numberOfBoxes": "4",
			"pricePerBox":   "oops",
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var priced struct {
		Totals struct {
			Subtotal float64 `json:"subtotal"`
			Discount float64 `json:"discount"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &priced))
	assert.Equal(t, 152.0, priced.Totals.Subtotal)
	assert.Zero(t, priced.Totals.Discount)
}

func TestHandlerSaveDraftConflict(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	q, err := svc.Create(context.Background(), examRequest())
	require.NoError(t, err)

	body := map[string]any{
		"expectedVersion": 1,
		"selections":      map[string]any{"exam": map[string]any{"serviceIds": []string{"optomap"}}},
	}
	rec := doJSON(t, h, http.MethodPut, "/"+q.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPut, "/"+q.ID, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerTransition(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	q, err := svc.Create(context.Background(), examRequest())
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/"+q.ID+"/status", map[string]string{"status": "signed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/"+q.ID+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/"+q.ID+"/status", map[string]string{"status": "presented"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"presented"`)
}

func TestHandlerList(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), examRequest())
		require.NoError(t, err)
	}

	rec := doJSON(t, h, http.MethodGet, "/?limit=2&status=draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListQuotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.Limit)

	rec = doJSON(t, h, http.MethodGet, "/?status=shipped", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCheckSecondPair(t *testing.T) {
	h, _, repo, clock := newTestHandler(t)
	seedCompletedPurchase(t, repo, "first-pair", clock.now.Add(-time.Hour))

	rec := doJSON(t, h, http.MethodGet, "/apply-second-pair?customerId="+testCustomer+"&locationId="+testLocation, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Eligibility struct {
			IsEligible        bool   `json:"isEligible"`
			DiscountType      string `json:"discountType"`
			DiscountPercent   int    `json:"discountPercent"`
			DaysAfterOriginal *int   `json:"daysAfterOriginal"`
			OriginalQuoteID   string `json:"originalQuoteId"`
		} `json:"eligibility"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Eligibility.IsEligible)
	assert.Equal(t, "SAME_DAY_50", resp.Eligibility.DiscountType)
	assert.Equal(t, 50, resp.Eligibility.DiscountPercent)
	require.NotNil(t, resp.Eligibility.DaysAfterOriginal)
	assert.Zero(t, *resp.Eligibility.DaysAfterOriginal)
	assert.Equal(t, "first-pair", resp.Eligibility.OriginalQuoteID)

	rec = doJSON(t, h, http.MethodGet, "/apply-second-pair?locationId="+testLocation, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerApplySecondPair(t *testing.T) {
	h, svc, repo, clock := newTestHandler(t)
	seedCompletedPurchase(t, repo, "first-pair", clock.now.Add(-time.Hour))
	q, err := svc.Create(context.Background(), glassesRequest())
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/apply-second-pair", ApplySecondPairRequest{
		QuoteID:    q.ID,
		CustomerID: testCustomer,
		LocationID: testLocation,
		UserID:     "staff-9",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success      bool `json:"success"`
		UpdatedQuote struct {
			ID             string  `json:"id"`
			IsSecondPair   bool    `json:"isSecondPair"`
			SecondPairType string  `json:"secondPairType"`
			FinalTotal     float64 `json:"finalTotal"`
			DiscountAmount float64 `json:"discountAmount"`
		} `json:"updatedQuote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, q.ID, resp.UpdatedQuote.ID)
	assert.True(t, resp.UpdatedQuote.IsSecondPair)
	assert.Equal(t, "SAME_DAY_50", resp.UpdatedQuote.SecondPairType)
	assert.Equal(t, 106.72, resp.UpdatedQuote.FinalTotal)
	assert.Equal(t, 92.0, resp.UpdatedQuote.DiscountAmount)

	var appliedBy string
	for _, evt := range repo.Events() {
		if evt.Type == events.TypeQuoteSecondPairApplied {
			appliedBy = evt.Payload.(events.QuoteSecondPairAppliedV1).AppliedBy
		}
	}
	assert.Equal(t, "staff-1", appliedBy, "authenticated staff id wins over the body userId")

	rec = doJSON(t, h, http.MethodPost, "/apply-second-pair", ApplySecondPairRequest{
		QuoteID:    q.ID,
		CustomerID: testCustomer,
		LocationID: testLocation,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var failure struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	assert.False(t, failure.Success)
	assert.Equal(t, ErrSecondPairAlreadyApplied.Error(), failure.Message)
}

func TestHandlerApplySecondPairNotEligible(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	q, err := svc.Create(context.Background(), glassesRequest())
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/apply-second-pair", ApplySecondPairRequest{
		QuoteID:    q.ID,
		CustomerID: testCustomer,
		LocationID: testLocation,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandlerEmail(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	mailer := &fakeMailer{}
	svc.WithMailer(mailer)
	q, err := svc.Create(context.Background(), examRequest())
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/"+q.ID+"/email", EmailRequest{To: "patient@example.com"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"patient@example.com"}, mailer.to)
}

func TestHandlerPreviewRejectsUnstorableTotals(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/preview", map[string]any{
		"locationId": testLocation,
		"selections": map[string]any{"contacts": map[string]any{
			"numberOfBoxes": "9999999999",
			"pricePerBox":   "9999",
		}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/preview", map[string]any{
		"locationId": testLocation,
		"selections": map[string]any{"contacts": map[string]any{
			"numberOfBoxes": "1e3000000",
			"pricePerBox":   "40",
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Less(t, rec.Body.Len(), 64*1024)
}
