package quotes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/visionpos/vision-pos/internal/catalog"
	"github.com/visionpos/vision-pos/internal/notify"
	"github.com/visionpos/vision-pos/internal/pricing"
	"github.com/visionpos/vision-pos/internal/tenancy"
	"github.com/visionpos/vision-pos/pkg/logging"
)

// Handler serves the quote builder API.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new quotes handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts under /api/quotes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/preview", h.Preview)
	r.Get("/apply-second-pair", h.CheckSecondPair)
	r.Post("/apply-second-pair", h.ApplySecondPair)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{quoteID}", func(q chi.Router) {
		q.Get("/", h.Get)
		q.Put("/", h.SaveDraft)
		q.Post("/status", h.Transition)
		q.Post("/email", h.Email)
	})
	return r
}

// Preview handles POST /api/quotes/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	priced, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to price quote", err)
		return
	}
	writeJSON(w, http.StatusOK, priced)
}

// Create handles POST /api/quotes
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	req.OrgID = orgID
	req.CreatedBy, _ = tenancy.StaffIDFromContext(r.Context())

	q, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to create quote", err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// ListQuotesResponse is the response for listing quotes
type ListQuotesResponse struct {
	Quotes []*Quote `json:"quotes"`
	Count  int      `json:"count"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

// List handles GET /api/quotes
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	filter := ListFilter{
		LocationID: query.Get("locationId"),
		CustomerID: query.Get("customerId"),
		CreatedBy:  query.Get("createdBy"),
	}
	if raw := query.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}
	filter.normalize()

	quotes, err := h.service.List(r.Context(), orgID, filter)
	if err != nil {
		h.fail(w, "failed to list quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, ListQuotesResponse{
		Quotes: quotes,
		Count:  len(quotes),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// Get handles GET /api/quotes/{quoteID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	q, err := h.service.Get(r.Context(), orgID, chi.URLParam(r, "quoteID"))
	if err != nil {
		h.fail(w, "failed to load quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// SaveDraft handles PUT /api/quotes/{quoteID}
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	var req UpdateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	q, err := h.service.SaveDraft(r.Context(), orgID, chi.URLParam(r, "quoteID"), req)
	if err != nil {
		h.fail(w, "failed to save quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Transition handles POST /api/quotes/{quoteID}/status
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor, _ := tenancy.StaffIDFromContext(r.Context())

	q, err := h.service.Transition(r.Context(), orgID, chi.URLParam(r, "quoteID"), target, actor)
	if err != nil {
		h.fail(w, "failed to change quote status", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Email handles POST /api/quotes/{quoteID}/email
func (h *Handler) Email(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.EmailSummary(r.Context(), orgID, chi.URLParam(r, "quoteID"), req.To); err != nil {
		h.fail(w, "failed to email quote", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CheckSecondPair handles GET /api/quotes/apply-second-pair
func (h *Handler) CheckSecondPair(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	query := r.URL.Query()
	eligibility, err := h.service.CheckSecondPair(r.Context(), orgID, query.Get("customerId"), query.Get("locationId"))
	if err != nil {
		h.fail(w, "failed to check second pair eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]pricing.SecondPairEligibility{"eligibility": eligibility})
}

type applySecondPairResponse struct {
	Success      bool                           `json:"success"`
	Message      string                         `json:"message,omitempty"`
	UpdatedQuote *secondPairQuote               `json:"updatedQuote,omitempty"`
	Eligibility  *pricing.SecondPairEligibility `json:"eligibility,omitempty"`
}

type secondPairQuote struct {
	*Quote
	FinalTotal     decimal.Decimal `json:"finalTotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// ApplySecondPair handles POST /api/quotes/apply-second-pair
func (h *Handler) ApplySecondPair(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusBadRequest, applySecondPairResponse{Message: "missing org context"})
		return
	}
	var req ApplySecondPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, applySecondPairResponse{Message: "Invalid request body"})
		return
	}
	// The authenticated staff member is the actor; the body field only
	// fills in when the API runs without staff auth.
	if staffID, ok := tenancy.StaffIDFromContext(r.Context()); ok {
		req.UserID = staffID
	}

	result, err := h.service.ApplySecondPair(r.Context(), orgID, req)
	if err != nil {
		status := statusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to apply second pair", "error", err, "org_id", orgID, "quote_id", req.QuoteID)
			message = "failed to apply second pair discount"
		}
		writeJSON(w, status, applySecondPairResponse{Message: message})
		return
	}
	writeJSON(w, http.StatusOK, applySecondPairResponse{
		Success: true,
		UpdatedQuote: &secondPairQuote{
			Quote:          result.Quote,
			FinalTotal:     result.Quote.Total,
			DiscountAmount: result.Discount.DiscountAmount,
		},
		Eligibility: &result.Eligibility,
	})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
		http.Error(w, msg, status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrQuoteNotFound),
		errors.Is(err, catalog.ErrUnknownLocation):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrSecondPairAlreadyApplied):
		return http.StatusConflict
	case errors.Is(err, ErrNotEligible),
		errors.Is(err, ErrSecondPairWithInsurance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCustomerMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrMissingLocation),
		errors.Is(err, ErrMissingCustomer),
		errors.Is(err, ErrInvalidQuoteID),
		errors.Is(err, notify.ErrInvalidRecipient),
		errors.Is(err, pricing.ErrInvalidTaxRate),
		errors.Is(err, pricing.ErrAmountOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
