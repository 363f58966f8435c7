package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/visionpos/vision-pos/internal/tenancy"
	"github.com/visionpos/vision-pos/pkg/logging"
)

const dateLayout = "2006-01-02"

// Handler serves the analytics dashboard endpoints.
type Handler struct {
	store  *Store
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// CaptureRate handles GET /api/analytics/capture-rate?locationId=&from=&to=
func (h *Handler) CaptureRate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	from, to, err := h.period(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.store.CaptureRate(r.Context(), orgID, r.URL.Query().Get("locationId"), from, to)
	if err != nil {
		h.fail(w, "failed to load capture rate", orgID, err)
		return
	}
	writeJSON(w, result)
}

// StaffPerformance handles GET /api/analytics/staff-performance?from=&to=&staffIds=a,b&limit=
func (h *Handler) StaffPerformance(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	from, to, err := h.period(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := r.URL.Query()
	var staffIDs []string
	if raw := query.Get("staffIds"); raw != "" {
		staffIDs = strings.Split(raw, ",")
	}
	limit, _ := strconv.Atoi(query.Get("limit"))

	rows, err := h.store.StaffLeaderboard(r.Context(), orgID, from, to, staffIDs, limit)
	if err != nil {
		h.fail(w, "failed to load staff performance", orgID, err)
		return
	}
	writeJSON(w, map[string]any{
		"from":  from,
		"to":    to,
		"staff": rows,
	})
}

// period reads from/to dates. The default is the 30 days ending today; to is
// inclusive of its whole day.
func (h *Handler) period(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	today := h.now().UTC().Truncate(24 * time.Hour)
	to := today.Add(24 * time.Hour)
	from := today.AddDate(0, 0, -29)

	if raw := query.Get("to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		to = t.Add(24 * time.Hour)
	}
	if raw := query.Get("from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
		from = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg, orgID string, err error) {
	if errors.Is(err, ErrInvalidRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error(msg, "error", err, "org_id", orgID)
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
