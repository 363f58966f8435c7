package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/visionpos/vision-pos/pkg/logging"
)

// Handler exposes the priced catalog to the quote builder UI.
type Handler struct {
	source Source
	logger *logging.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(source Source, logger *logging.Logger) *Handler {
	if source == nil {
		panic("catalog: source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{source: source, logger: logger}
}

// Get handles GET /api/catalog?locationId=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	locationID := strings.TrimSpace(r.URL.Query().Get("locationId"))
	if locationID == "" {
		http.Error(w, "locationId is required", http.StatusBadRequest)
		return
	}

	cat, err := h.source.Catalog(r.Context(), locationID)
	if err != nil {
		if errors.Is(err, ErrUnknownLocation) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load catalog", "error", err, "location_id", locationID)
		http.Error(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "private, max-age=60")
	json.NewEncoder(w).Encode(cat)
}
