package router

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/visionpos/vision-pos/internal/tenancy"
)

const (
	orgHeader   = "X-Org-Id"
	maxOrgIDLen = 64
)

// requireOrgID scopes every API request to the practice named in X-Org-Id.
func requireOrgID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(orgHeader))
		if orgID == "" {
			http.Error(w, "missing X-Org-Id", http.StatusBadRequest)
			return
		}
		if !validOrgID(orgID) {
			http.Error(w, "invalid X-Org-Id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithOrgID(r.Context(), orgID)))
	})
}

// validOrgID keeps org ids usable as log fields and outbox keys.
func validOrgID(orgID string) bool {
	if len(orgID) > maxOrgIDLen {
		return false
	}
	for _, r := range orgID {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
