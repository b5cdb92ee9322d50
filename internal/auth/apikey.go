package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/supportflow/backend/internal/tenant"
)

type APIKeyMiddleware struct {
	headerName    string
	tenantService *tenant.Service
}

func NewAPIKeyMiddleware(headerName string, ts *tenant.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		headerName:    headerName,
		tenantService: ts,
	}
}

// Authenticate requires a valid API key, passed either as a bearer token or
// in the configured header. The resolved tenant is attached to the request
// context; keys are compared by sha256 hash so plaintext keys are never
// stored.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractBearerToken(r)
		if key == "" {
			key = r.Header.Get(m.headerName)
		}
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		t, err := m.tenantService.GetByAPIKeyHash(r.Context(), HashAPIKey(key))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
