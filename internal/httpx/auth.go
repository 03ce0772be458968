package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-storefront.git/internal/identity"
)

func authenticate(v *identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := v.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "not authenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), u)))
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := identity.FromContext(r.Context()); !ok || !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	u, _ := identity.FromContext(r.Context())
	return u.ID
}
