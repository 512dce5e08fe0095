package middleware

import (
	"net/http"
	"strconv"

	"github.com/rpattn/issueimport/internal/auth"
)

// UserHeader names the header carrying the acting user's id. The service
// sits behind the tracker's frontend, which authenticates and forwards the
// identity.
const UserHeader = "X-User-Id"

// IdentityMiddleware lifts the forwarded user id into the request context.
// Requests without a parseable id pass through unauthenticated; handlers
// that need an acting user reject them.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(UserHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(auth.ContextWithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
