package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/identity"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

// Principal verifies the request's bearer token and stores the verified
// principal on the context. Requests without a valid token get 401.
func Principal(verifier identity.Verifier, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteUnauthorized(w, "missing bearer token")
				return
			}

			p, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.WithError(err).Debug("token verification failed")
				httputil.WriteUnauthorized(w, "invalid token")
				return
			}

			ctx := contextkeys.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
