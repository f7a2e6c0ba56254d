package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/api/responses"
	pkgerrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
)

const userIDHeader = "X-USER-ID"

// Identity resolves the caller from the X-USER-ID header and seeds the
// request context. Upstream infrastructure is trusted to have authenticated
// the caller; this layer only requires a parseable identifier.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity"))
				return
			}

			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity"))
				return
			}

			ctx := WithUserID(r.Context(), userID.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
