package http

import (
	"context"
	"net/http"

	"github.com/psytech/auth-backend/internal/auth/service"
	commonhttp "github.com/psytech/auth-backend/internal/common/http"
	"github.com/psytech/auth-backend/internal/common/logger"
	userdomain "github.com/psytech/auth-backend/internal/user/domain"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// RequireAuth verifies the bearer access token and loads the user before the
// wrapped handler runs. Any failure is a 401; the cause is not exposed.
func RequireAuth(sessions *service.SessionService, log *logger.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				commonhttp.WriteErrorCode(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "authorization header required")
				return
			}

			user, err := sessions.Authenticate(r.Context(), header)
			if err != nil {
				commonhttp.HandleError(w, r, err, log)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext returns the user stashed by RequireAuth.
func UserFromContext(ctx context.Context) (userdomain.User, bool) {
	user, ok := ctx.Value(userContextKey).(userdomain.User)
	return user, ok
}
