package http

import (
	"net/http"

	"github.com/psytech/auth-backend/internal/common/logger"
)

func HealthHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorCode(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
			return
		}
		if log.ShouldLog(logger.DEBUG) {
			log.Debugf("health check request")
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
