package cleanup

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	authrepo "github.com/psytech/auth-backend/internal/auth/repository"
	"github.com/psytech/auth-backend/internal/common/clock"
	"github.com/psytech/auth-backend/internal/common/constants"
	"github.com/psytech/auth-backend/internal/common/db"
	"github.com/psytech/auth-backend/internal/common/logger"
	prommetrics "github.com/psytech/auth-backend/internal/common/prometheus"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// StartCleanup periodically deletes expired records. Expiry is also enforced
// on every read, so a failed sweep only delays space reclamation; transient
// store failures are retried with backoff.
func StartCleanup(ctx context.Context, repo ExpiredDeleter, clk clock.Clock, log *logger.Logger, name string, deletedCounter prometheus.Counter) {
	ticker := time.NewTicker(constants.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var deleted int64
			err := db.RetryWithBackoff(ctx, log, db.DefaultRetryConfig, func() error {
				var err error
				deleted, err = repo.DeleteExpired(ctx, clk.Now())
				return err
			})
			if err != nil {
				log.Errorf("%s cleanup failed: %v", name, err)
				continue
			}
			if deleted > 0 {
				deletedCounter.Add(float64(deleted))
				log.Infof("%s cleanup: deleted %d expired records", name, deleted)
			}
		}
	}
}

func StartOTPCleanup(ctx context.Context, repo authrepo.OTPRepository, clk clock.Clock, log *logger.Logger) {
	StartCleanup(ctx, repo, clk, log, "otp", prommetrics.OTPCleanupDeleted)
}

func StartRefreshTokenCleanup(ctx context.Context, repo authrepo.RefreshTokenRepository, clk clock.Clock, log *logger.Logger) {
	StartCleanup(ctx, repo, clk, log, "refresh token", prommetrics.RefreshTokensCleanupDeleted)
}
