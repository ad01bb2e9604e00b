package db

import (
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/psytech/auth-backend/internal/common/constants"
	prommetrics "github.com/psytech/auth-backend/internal/common/prometheus"
)

func StartPoolMetrics(pool *pgxpool.Pool, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DBPoolMetricsInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			stats := pool.Stat()

			prommetrics.DBPoolAcquiredConnections.Set(float64(stats.AcquiredConns()))
			prommetrics.DBPoolIdleConnections.Set(float64(stats.IdleConns()))
			prommetrics.DBPoolMaxConnections.Set(float64(stats.MaxConns()))
			prommetrics.DBPoolTotalConnections.Set(float64(stats.TotalConns()))
		}
	}()
}
