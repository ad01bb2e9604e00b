package constants

import "time"

const (
	OTPMinValue        = 100000
	OTPMaxValue        = 999999
	JWTSecretMinLength = 32

	DefaultMaxRequestSize = 1 << 20

	DefaultOTPExpiry     = 5 * time.Minute
	DefaultOTPRateWindow = 60 * time.Minute
	DefaultOTPRateMax    = 3

	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	DBPoolMaxOpenConns    = 25
	DBPoolMinOpenConns    = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 10 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	CleanupInterval = time.Hour

	SMSGatewayTimeout = 10 * time.Second

	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerTimeout   = 10 * time.Second
	DefaultCircuitBreakerReset     = 30 * time.Second

	DefaultAuthRequestTimeout = 5 * time.Second
	DefaultAuthHTTPPort       = "8080"

	RateLimitCleanupInterval = 5 * time.Minute

	RateLimitSendOTPRequestsPerSecond   = 1.0
	RateLimitSendOTPBurst               = 3
	RateLimitVerifyOTPRequestsPerSecond = 2.0
	RateLimitVerifyOTPBurst             = 5
	RateLimitRefreshRequestsPerSecond   = 2.0
	RateLimitRefreshBurst               = 5
	RateLimitLogoutRequestsPerSecond    = 2.0
	RateLimitLogoutBurst                = 5
	RateLimitGeneralRequestsPerSecond   = 10.0
	RateLimitGeneralBurst               = 20

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
