package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/psytech/auth-backend/internal/common/constants"
	commonerrors "github.com/psytech/auth-backend/internal/common/errors"
)

type StorageBackend string

const (
	StoragePostgres StorageBackend = "postgres"
	StorageMemory   StorageBackend = "memory"
)

type AuthConfig struct {
	HTTPPort    string
	DatabaseURL string
	Storage     StorageBackend

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	OTPExpiry     time.Duration
	OTPRateWindow time.Duration
	OTPRateMax    int
	OTPDevCode    string

	SMS SMSConfig

	RequestTimeout time.Duration

	CircuitBreakerThreshold int32
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerReset     time.Duration
}

type SMSConfig struct {
	AuthKey    string
	SenderID   string
	TemplateID string
}

func LoadAuthConfig() (AuthConfig, error) {
	accessSecret, err := mustEnv("JWT_ACCESS_SECRET")
	if err != nil {
		return AuthConfig{}, err
	}

	refreshSecret, err := mustEnv("JWT_REFRESH_SECRET")
	if err != nil {
		return AuthConfig{}, err
	}

	if err := validateJWTSecret(accessSecret); err != nil {
		return AuthConfig{}, err
	}
	if err := validateJWTSecret(refreshSecret); err != nil {
		return AuthConfig{}, err
	}
	if accessSecret == refreshSecret {
		return AuthConfig{}, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	storage := StorageBackend(getEnv("STORAGE", string(StoragePostgres)))

	var databaseURL string
	if storage == StoragePostgres {
		databaseURL, err = mustEnv("DATABASE_URL")
		if err != nil {
			return AuthConfig{}, err
		}
	}

	return AuthConfig{
		HTTPPort:    getEnv("AUTH_HTTP_PORT", constants.DefaultAuthHTTPPort),
		DatabaseURL: databaseURL,
		Storage:     storage,

		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenTTL:     getDurationEnv("ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL),
		RefreshTokenTTL:    getDurationEnv("REFRESH_TOKEN_TTL", constants.DefaultRefreshTokenTTL),

		OTPExpiry:     getDurationEnv("OTP_EXPIRY", constants.DefaultOTPExpiry),
		OTPRateWindow: getDurationEnv("OTP_RATE_WINDOW", constants.DefaultOTPRateWindow),
		OTPRateMax:    getIntEnv("OTP_RATE_MAX", constants.DefaultOTPRateMax),
		OTPDevCode:    getEnv("OTP_DEV_CODE", ""),

		SMS: SMSConfig{
			AuthKey:    getEnv("MSG91_AUTH_KEY", ""),
			SenderID:   getEnv("MSG91_SENDER_ID", "PSYTCH"),
			TemplateID: getEnv("MSG91_TEMPLATE_ID", ""),
		},

		RequestTimeout: getDurationEnv("AUTH_REQUEST_TIMEOUT", constants.DefaultAuthRequestTimeout),

		CircuitBreakerThreshold: int32(getIntEnv("DB_CB_THRESHOLD", constants.DefaultCircuitBreakerThreshold)),
		CircuitBreakerTimeout:   getDurationEnv("DB_CB_TIMEOUT", constants.DefaultCircuitBreakerTimeout),
		CircuitBreakerReset:     getDurationEnv("DB_CB_RESET", constants.DefaultCircuitBreakerReset),
	}, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("%s", key))
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
