package service

import (
	"net/http"

	commonerrors "github.com/psytech/auth-backend/internal/common/errors"
)

var (
	ErrValidation = commonerrors.NewDomainError(
		"VALIDATION_ERROR",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"validation failed",
	)

	ErrRateLimitExceeded = commonerrors.NewDomainError(
		"RATE_LIMIT_EXCEEDED",
		commonerrors.CategoryRateLimit,
		http.StatusTooManyRequests,
		"too many OTP requests, please try again later",
	)

	// ErrInvalidOTP deliberately does not distinguish wrong, expired, and
	// already-used codes. Served as a 400: the caller is mid-login and holds
	// no credentials yet.
	ErrInvalidOTP = commonerrors.NewDomainError(
		"INVALID_OTP",
		commonerrors.CategoryCredential,
		http.StatusBadRequest,
		"invalid or expired OTP",
	)

	ErrInvalidRefreshToken = commonerrors.NewDomainError(
		"INVALID_REFRESH_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid refresh token",
	)

	ErrUnauthorized = commonerrors.NewDomainError(
		"UNAUTHORIZED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"unauthorized",
	)

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)
)
