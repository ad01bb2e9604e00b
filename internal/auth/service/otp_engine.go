package service

import (
	"context"
	"time"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
	authrepo "github.com/psytech/auth-backend/internal/auth/repository"
	"github.com/psytech/auth-backend/internal/common/clock"
	commoncrypto "github.com/psytech/auth-backend/internal/common/crypto"
	"github.com/psytech/auth-backend/internal/common/db"
	"github.com/psytech/auth-backend/internal/common/logger"
	prommetrics "github.com/psytech/auth-backend/internal/common/prometheus"
)

// OTPEngine generates, stores, rate-limits, and verifies one-time codes.
type OTPEngine struct {
	repo        authrepo.OTPRepository
	breaker     db.CircuitBreaker
	codeGen     commoncrypto.CodeGenerator
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	expiry      time.Duration
	rateWindow  time.Duration
	rateMax     int
	log         *logger.Logger
}

func NewOTPEngine(
	repo authrepo.OTPRepository,
	breaker db.CircuitBreaker,
	codeGen commoncrypto.CodeGenerator,
	idGenerator commoncrypto.IDGenerator,
	expiry time.Duration,
	rateWindow time.Duration,
	rateMax int,
	clk clock.Clock,
	log *logger.Logger,
) *OTPEngine {
	return &OTPEngine{
		repo:        repo,
		breaker:     breaker,
		codeGen:     codeGen,
		idGenerator: idGenerator,
		clock:       clk,
		expiry:      expiry,
		rateWindow:  rateWindow,
		rateMax:     rateMax,
		log:         log,
	}
}

func (e *OTPEngine) Generate() (string, error) {
	return e.codeGen.NewCode()
}

// CheckRateLimit reports whether another OTP may be issued for the phone
// number. It fails open when the store is unreachable so an outage never
// blocks legitimate sign-ins, but the degraded decision is logged.
func (e *OTPEngine) CheckRateLimit(ctx context.Context, phoneNumber string) bool {
	since := e.clock.Now().Add(-e.rateWindow)

	var count int
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		count, err = e.repo.CountSince(ctx, phoneNumber, since)
		return err
	})
	if err != nil {
		e.log.WithFields(ctx, logger.Fields{
			"phone_number": phoneNumber,
			"action":       "otp_rate_limit_degraded",
		}).Warnf("rate limit check failed open: %v", err)
		return true
	}

	return count < e.rateMax
}

// Store persists the code with its expiry, superseding any earlier codes for
// the same phone number.
func (e *OTPEngine) Store(ctx context.Context, phoneNumber, code string) error {
	id, err := e.idGenerator.NewID()
	if err != nil {
		return err
	}

	now := e.clock.Now()
	otp := authdomain.OTP{
		ID:          id,
		PhoneNumber: phoneNumber,
		Code:        code,
		ExpiresAt:   now.Add(e.expiry),
		CreatedAt:   now,
	}

	return e.breaker.Call(ctx, func(ctx context.Context) error {
		return e.repo.Create(ctx, otp)
	})
}

// Verify consumes a matching unexpired code. Store failures surface as
// ErrServiceUnavailable rather than a false negative, so the caller can tell
// "wrong code" from "cannot know".
func (e *OTPEngine) Verify(ctx context.Context, phoneNumber, code string) (bool, error) {
	var consumed bool
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		consumed, err = e.repo.Consume(ctx, phoneNumber, code, e.clock.Now())
		return err
	})
	if err != nil {
		e.log.WithFields(ctx, logger.Fields{
			"phone_number": phoneNumber,
			"action":       "otp_verify_store_failed",
		}).Errorf("otp verification store error: %v", err)
		return false, ErrServiceUnavailable.WithCause(err)
	}

	if consumed {
		prommetrics.OTPVerified.Inc()
	} else {
		prommetrics.OTPRejected.Inc()
	}
	return consumed, nil
}
