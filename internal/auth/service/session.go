package service

import (
	"context"
	"errors"
	"strconv"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
	authrepo "github.com/psytech/auth-backend/internal/auth/repository"
	"github.com/psytech/auth-backend/internal/common/clock"
	commoncrypto "github.com/psytech/auth-backend/internal/common/crypto"
	"github.com/psytech/auth-backend/internal/common/db"
	"github.com/psytech/auth-backend/internal/common/logger"
	prommetrics "github.com/psytech/auth-backend/internal/common/prometheus"
	"github.com/psytech/auth-backend/internal/sms"
	userdomain "github.com/psytech/auth-backend/internal/user/domain"
	userrepo "github.com/psytech/auth-backend/internal/user/repository"
)

// Session is the result of a successful OTP verification or rotation.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         userdomain.User
	IsNewUser    bool
}

// SessionService composes the OTP engine, token service, and user store into
// the send / verify / refresh / logout lifecycle.
type SessionService struct {
	otpEngine   *OTPEngine
	tokens      *TokenService
	users       userrepo.Repository
	refreshRepo authrepo.RefreshTokenRepository
	breaker     db.CircuitBreaker
	gateway     sms.Gateway
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	log         *logger.Logger
}

func NewSessionService(
	otpEngine *OTPEngine,
	tokens *TokenService,
	users userrepo.Repository,
	refreshRepo authrepo.RefreshTokenRepository,
	breaker db.CircuitBreaker,
	gateway sms.Gateway,
	idGenerator commoncrypto.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *SessionService {
	return &SessionService{
		otpEngine:   otpEngine,
		tokens:      tokens,
		users:       users,
		refreshRepo: refreshRepo,
		breaker:     breaker,
		gateway:     gateway,
		idGenerator: idGenerator,
		clock:       clk,
		log:         log,
	}
}

// RequestOTP generates, stores, and dispatches a code. A store outage does
// not fail the request: the code is still sent, with replay protection and
// rate limiting temporarily lost. Availability wins over consistency here.
func (s *SessionService) RequestOTP(ctx context.Context, phoneNumber string) error {
	storeAvailable := s.breaker.Available()
	if storeAvailable && !s.otpEngine.CheckRateLimit(ctx, phoneNumber) {
		prommetrics.OTPRateLimited.Inc()
		s.log.WithFields(ctx, logger.Fields{
			"phone_number": phoneNumber,
			"action":       "otp_rate_limited",
		}).Warn("otp request rate limited")
		return ErrRateLimitExceeded
	}

	code, err := s.otpEngine.Generate()
	if err != nil {
		return err
	}

	if !storeAvailable {
		prommetrics.OTPStoreDegraded.Inc()
		s.log.WithFields(ctx, logger.Fields{
			"phone_number": phoneNumber,
			"action":       "otp_store_degraded",
		}).Warn("credential store unavailable, sending otp without rate limit or replay protection")
	} else if err := s.otpEngine.Store(ctx, phoneNumber, code); err != nil {
		prommetrics.OTPStoreDegraded.Inc()
		s.log.WithFields(ctx, logger.Fields{
			"phone_number": phoneNumber,
			"action":       "otp_store_degraded",
		}).Errorf("otp not persisted, proceeding degraded: %v", err)
	}

	if err := s.gateway.Send(ctx, phoneNumber, code); err != nil {
		prommetrics.SMSDeliveries.WithLabelValues("error").Inc()
		s.log.WithFields(ctx, logger.Fields{
			"phone_number": phoneNumber,
			"action":       "sms_delivery_failed",
		}).Errorf("sms delivery failed: %v", err)
	} else {
		prommetrics.SMSDeliveries.WithLabelValues("ok").Inc()
	}

	prommetrics.OTPSent.Inc()
	return nil
}

// VerifyOTPAndIssueSession consumes the code, resolves or creates the user,
// and mints the token pair. Refresh token persistence is best-effort: its
// failure degrades later revocation, not this login.
func (s *SessionService) VerifyOTPAndIssueSession(ctx context.Context, phoneNumber, code string) (Session, error) {
	valid, err := s.otpEngine.Verify(ctx, phoneNumber, code)
	if err != nil {
		return Session{}, err
	}
	if !valid {
		return Session{}, ErrInvalidOTP
	}

	user, isNew, err := s.resolveUser(ctx, phoneNumber)
	if err != nil {
		return Session{}, err
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	session.IsNewUser = isNew

	prommetrics.SessionsIssued.WithLabelValues(strconv.FormatBool(isNew)).Inc()
	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "session_issued",
	}).Infof("session issued (new_user=%v)", isNew)
	return session, nil
}

func (s *SessionService) resolveUser(ctx context.Context, phoneNumber string) (userdomain.User, bool, error) {
	var user userdomain.User
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByPhone(ctx, phoneNumber)
		return err
	})
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, userrepo.ErrUserNotFound) {
		return userdomain.User{}, false, ErrServiceUnavailable.WithCause(err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return userdomain.User{}, false, err
	}

	user = userdomain.NewUser(userdomain.UserID(id), phoneNumber, s.clock.Now())
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if err != nil {
		// Lost a concurrent-create race: the other caller's row wins.
		if errors.Is(err, userrepo.ErrPhoneAlreadyExists) {
			var existing userdomain.User
			findErr := s.breaker.Call(ctx, func(ctx context.Context) error {
				var err error
				existing, err = s.users.FindByPhone(ctx, phoneNumber)
				return err
			})
			if findErr != nil {
				return userdomain.User{}, false, ErrServiceUnavailable.WithCause(findErr)
			}
			return existing, false, nil
		}
		return userdomain.User{}, false, ErrServiceUnavailable.WithCause(err)
	}

	return user, true, nil
}

func (s *SessionService) issueSession(ctx context.Context, user userdomain.User) (Session, error) {
	accessToken, err := s.tokens.IssueAccessToken(string(user.ID), user.PhoneNumber)
	if err != nil {
		return Session{}, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(string(user.ID), user.PhoneNumber)
	if err != nil {
		return Session{}, err
	}

	s.persistRefreshToken(ctx, user, refreshToken)

	return Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokens.AccessTokenTTLSeconds(),
		User:         user,
	}, nil
}

func (s *SessionService) persistRefreshToken(ctx context.Context, user userdomain.User, rawToken string) {
	id, err := s.idGenerator.NewID()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "refresh_token_persist_failed",
		}).Warnf("refresh token id generation failed: %v", err)
		return
	}

	record := authdomain.RefreshToken{
		ID:          id,
		TokenHash:   HashToken(rawToken),
		UserID:      string(user.ID),
		PhoneNumber: user.PhoneNumber,
		ExpiresAt:   s.tokens.RefreshExpiry(),
		CreatedAt:   s.clock.Now(),
	}

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.refreshRepo.Create(ctx, record)
	})
	if err != nil {
		// Login still succeeds; the cost is that this token cannot be
		// revoked or rotated until it is re-issued.
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "refresh_token_persist_failed",
		}).Warnf("refresh token not persisted: %v", err)
	}
}

// RotateRefreshToken redeems a refresh token for a new pair. Rotation is
// destructive: of N concurrent calls with the same token, exactly one wins.
func (s *SessionService) RotateRefreshToken(ctx context.Context, rawToken string) (Session, error) {
	claims, err := s.tokens.VerifyRefreshToken(rawToken)
	if err != nil {
		return Session{}, ErrInvalidRefreshToken
	}

	hash := HashToken(rawToken)
	now := s.clock.Now()

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		_, err := s.refreshRepo.FindActiveByHash(ctx, hash, now)
		return err
	})
	if err != nil {
		if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, ErrServiceUnavailable.WithCause(err)
	}

	var won bool
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		won, err = s.refreshRepo.Revoke(ctx, hash)
		return err
	})
	if err != nil {
		return Session{}, ErrServiceUnavailable.WithCause(err)
	}
	if !won {
		return Session{}, ErrInvalidRefreshToken
	}

	var user userdomain.User
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userdomain.UserID(claims.UserID))
		return err
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, ErrServiceUnavailable.WithCause(err)
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}

	prommetrics.RefreshTokensRotated.Inc()
	return session, nil
}

// Logout revokes the caller's refresh tokens. It is idempotent: missing or
// invalid tokens still yield success. A valid access token revokes every
// active token for the user (sessions on other devices included, since only
// one active token per user is retained anyway).
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if claims, err := s.tokens.VerifyAccessToken(accessToken); err == nil {
			return s.revokeAll(ctx, claims.UserID)
		}
	}

	if refreshToken == "" {
		return nil
	}

	if claims, err := s.tokens.VerifyRefreshToken(refreshToken); err == nil {
		return s.revokeAll(ctx, claims.UserID)
	}

	// Undecodable refresh token: revoke just that record if it exists.
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		revoked, err := s.refreshRepo.Revoke(ctx, HashToken(refreshToken))
		if err == nil && revoked {
			prommetrics.RefreshTokensRevoked.Inc()
		}
		return err
	})
	if err != nil {
		return ErrServiceUnavailable.WithCause(err)
	}
	return nil
}

func (s *SessionService) revokeAll(ctx context.Context, userID string) error {
	var revoked int64
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		revoked, err = s.refreshRepo.RevokeAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return ErrServiceUnavailable.WithCause(err)
	}

	prommetrics.RefreshTokensRevoked.Add(float64(revoked))
	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"action":  "logout",
	}).Infof("revoked %d refresh tokens", revoked)
	return nil
}

// Authenticate resolves the user behind an Authorization header value. Every
// failure collapses to ErrUnauthorized so callers cannot probe the cause.
func (s *SessionService) Authenticate(ctx context.Context, authorizationHeader string) (userdomain.User, error) {
	token, err := ExtractBearerToken(authorizationHeader)
	if err != nil {
		return userdomain.User{}, ErrUnauthorized
	}

	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return userdomain.User{}, ErrUnauthorized
	}

	var user userdomain.User
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userdomain.UserID(claims.UserID))
		return err
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return userdomain.User{}, ErrUnauthorized
		}
		return userdomain.User{}, ErrServiceUnavailable.WithCause(err)
	}

	return user, nil
}
