package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
	authrepo "github.com/psytech/auth-backend/internal/auth/repository"
	"github.com/psytech/auth-backend/internal/auth/service"
	"github.com/psytech/auth-backend/internal/common/clock"
	commoncrypto "github.com/psytech/auth-backend/internal/common/crypto"
	userrepo "github.com/psytech/auth-backend/internal/user/repository"
)

type sessionFixture struct {
	sessions    *service.SessionService
	users       *userrepo.MemoryRepository
	otps        authrepo.OTPRepository
	refresh     authrepo.RefreshTokenRepository
	gateway     *mockGateway
	clock       *clock.MockClock
	breaker     *passBreaker
	otpsBreaker *passBreaker
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	return newSessionFixtureWithOTPRepo(t, authrepo.NewMemoryOTPRepository())
}

func newSessionFixtureWithOTPRepo(t *testing.T, otps authrepo.OTPRepository) *sessionFixture {
	t.Helper()

	mockClock := clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	log := testLogger(t)
	users := userrepo.NewMemoryRepository()
	refresh := authrepo.NewMemoryRefreshTokenRepository()
	gateway := &mockGateway{}
	breaker := &passBreaker{}
	otpsBreaker := &passBreaker{}
	idGen := commoncrypto.NewUUIDGenerator()

	engine := service.NewOTPEngine(
		otps,
		otpsBreaker,
		commoncrypto.NewFixedCodeGenerator("482913"),
		idGen,
		5*time.Minute,
		time.Hour,
		3,
		mockClock,
		log,
	)

	tokens := service.NewTokenService(
		testAccessSecret,
		testRefreshSecret,
		15*time.Minute,
		30*24*time.Hour,
		mockClock,
	)

	sessions := service.NewSessionService(
		engine,
		tokens,
		users,
		refresh,
		breaker,
		gateway,
		idGen,
		mockClock,
		log,
	)

	return &sessionFixture{
		sessions:    sessions,
		users:       users,
		otps:        otps,
		refresh:     refresh,
		gateway:     gateway,
		clock:       mockClock,
		breaker:     breaker,
		otpsBreaker: otpsBreaker,
	}
}

func TestSessionService_EndToEndNewUser(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.gateway.sent) != 1 || f.gateway.sent[0] != "482913" {
		t.Fatalf("expected code 482913 handed to gateway, got %v", f.gateway.sent)
	}

	session, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !session.IsNewUser {
		t.Error("expected isNewUser=true for first sign-in")
	}
	if session.User.PhoneNumber != "+15551234567" {
		t.Errorf("expected phone +15551234567, got %s", session.User.PhoneNumber)
	}
	if session.User.Purpose != "personal" || session.User.Language != "english" || !session.User.ShowDate {
		t.Errorf("expected default profile values, got %+v", session.User)
	}
	if session.ExpiresIn != 900 {
		t.Errorf("expected expiresIn 900, got %d", session.ExpiresIn)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Error("expected both tokens to be set")
	}

	// Replay of a consumed code is rejected.
	_, err = f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if !errors.Is(err, service.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
}

func TestSessionService_ExistingUserIsNotNew(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	first, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if second.IsNewUser {
		t.Error("expected isNewUser=false for returning user")
	}
	if second.User.ID != first.User.ID {
		t.Error("expected the same user on both sign-ins")
	}
}

func TestSessionService_WrongCodeRejected(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "000000")
	if !errors.Is(err, service.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
}

func TestSessionService_RateLimitExceeded(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	err := f.sessions.RequestOTP(ctx, "+15551234567")
	if !errors.Is(err, service.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestSessionService_DegradedModeStillSends(t *testing.T) {
	failing := &mockOTPRepo{
		createFunc: func(context.Context, authdomain.OTP) error {
			return errors.New("store down")
		},
	}
	f := newSessionFixtureWithOTPRepo(t, failing)

	// A store outage must not fail the user-visible send.
	if err := f.sessions.RequestOTP(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("expected degraded send to succeed, got %v", err)
	}
	if len(f.gateway.sent) != 1 {
		t.Fatalf("expected the code to reach the gateway, got %v", f.gateway.sent)
	}
}

func TestSessionService_SMSFailureDoesNotFailSend(t *testing.T) {
	f := newSessionFixture(t)
	f.gateway.sendFunc = func(context.Context, string, string) error {
		return errors.New("gateway down")
	}

	if err := f.sessions.RequestOTP(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("expected send to succeed despite sms failure, got %v", err)
	}
}

func TestSessionService_RotationIsDestructive(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	session, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f.clock.Advance(time.Second)

	rotated, err := f.sessions.RotateRefreshToken(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("expected rotation to succeed, got %v", err)
	}
	if rotated.RefreshToken == session.RefreshToken {
		t.Error("expected a fresh refresh token")
	}

	// The redeemed token is gone for good.
	_, err = f.sessions.RotateRefreshToken(ctx, session.RefreshToken)
	if !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestSessionService_ConcurrentRotationExactlyOneWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	session, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f.clock.Advance(time.Second)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessions.RotateRefreshToken(ctx, session.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, losses int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, service.ErrInvalidRefreshToken):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}
	if losses != callers-1 {
		t.Errorf("expected %d losers, got %d", callers-1, losses)
	}
}

func TestSessionService_ConcurrentVerifyExactlyOneWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, losses int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, service.ErrInvalidOTP):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}
	if losses != callers-1 {
		t.Errorf("expected %d losers, got %d", callers-1, losses)
	}
}

func TestSessionService_LogoutInvalidatesRefreshToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	session, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := f.sessions.Logout(ctx, session.AccessToken, ""); err != nil {
		t.Fatalf("expected logout to succeed, got %v", err)
	}

	_, err = f.sessions.RotateRefreshToken(ctx, session.RefreshToken)
	if !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}
}

func TestSessionService_LogoutWithRefreshTokenOnly(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	session, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := f.sessions.Logout(ctx, "", session.RefreshToken); err != nil {
		t.Fatalf("expected logout to succeed, got %v", err)
	}

	_, err = f.sessions.RotateRefreshToken(ctx, session.RefreshToken)
	if !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}
}

func TestSessionService_LogoutWithNoTokensIsNoop(t *testing.T) {
	f := newSessionFixture(t)

	if err := f.sessions.Logout(context.Background(), "", ""); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func TestSessionService_NewRefreshTokenRevokesPrior(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	first, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f.clock.Advance(time.Second)

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The second sign-in displaced the first session's refresh token.
	_, err = f.sessions.RotateRefreshToken(ctx, first.RefreshToken)
	if !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for displaced token, got %v", err)
	}

	if _, err := f.sessions.RotateRefreshToken(ctx, second.RefreshToken); err != nil {
		t.Fatalf("expected newest token to rotate, got %v", err)
	}
}

func TestSessionService_Authenticate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if err := f.sessions.RequestOTP(ctx, "+15551234567"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	session, err := f.sessions.VerifyOTPAndIssueSession(ctx, "+15551234567", "482913")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	user, err := f.sessions.Authenticate(ctx, "Bearer "+session.AccessToken)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != session.User.ID {
		t.Error("expected the session's user")
	}

	if _, err := f.sessions.Authenticate(ctx, "Bearer bogus"); !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for bad token, got %v", err)
	}
	if _, err := f.sessions.Authenticate(ctx, ""); !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for missing header, got %v", err)
	}

	f.clock.Advance(16 * time.Minute)
	if _, err := f.sessions.Authenticate(ctx, "Bearer "+session.AccessToken); !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestSessionService_OpenCircuitStillSendsOTP(t *testing.T) {
	f := newSessionFixture(t)
	f.breaker.err = errors.New("circuit open")
	f.otpsBreaker.err = errors.New("circuit open")

	// Even with the store fully unreachable the code still goes out; the
	// trade is losing rate limiting and replay protection for the outage.
	if err := f.sessions.RequestOTP(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("expected degraded send to succeed, got %v", err)
	}
	if len(f.gateway.sent) != 1 || f.gateway.sent[0] != "482913" {
		t.Fatalf("expected the code to reach the gateway, got %v", f.gateway.sent)
	}
}
