package service_test

import (
	"context"
	"testing"
	"time"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
	"github.com/psytech/auth-backend/internal/common/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("", "test", "CRITICAL")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// passBreaker runs the wrapped call directly, or fails every call with err.
type passBreaker struct {
	err error
}

func (b *passBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if b.err != nil {
		return b.err
	}
	return fn(ctx)
}

func (b *passBreaker) Available() bool {
	return b.err == nil
}

type mockOTPRepo struct {
	createFunc        func(ctx context.Context, otp authdomain.OTP) error
	consumeFunc       func(ctx context.Context, phoneNumber, code string, now time.Time) (bool, error)
	countSinceFunc    func(ctx context.Context, phoneNumber string, since time.Time) (int, error)
	deleteExpiredFunc func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockOTPRepo) Create(ctx context.Context, otp authdomain.OTP) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, otp)
	}
	return nil
}

func (m *mockOTPRepo) Consume(ctx context.Context, phoneNumber, code string, now time.Time) (bool, error) {
	if m.consumeFunc != nil {
		return m.consumeFunc(ctx, phoneNumber, code, now)
	}
	return false, nil
}

func (m *mockOTPRepo) CountSince(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	if m.countSinceFunc != nil {
		return m.countSinceFunc(ctx, phoneNumber, since)
	}
	return 0, nil
}

func (m *mockOTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpiredFunc != nil {
		return m.deleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

type mockGateway struct {
	sendFunc func(ctx context.Context, phoneNumber, code string) error
	sent     []string
}

func (m *mockGateway) Send(ctx context.Context, phoneNumber, code string) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, phoneNumber, code)
	}
	m.sent = append(m.sent, code)
	return nil
}
