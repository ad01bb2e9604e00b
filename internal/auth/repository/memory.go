package repository

import (
	"context"
	"sync"
	"time"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
)

// MemoryOTPRepository is the in-process fallback used when no database is
// configured. Semantics mirror the Postgres implementation, including keeping
// deactivated rows around for the rate-limit window.
type MemoryOTPRepository struct {
	mu   sync.Mutex
	otps []memoryOTP
}

type memoryOTP struct {
	otp    authdomain.OTP
	active bool
}

func NewMemoryOTPRepository() *MemoryOTPRepository {
	return &MemoryOTPRepository{}
}

func (r *MemoryOTPRepository) Create(_ context.Context, otp authdomain.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.otps {
		if r.otps[i].otp.PhoneNumber == otp.PhoneNumber {
			r.otps[i].active = false
		}
	}
	r.otps = append(r.otps, memoryOTP{otp: otp, active: true})
	return nil
}

func (r *MemoryOTPRepository) Consume(_ context.Context, phoneNumber, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.otps {
		entry := r.otps[i]
		if entry.active && entry.otp.PhoneNumber == phoneNumber && entry.otp.Code == code && entry.otp.ExpiresAt.After(now) {
			r.otps = append(r.otps[:i], r.otps[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryOTPRepository) CountSince(_ context.Context, phoneNumber string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, entry := range r.otps {
		if entry.otp.PhoneNumber == phoneNumber && !entry.otp.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryOTPRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.otps[:0]
	var deleted int64
	for _, entry := range r.otps {
		if entry.otp.ExpiresAt.After(now) {
			kept = append(kept, entry)
		} else {
			deleted++
		}
	}
	r.otps = kept
	return deleted, nil
}

// MemoryRefreshTokenRepository mirrors the Postgres refresh token semantics,
// including the one-active-token-per-user invariant on Create.
type MemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]*authdomain.RefreshToken
}

func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{
		byHash: make(map[string]*authdomain.RefreshToken),
	}
}

func (r *MemoryRefreshTokenRepository) Create(_ context.Context, token authdomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byHash {
		if existing.UserID == token.UserID && !existing.IsRevoked {
			existing.IsRevoked = true
		}
	}

	stored := token
	r.byHash[token.TokenHash] = &stored
	return nil
}

func (r *MemoryRefreshTokenRepository) FindActiveByHash(_ context.Context, hash string, now time.Time) (authdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[hash]
	if !ok || token.IsRevoked || !token.ExpiresAt.After(now) {
		return authdomain.RefreshToken{}, ErrRefreshTokenNotFound
	}
	return *token, nil
}

func (r *MemoryRefreshTokenRepository) Revoke(_ context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[hash]
	if !ok || token.IsRevoked {
		return false, nil
	}
	token.IsRevoked = true
	return true, nil
}

func (r *MemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var revoked int64
	for _, token := range r.byHash {
		if token.UserID == userID && !token.IsRevoked {
			token.IsRevoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (r *MemoryRefreshTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for hash, token := range r.byHash {
		if !token.ExpiresAt.After(now) {
			delete(r.byHash, hash)
			deleted++
		}
	}
	return deleted, nil
}
