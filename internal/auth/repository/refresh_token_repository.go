package repository

import (
	"context"
	"errors"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
	"github.com/psytech/auth-backend/internal/common/db"
)

type RefreshTokenRepository interface {
	// Create persists the token after revoking every non-revoked token the
	// user still holds, so at most one active refresh token exists per user.
	Create(ctx context.Context, token authdomain.RefreshToken) error

	// FindActiveByHash returns the non-revoked, unexpired record for the hash.
	FindActiveByHash(ctx context.Context, hash string, now time.Time) (authdomain.RefreshToken, error)

	// Revoke marks the token revoked and reports whether this call did the
	// revoking. Exactly one of N concurrent callers sees true.
	Revoke(ctx context.Context, hash string) (bool, error)

	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

type PgRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgRefreshTokenRepository(pool *pgxpool.Pool) *PgRefreshTokenRepository {
	return &PgRefreshTokenRepository{pool: pool}
}

func (r *PgRefreshTokenRepository) Create(ctx context.Context, token authdomain.RefreshToken) error {
	start := time.Now()
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE`,
			token.UserID,
		); err != nil {
			return err
		}

		_, err := tx.Exec(
			ctx,
			`INSERT INTO refresh_tokens (id, token_hash, user_id, phone_number, expires_at, is_revoked, created_at)
			 VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
			token.ID,
			token.TokenHash,
			token.UserID,
			token.PhoneNumber,
			token.ExpiresAt,
			token.CreatedAt,
		)
		return err
	})
	return db.HandleExecError(err, "create refresh token", start)
}

func (r *PgRefreshTokenRepository) FindActiveByHash(ctx context.Context, hash string, now time.Time) (authdomain.RefreshToken, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, token_hash, user_id, phone_number, expires_at, is_revoked, created_at
		 FROM refresh_tokens
		 WHERE token_hash = $1 AND is_revoked = FALSE AND expires_at > $2`,
		hash,
		now,
	)

	var token authdomain.RefreshToken
	err := row.Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.PhoneNumber,
		&token.ExpiresAt,
		&token.IsRevoked,
		&token.CreatedAt,
	)
	if err := db.HandleQueryError(err, ErrRefreshTokenNotFound, "find refresh token", start); err != nil {
		return authdomain.RefreshToken{}, err
	}
	return token, nil
}

func (r *PgRefreshTokenRepository) Revoke(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	res, err := r.pool.Exec(
		ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE token_hash = $1 AND is_revoked = FALSE`,
		hash,
	)
	if err != nil {
		return false, db.HandleExecError(err, "revoke refresh token", start)
	}
	db.MeasureQueryDuration("revoke refresh token", start)
	return res.RowsAffected() > 0, nil
}

func (r *PgRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	res, err := r.pool.Exec(
		ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE`,
		userID,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "revoke all refresh tokens", start)
	}
	db.MeasureQueryDuration("revoke all refresh tokens", start)
	return res.RowsAffected(), nil
}

func (r *PgRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	res, err := r.pool.Exec(
		ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "delete expired refresh tokens", start)
	}
	db.MeasureQueryDuration("delete expired refresh tokens", start)
	return res.RowsAffected(), nil
}
