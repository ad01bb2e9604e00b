package repository

import (
	"context"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	authdomain "github.com/psytech/auth-backend/internal/auth/domain"
	"github.com/psytech/auth-backend/internal/common/db"
)

type OTPRepository interface {
	// Create stores the code and deactivates any earlier codes for the same
	// phone number, so only the most recent one can verify. Deactivated rows
	// are kept until expiry so CountSince still sees them.
	Create(ctx context.Context, otp authdomain.OTP) error

	// Consume atomically deletes a matching unexpired code and reports whether
	// one existed. A consumed code can never verify twice.
	Consume(ctx context.Context, phoneNumber, code string, now time.Time) (bool, error)

	// CountSince returns how many codes were issued for the phone number at or
	// after the given instant.
	CountSince(ctx context.Context, phoneNumber string, since time.Time) (int, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PgOTPRepository struct {
	pool *pgxpool.Pool
}

func NewPgOTPRepository(pool *pgxpool.Pool) *PgOTPRepository {
	return &PgOTPRepository{pool: pool}
}

func (r *PgOTPRepository) Create(ctx context.Context, otp authdomain.OTP) error {
	start := time.Now()
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`UPDATE otps SET is_active = FALSE WHERE phone_number = $1 AND is_active`,
			otp.PhoneNumber,
		); err != nil {
			return err
		}

		_, err := tx.Exec(
			ctx,
			`INSERT INTO otps (id, phone_number, code, expires_at, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			otp.ID,
			otp.PhoneNumber,
			otp.Code,
			otp.ExpiresAt,
			otp.CreatedAt,
		)
		return err
	})
	return db.HandleExecError(err, "create otp", start)
}

func (r *PgOTPRepository) Consume(ctx context.Context, phoneNumber, code string, now time.Time) (bool, error) {
	start := time.Now()
	res, err := r.pool.Exec(
		ctx,
		`DELETE FROM otps
		 WHERE phone_number = $1 AND code = $2 AND is_active AND expires_at > $3`,
		phoneNumber,
		code,
		now,
	)
	if err != nil {
		return false, db.HandleExecError(err, "consume otp", start)
	}
	db.MeasureQueryDuration("consume otp", start)
	return res.RowsAffected() > 0, nil
}

func (r *PgOTPRepository) CountSince(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM otps WHERE phone_number = $1 AND created_at >= $2`,
		phoneNumber,
		since,
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, db.HandleQueryError(err, nil, "count otps", start)
	}
	db.MeasureQueryDuration("count otps", start)
	return count, nil
}

func (r *PgOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	res, err := r.pool.Exec(
		ctx,
		`DELETE FROM otps WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "delete expired otps", start)
	}
	db.MeasureQueryDuration("delete expired otps", start)
	return res.RowsAffected(), nil
}
