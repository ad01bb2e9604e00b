package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/psytech/auth-backend/internal/common/db"
	"github.com/psytech/auth-backend/internal/user/domain"
)

type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByPhone(ctx context.Context, phoneNumber string) (domain.User, error)
	FindByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrPhoneAlreadyExists = errors.New("phone number already registered")
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (id, phone_number, name, business_name, purpose, show_date, language,
		                    profile_image_path, logo_path, is_premium, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(user.ID),
		user.PhoneNumber,
		user.Name,
		user.BusinessName,
		user.Purpose,
		user.ShowDate,
		user.Language,
		user.ProfileImagePath,
		user.LogoPath,
		user.IsPremium,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPhoneAlreadyExists
		}
		return db.HandleExecError(err, "create user", start)
	}
	db.MeasureQueryDuration("create user", start)
	return nil
}

func (r *PgRepository) FindByPhone(ctx context.Context, phoneNumber string) (domain.User, error) {
	return r.findOne(
		ctx,
		`SELECT id, phone_number, name, business_name, purpose, show_date, language,
		        profile_image_path, logo_path, is_premium, created_at
		 FROM users WHERE phone_number = $1`,
		"find user by phone",
		phoneNumber,
	)
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return r.findOne(
		ctx,
		`SELECT id, phone_number, name, business_name, purpose, show_date, language,
		        profile_image_path, logo_path, is_premium, created_at
		 FROM users WHERE id = $1`,
		"find user by id",
		string(id),
	)
}

func (r *PgRepository) findOne(ctx context.Context, query, operation string, arg any) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, query, arg)

	user, err := scanUser(row)
	if err := db.HandleQueryError(err, ErrUserNotFound, operation, start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.PhoneNumber,
		&user.Name,
		&user.BusinessName,
		&user.Purpose,
		&user.ShowDate,
		&user.Language,
		&user.ProfileImagePath,
		&user.LogoPath,
		&user.IsPremium,
		&user.CreatedAt,
	)
	return user, err
}
