package domain

import "time"

type RefreshToken struct {
	ID          string
	TokenHash   string
	UserID      string
	PhoneNumber string
	ExpiresAt   time.Time
	IsRevoked   bool
	CreatedAt   time.Time
}
