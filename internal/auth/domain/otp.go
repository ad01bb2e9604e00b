package domain

import "time"

type OTP struct {
	ID          string
	PhoneNumber string
	Code        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
