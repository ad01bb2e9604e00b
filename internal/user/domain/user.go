package domain

import "time"

type UserID string

const (
	DefaultPurpose  = "personal"
	DefaultLanguage = "english"
)

type User struct {
	ID               UserID
	PhoneNumber      string
	Name             string
	BusinessName     string
	Purpose          string
	ShowDate         bool
	Language         string
	ProfileImagePath string
	LogoPath         string
	IsPremium        bool
	CreatedAt        time.Time
}

// NewUser builds a user with the profile defaults applied. Callers set the ID.
func NewUser(id UserID, phoneNumber string, createdAt time.Time) User {
	return User{
		ID:          id,
		PhoneNumber: phoneNumber,
		Purpose:     DefaultPurpose,
		ShowDate:    true,
		Language:    DefaultLanguage,
		CreatedAt:   createdAt,
	}
}
