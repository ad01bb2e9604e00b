package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/psytech/auth-backend/internal/common/clock"
	prommetrics "github.com/psytech/auth-backend/internal/common/prometheus"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token verification failure taxonomy. Callers that must not leak the cause
// map all three to a generic credential error.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenMalformed        = errors.New("token malformed")
)

type Claims struct {
	UserID      string `json:"userId"`
	PhoneNumber string `json:"phoneNumber"`
	TokenType   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the two token classes. Access and refresh
// tokens are signed with distinct secrets so compromise of one cannot forge
// the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         clock.Clock
}

func NewTokenService(
	accessSecret string,
	refreshSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	clk clock.Clock,
) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		clock:         clk,
	}
}

func (ts *TokenService) IssueAccessToken(userID, phoneNumber string) (string, error) {
	token, err := ts.sign(userID, phoneNumber, TokenTypeAccess, ts.accessTTL, ts.accessSecret)
	if err != nil {
		return "", err
	}
	prommetrics.AccessTokensIssued.Inc()
	return token, nil
}

func (ts *TokenService) IssueRefreshToken(userID, phoneNumber string) (string, error) {
	token, err := ts.sign(userID, phoneNumber, TokenTypeRefresh, ts.refreshTTL, ts.refreshSecret)
	if err != nil {
		return "", err
	}
	prommetrics.RefreshTokensIssued.Inc()
	return token, nil
}

func (ts *TokenService) sign(userID, phoneNumber, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := ts.clock.Now()
	claims := Claims{
		UserID:      userID,
		PhoneNumber: phoneNumber,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func (ts *TokenService) VerifyAccessToken(tokenString string) (Claims, error) {
	return ts.verify(tokenString, TokenTypeAccess, ts.accessSecret)
}

func (ts *TokenService) VerifyRefreshToken(tokenString string) (Claims, error) {
	return ts.verify(tokenString, TokenTypeRefresh, ts.refreshSecret)
}

func (ts *TokenService) verify(tokenString, expectedType string, secret []byte) (Claims, error) {
	prommetrics.JWTValidationsTotal.Inc()

	var claims Claims
	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.clock.Now),
	)
	if err != nil {
		prommetrics.JWTValidationsFailed.Inc()
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrTokenInvalidSignature
		default:
			return Claims{}, ErrTokenMalformed
		}
	}

	if claims.TokenType != expectedType {
		prommetrics.JWTValidationsFailed.Inc()
		return Claims{}, ErrTokenMalformed
	}

	return claims, nil
}

// RefreshExpiry returns the instant the next refresh token stops being valid,
// used so the persisted record expires in step with the signature.
func (ts *TokenService) RefreshExpiry() time.Time {
	return ts.clock.Now().Add(ts.refreshTTL)
}

// AccessTokenTTLSeconds is what the login and refresh responses report as
// expiresIn.
func (ts *TokenService) AccessTokenTTLSeconds() int {
	return int(ts.accessTTL / time.Second)
}

// ExtractBearerToken accepts exactly the two-part "Bearer <token>" form.
func ExtractBearerToken(headerValue string) (string, error) {
	parts := strings.Split(headerValue, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrTokenMalformed
	}
	return parts[1], nil
}

// HashToken derives the storage key for a refresh token. Raw tokens are never
// persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
