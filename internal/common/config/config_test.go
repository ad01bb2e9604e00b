package config_test

import (
	"testing"
	"time"

	"github.com/psytech/auth-backend/internal/common/config"
)

const (
	accessSecret  = "access-secret-key-at-least-32-bytes-long!!"
	refreshSecret = "refresh-secret-key-at-least-32-bytes-long!"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", accessSecret)
	t.Setenv("JWT_REFRESH_SECRET", refreshSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/auth")
}

func TestLoadAuthConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("expected 15m access TTL, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("expected 30d refresh TTL, got %v", cfg.RefreshTokenTTL)
	}
	if cfg.OTPExpiry != 5*time.Minute {
		t.Errorf("expected 5m otp expiry, got %v", cfg.OTPExpiry)
	}
	if cfg.OTPRateMax != 3 {
		t.Errorf("expected rate max 3, got %d", cfg.OTPRateMax)
	}
	if cfg.Storage != config.StoragePostgres {
		t.Errorf("expected postgres storage, got %s", cfg.Storage)
	}
}

func TestLoadAuthConfig_MissingSecrets(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")

	if _, err := config.LoadAuthConfig(); err == nil {
		t.Fatal("expected error for missing secrets")
	}
}

func TestLoadAuthConfig_ShortSecretRejected(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "too-short")
	t.Setenv("JWT_REFRESH_SECRET", refreshSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/auth")

	if _, err := config.LoadAuthConfig(); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestLoadAuthConfig_IdenticalSecretsRejected(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", accessSecret)
	t.Setenv("JWT_REFRESH_SECRET", accessSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/auth")

	if _, err := config.LoadAuthConfig(); err == nil {
		t.Fatal("expected error for identical access and refresh secrets")
	}
}

func TestLoadAuthConfig_MemoryStorageSkipsDatabaseURL(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", accessSecret)
	t.Setenv("JWT_REFRESH_SECRET", refreshSecret)
	t.Setenv("STORAGE", "memory")
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Storage != config.StorageMemory {
		t.Errorf("expected memory storage, got %s", cfg.Storage)
	}
}

func TestLoadAuthConfig_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", accessSecret)
	t.Setenv("JWT_REFRESH_SECRET", refreshSecret)
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := config.LoadAuthConfig(); err == nil {
		t.Fatal("expected error when postgres storage has no DATABASE_URL")
	}
}
