package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcleanup "github.com/psytech/auth-backend/internal/auth/cleanup"
	authhttp "github.com/psytech/auth-backend/internal/auth/http"
	authrepo "github.com/psytech/auth-backend/internal/auth/repository"
	"github.com/psytech/auth-backend/internal/auth/service"
	"github.com/psytech/auth-backend/internal/common/clock"
	"github.com/psytech/auth-backend/internal/common/config"
	commoncrypto "github.com/psytech/auth-backend/internal/common/crypto"
	"github.com/psytech/auth-backend/internal/common/db"
	commonhttp "github.com/psytech/auth-backend/internal/common/http"
	"github.com/psytech/auth-backend/internal/common/logger"
	srv "github.com/psytech/auth-backend/internal/common/server"
	"github.com/psytech/auth-backend/internal/sms"
	userrepo "github.com/psytech/auth-backend/internal/user/repository"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_DIR"), "auth", os.Getenv("LOG_LEVEL"))
	if err != nil {
		os.Stderr.WriteString(fmt.Sprintf("failed to initialize logger: %v\n", err))
		os.Exit(1)
	}

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		userRepo    userrepo.Repository
		otpRepo     authrepo.OTPRepository
		refreshRepo authrepo.RefreshTokenRepository
	)

	if cfg.Storage == config.StoragePostgres {
		pool := db.NewPool(log, cfg.DatabaseURL)
		defer pool.Close()

		userRepo = userrepo.NewPgRepository(pool)
		otpRepo = authrepo.NewPgOTPRepository(pool)
		refreshRepo = authrepo.NewPgRefreshTokenRepository(pool)
	} else {
		log.Warn("running with in-memory storage, all state is lost on restart")
		userRepo = userrepo.NewMemoryRepository()
		otpRepo = authrepo.NewMemoryOTPRepository()
		refreshRepo = authrepo.NewMemoryRefreshTokenRepository()
	}

	breaker := db.NewDBCircuitBreaker(
		cfg.CircuitBreakerThreshold,
		cfg.CircuitBreakerTimeout,
		cfg.CircuitBreakerReset,
		log,
	)

	clk := clock.NewRealClock()
	idGenerator := &commoncrypto.UUIDGenerator{}

	var codeGen commoncrypto.CodeGenerator = commoncrypto.NewRandomCodeGenerator()
	if cfg.OTPDevCode != "" {
		log.Warnf("using fixed development OTP code")
		codeGen = commoncrypto.NewFixedCodeGenerator(cfg.OTPDevCode)
	}

	var gateway sms.Gateway
	if cfg.SMS.AuthKey != "" && cfg.SMS.TemplateID != "" {
		gateway = sms.NewMSG91Gateway(cfg.SMS, log)
	} else {
		log.Warn("sms provider not configured, OTP codes are written to the log")
		gateway = sms.NewConsoleGateway(log)
	}

	otpEngine := service.NewOTPEngine(
		otpRepo,
		breaker,
		codeGen,
		idGenerator,
		cfg.OTPExpiry,
		cfg.OTPRateWindow,
		cfg.OTPRateMax,
		clk,
		log,
	)

	tokens := service.NewTokenService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		clk,
	)

	sessions := service.NewSessionService(
		otpEngine,
		tokens,
		userRepo,
		refreshRepo,
		breaker,
		gateway,
		idGenerator,
		clk,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go authcleanup.StartOTPCleanup(ctx, otpRepo, clk, log)
	go authcleanup.StartRefreshTokenCleanup(ctx, refreshRepo, clk, log)

	handler := authhttp.NewHandler(sessions, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	rateLimiter := commonhttp.NewStrictRateLimiter()
	baseHandler := commonhttp.BuildBaseHandler("auth", log, mux)

	rateLimitMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			rateLimiter.MiddlewareForPath(path)(next).ServeHTTP(w, r)
		})
	}

	finalHandler := rateLimitMiddleware(baseHandler)

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverConfig, finalHandler)

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("auth service: stopping cleanup goroutines")
			cancel()
			return nil
		},
	}

	srv.StartWithGracefulShutdownAndHooks(server, log, "auth", shutdownHooks)
}
