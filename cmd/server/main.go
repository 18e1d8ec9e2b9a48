// server runs the sign-in HTTP API and the gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/audit"
	auditrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/audit/repository"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/config"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db/migrate"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/devotp"
	healthhandler "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/health/handler"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/logging"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/mailer"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/mfa"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey"
	passkeyrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/passkey/repository"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/policy/engine"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/security"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/server"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session"
	sessionrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/session/repository"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/signin"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/slot"
	telemetryotel "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/telemetry/otel"
	userrepo "github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/user/repository"
)

const (
	serviceName     = "portfolio-signin"
	shutdownTimeout = 10 * time.Second
	slotCacheSize   = 10000
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	if err := migrate.Run(cfg.DatabaseDriver, cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer conn.Close()
	sb := db.StatementBuilder(cfg.DatabaseDriver)

	users := userrepo.NewSQLRepository(conn, sb)
	passkeys := passkeyrepo.NewSQLRepository(conn, sb)
	sessions := sessionrepo.NewSQLRepository(conn, sb)
	audits := auditrepo.NewSQLRepository(conn, sb)

	slots, cachePing, closeSlots := newSlotStore(cfg, logger)
	defer closeSlots()

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}

	policySrc, err := engine.LoadPolicyFile(cfg.SignInPolicyFile)
	if err != nil {
		return err
	}
	policy, err := engine.NewOPAEvaluator(ctx, policySrc, logger.Named("policy"))
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	tokens, err := newTokenProvider(cfg, logger)
	if err != nil {
		return err
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	verifier, err := passkey.NewGoWebAuthnVerifier(passkey.WebAuthnConfig{
		RPDisplayName: cfg.WebAuthnRPName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     cfg.WebAuthnOrigins(),
	})
	if err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}
	registration := passkey.NewRegistration(users, passkeys, slots, verifier, cfg.ChallengeTTL(), logger.Named("passkey"))
	authentication := passkey.NewAuthentication(users, passkeys, slots, verifier, cfg.ChallengeTTL(), logger.Named("passkey"))

	var devStore *devotp.MemoryStore
	codeOpts := []mfa.Option{
		mfa.WithPolicy(policy),
		mfa.WithTTL(cfg.OTPTTL()),
		mfa.WithLogger(logger.Named("mfa")),
	}
	if cfg.OTPReturnToClient && !cfg.IsProduction() {
		devStore = devotp.NewMemoryStore()
		codeOpts = append(codeOpts, mfa.WithDevStore(devStore))
	}
	codes := mfa.NewCodeService(users, passkeys, slots, sender, codeOpts...)

	provider := session.NewProvider(users, sessions, tokens, cfg.RefreshTTL(), logger.Named("session"))
	auditLogger := audit.Tee{
		audit.NewLogger(audits, session.ClientIP, logger.Named("audit")),
		telemetryotel.NewAuditSink(providers.LoggerProvider),
	}

	flow := signin.NewFlow(signin.Deps{
		Users:          users,
		Authenticator:  signin.NewAuthenticator(users, hasher),
		Codes:          codes,
		Registration:   registration,
		Authentication: authentication,
		Sessions:       provider,
		Tokens:         tokens,
		Audit:          auditLogger,
		Logger:         logger.Named("signin"),
	})

	health := healthhandler.NewServer(conn, policy, cachePing)
	httpDeps := server.HTTPDeps{
		Flow:         flow,
		Auth:         provider,
		Health:       health,
		AllowOrigins: cfg.WebAuthnOrigins(),
		RateLimit:    cfg.RateLimitRPS,
		Logger:       logger.Named("http"),
	}
	if devStore != nil {
		httpDeps.DevOTP = devStore
	}
	e := server.NewHTTPServer(httpDeps)
	grpcServer := server.NewGRPCServer(health)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("servers stopped")
	return nil
}

// newSlotStore returns the shared Redis store when REDIS_ADDR is set and the
// in-process store otherwise, plus a readiness probe for the cache (nil for memory).
func newSlotStore(cfg *config.Config, logger *zap.Logger) (slot.Store, healthhandler.Pinger, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("slot store: in-memory")
		return slot.NewMemoryStore(slotCacheSize), nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("slot store: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	ping := healthhandler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	return slot.NewRedisStore(client, cfg.RedisPrefix), ping, func() { _ = client.Close() }
}

// newSender uses Resend when an API key is configured. Production requires it.
func newSender(cfg *config.Config, logger *zap.Logger) (mailer.Sender, error) {
	if cfg.ResendAPIKey == "" {
		if cfg.IsProduction() {
			return nil, errors.New("RESEND_API_KEY must be set when APP_ENV=production")
		}
		if !cfg.OTPReturnToClient {
			return nil, errors.New("RESEND_API_KEY is not set; set it or enable OTP_RETURN_TO_CLIENT to read codes from /dev/otp")
		}
		logger.Warn("RESEND_API_KEY not set; sign-in codes are not mailed, read them from /dev/otp")
		return mailer.NewLogSender(logger.Named("mailer")), nil
	}
	sender, err := mailer.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	return sender, nil
}

// newTokenProvider loads the configured signing keys. Outside production an ephemeral
// key is generated when none are configured.
func newTokenProvider(cfg *config.Config, logger *zap.Logger) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" && cfg.JWTPublicKey == "" && !cfg.IsProduction() {
		logger.Warn("JWT keys not set; using an ephemeral key, tokens will not survive a restart")
		priv, pub, err := security.EphemeralKeyPair()
		if err != nil {
			return nil, fmt.Errorf("jwt keys: %w", err)
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL(), cfg.ContinuationTTL()), nil
	}
	priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL(), cfg.ContinuationTTL()), nil
}
