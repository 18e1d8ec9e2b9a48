// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers accepted in DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the sign-in HTTP API listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseDriver is "postgres" or "sqlite".
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the Postgres DSN or the SQLite file path.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RedisAddr enables the shared Redis slot store when non-empty; otherwise codes and challenges live in process memory.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// RedisPrefix namespaces every slot key (default "signin").
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "portfolio-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "portfolio-web").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// ContinuationTTLRaw is the lifetime of the signed sign-in continuation token (e.g. "10m").
	ContinuationTTLRaw string `mapstructure:"CONTINUATION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPTTLRaw is how long an emailed sign-in code stays valid (default "5m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// ChallengeTTLRaw is how long a WebAuthn challenge stays valid (default "5m").
	ChallengeTTLRaw string `mapstructure:"CHALLENGE_TTL"`

	// WebAuthnRPName is the relying party display name shown by authenticators.
	WebAuthnRPName string `mapstructure:"WEBAUTHN_RP_NAME"`
	// WebAuthnRPID is the relying party ID (host only, no scheme or port).
	WebAuthnRPID string `mapstructure:"WEBAUTHN_RP_ID"`
	// WebAuthnRPOrigins is a comma-separated list of allowed origins (scheme://host[:port]).
	WebAuthnRPOrigins string `mapstructure:"WEBAUTHN_RP_ORIGINS"`

	// ResendAPIKey is the Resend API key for sign-in code emails. Required unless OTPReturnToClient is set.
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	// MailFrom is the sender address for sign-in code emails.
	MailFrom string `mapstructure:"MAIL_FROM"`

	// OTPReturnToClient when true enables dev OTP mode: no email is sent, the code is kept for GET /dev/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// SignInPolicyFile is an optional path to a Rego module overriding the built-in next-step policy.
	SignInPolicyFile string `mapstructure:"SIGNIN_POLICY_FILE"`

	// RateLimitRPS is the per-client HTTP request rate. Zero disables limiting.
	RateLimitRPS float64 `mapstructure:"RATE_LIMIT_RPS"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv picks it up during Unmarshal.
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "signin")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "portfolio-auth")
	v.SetDefault("JWT_AUDIENCE", "portfolio-web")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("CONTINUATION_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("CHALLENGE_TTL", "5m")
	v.SetDefault("WEBAUTHN_RP_NAME", "Portfolio Optimizer")
	v.SetDefault("WEBAUTHN_RP_ID", "localhost")
	v.SetDefault("WEBAUTHN_RP_ORIGINS", "http://localhost:3000")
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("MAIL_FROM", "Portfolio Optimizer <no-reply@localhost>")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("SIGNIN_POLICY_FILE", "")
	v.SetDefault("RATE_LIMIT_RPS", 20)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return nil, errors.New("config: DATABASE_DRIVER must be postgres or sqlite")
	}

	if cfg.OTPReturnToClient && cfg.IsProduction() {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if strings.TrimSpace(cfg.WebAuthnRPID) == "" {
		return nil, errors.New("config: WEBAUTHN_RP_ID must be set")
	}
	if len(cfg.WebAuthnOrigins()) == 0 {
		return nil, errors.New("config: WEBAUTHN_RP_ORIGINS must list at least one origin")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseTTL(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseTTL(c.JWTRefreshTTL, 168*time.Hour)
}

// ContinuationTTL returns the continuation token lifetime. Returns 10m if unset or invalid.
func (c *Config) ContinuationTTL() time.Duration {
	return parseTTL(c.ContinuationTTLRaw, 10*time.Minute)
}

// OTPTTL returns the sign-in code lifetime. Returns 5m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	return parseTTL(c.OTPTTLRaw, 5*time.Minute)
}

// ChallengeTTL returns the WebAuthn challenge lifetime. Returns 5m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration {
	return parseTTL(c.ChallengeTTLRaw, 5*time.Minute)
}

// WebAuthnOrigins returns the allowed origins from the comma-separated config.
func (c *Config) WebAuthnOrigins() []string {
	if c == nil || c.WebAuthnRPOrigins == "" {
		return nil
	}
	parts := strings.Split(c.WebAuthnRPOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseTTL(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
