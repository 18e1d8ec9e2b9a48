package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8081")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("DatabaseDriver = %q, want %q", cfg.DatabaseDriver, DriverPostgres)
	}
	if cfg.JWTIssuer != "portfolio-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "portfolio-auth")
	}
	if cfg.JWTAudience != "portfolio-web" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "portfolio-web")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.RedisPrefix != "signin" {
		t.Errorf("RedisPrefix = %q, want signin", cfg.RedisPrefix)
	}
	if cfg.OTPTTL() != 5*time.Minute {
		t.Errorf("OTPTTL = %v, want 5m", cfg.OTPTTL())
	}
	if cfg.ChallengeTTL() != 5*time.Minute {
		t.Errorf("ChallengeTTL = %v, want 5m", cfg.ChallengeTTL())
	}
	if cfg.ContinuationTTL() != 10*time.Minute {
		t.Errorf("ContinuationTTL = %v, want 10m", cfg.ContinuationTTL())
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.RateLimitRPS != 20 {
		t.Errorf("RateLimitRPS = %v, want 20", cfg.RateLimitRPS)
	}
	if got := cfg.WebAuthnOrigins(); len(got) != 1 || got[0] != "http://localhost:3000" {
		t.Errorf("WebAuthnOrigins = %v, want [http://localhost:3000]", got)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("DATABASE_DRIVER", "SQLite")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.DatabaseDriver != DriverSQLite {
		t.Errorf("DatabaseDriver = %q, want %q", cfg.DatabaseDriver, DriverSQLite)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
		t.Errorf("Redis = %q/%d, want localhost:6379/3", cfg.RedisAddr, cfg.RedisDB)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	os.Clearenv()
	os.Setenv("DATABASE_DRIVER", "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject unknown DATABASE_DRIVER")
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_OTPReturnToClientProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production message", err.Error())
	}
}

func TestLoad_OTPReturnToClientDevelopment(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should be true")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment should be true")
	}
}

func TestLoad_WebAuthnOrigins(t *testing.T) {
	os.Clearenv()
	os.Setenv("WEBAUTHN_RP_ORIGINS", " https://app.example.com , ,https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cfg.WebAuthnOrigins()
	if len(got) != 2 || got[0] != "https://app.example.com" || got[1] != "https://admin.example.com" {
		t.Errorf("WebAuthnOrigins = %v", got)
	}
}

func TestLoad_WebAuthnOriginsEmpty(t *testing.T) {
	os.Clearenv()
	os.Setenv("WEBAUTHN_RP_ORIGINS", " , ")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject an empty origin list")
	}
}

func TestTTL_Parsing(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"valid", "30m", 30 * time.Minute},
		{"invalid", "invalid", 15 * time.Minute},
		{"zero", "0", 15 * time.Minute},
		{"negative", "-5m", 15 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{JWTAccessTTL: tc.raw}
			if got := cfg.AccessTTL(); got != tc.want {
				t.Errorf("AccessTTL = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRefreshTTL_ValidDuration(t *testing.T) {
	cfg := &Config{JWTRefreshTTL: "336h"}
	if got := cfg.RefreshTTL(); got != 14*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v", got, 14*24*time.Hour)
	}
	cfg = &Config{JWTRefreshTTL: "-1h"}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v (default)", got, 168*time.Hour)
	}
}

func TestChallengeAndOTPTTL_Override(t *testing.T) {
	cfg := &Config{OTPTTLRaw: "2m", ChallengeTTLRaw: "90s", ContinuationTTLRaw: "nope"}
	if cfg.OTPTTL() != 2*time.Minute {
		t.Errorf("OTPTTL = %v, want 2m", cfg.OTPTTL())
	}
	if cfg.ChallengeTTL() != 90*time.Second {
		t.Errorf("ChallengeTTL = %v, want 90s", cfg.ChallengeTTL())
	}
	if cfg.ContinuationTTL() != 10*time.Minute {
		t.Errorf("ContinuationTTL = %v, want 10m (default)", cfg.ContinuationTTL())
	}
}
