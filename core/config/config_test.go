package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSecuritySettings(t *testing.T) {
	s := DefaultSecuritySettings()

	if s.PasswordExpiration() != 30*time.Minute {
		t.Errorf("Expected 30m password expiration, got %v", s.PasswordExpiration())
	}
	if s.MaxLoginAttempts != 5 {
		t.Errorf("Expected 5 max login attempts, got %d", s.MaxLoginAttempts)
	}
	if s.LockoutDuration() != 15*time.Minute {
		t.Errorf("Expected 15m lockout, got %v", s.LockoutDuration())
	}
	if s.KeyDerivationIterations != 60000 {
		t.Errorf("Expected 60000 iterations, got %d", s.KeyDerivationIterations)
	}
	if s.SignInTimeout() != 12*time.Second {
		t.Errorf("Expected 12s sign-in timeout, got %v", s.SignInTimeout())
	}
	if s.PasswordSweepInterval() != 5*time.Minute {
		t.Errorf("Expected 5m sweep interval, got %v", s.PasswordSweepInterval())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cryochat.json")

	cfg := DefaultConfig()
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.KeyDerivationIterations = 100000
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig() failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if loaded.Security.MaxLoginAttempts != 3 {
		t.Errorf("Expected 3 max login attempts, got %d", loaded.Security.MaxLoginAttempts)
	}
	if loaded.Security.KeyDerivationIterations != 100000 {
		t.Errorf("Expected 100000 iterations, got %d", loaded.Security.KeyDerivationIterations)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() should fail on invalid JSON")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CRYOCHAT_MAX_LOGIN_ATTEMPTS":          "7",
		"CRYOCHAT_LOCKOUT_DURATION_MINUTES":    "20",
		"CRYOCHAT_PASSWORD_EXPIRATION_MINUTES": "10",
		"CRYOCHAT_KEY_DERIVATION_ITERATIONS":   "120000",
		"CRYOCHAT_SIGN_IN_TIMEOUT_SECONDS":     "30",
		"CRYOCHAT_NATS_URL":                    "nats://localhost:4222",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() failed: %v", err)
	}

	if cfg.Security.MaxLoginAttempts != 7 {
		t.Errorf("Expected 7, got %d", cfg.Security.MaxLoginAttempts)
	}
	if cfg.Security.LockoutDurationMinutes != 20 {
		t.Errorf("Expected 20, got %d", cfg.Security.LockoutDurationMinutes)
	}
	if cfg.Security.PasswordExpirationMinutes != 10 {
		t.Errorf("Expected 10, got %d", cfg.Security.PasswordExpirationMinutes)
	}
	if cfg.Security.KeyDerivationIterations != 120000 {
		t.Errorf("Expected 120000, got %d", cfg.Security.KeyDerivationIterations)
	}
	if cfg.Security.SignInTimeoutSeconds != 30 {
		t.Errorf("Expected 30, got %d", cfg.Security.SignInTimeoutSeconds)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("Expected NATS URL override, got %q", cfg.NATS.URL)
	}
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "CRYOCHAT_MAX_LOGIN_ATTEMPTS" {
			return "five", true
		}
		return "", false
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Error("ApplyEnv() should fail on a non-numeric value")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WebPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an out-of-range port")
	}

	cfg = DefaultConfig()
	cfg.Security.MaxLoginAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject zero max login attempts")
	}

	cfg = DefaultConfig()
	cfg.Security.KeyDerivationIterations = 10
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject a tiny iteration count")
	}
}
