package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SecuritySettings holds the knobs of the key-management protocol.
type SecuritySettings struct {
	PasswordExpirationMinutes    int `json:"password_expiration_minutes"`
	MaxLoginAttempts             int `json:"max_login_attempts"`
	LockoutDurationMinutes       int `json:"lockout_duration_minutes"`
	KeyDerivationIterations      int `json:"key_derivation_iterations"`
	SignInTimeoutSeconds         int `json:"sign_in_timeout_seconds"`
	PasswordSweepIntervalMinutes int `json:"password_sweep_interval_minutes"`
	PublicKeyCacheSize           int `json:"public_key_cache_size"`
}

// PasswordExpiration is the lifetime of a session password.
func (s SecuritySettings) PasswordExpiration() time.Duration {
	return time.Duration(s.PasswordExpirationMinutes) * time.Minute
}

// LockoutDuration is how long an account stays locked after too many failed unlocks.
func (s SecuritySettings) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutDurationMinutes) * time.Minute
}

// SignInTimeout bounds the key load during sign-in.
func (s SecuritySettings) SignInTimeout() time.Duration {
	return time.Duration(s.SignInTimeoutSeconds) * time.Second
}

// PasswordSweepInterval is the period of the expiration sweep.
func (s SecuritySettings) PasswordSweepInterval() time.Duration {
	return time.Duration(s.PasswordSweepIntervalMinutes) * time.Minute
}

// NATSSettings configures the relay transport. An empty URL selects the in-process relay.
type NATSSettings struct {
	URL             string `json:"url"`
	CredentialsFile string `json:"credentials_file"`
	SubjectPrefix   string `json:"subject_prefix"`
}

// SMTPSettings configures lockout notification e-mails. An empty host disables them.
type SMTPSettings struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	From               string `json:"from"`
	MinIntervalMinutes int    `json:"min_interval_minutes"`
}

// Config holds the configuration for the chat daemon
type Config struct {
	WebAddr      string           `json:"web_addr"`
	WebPort      int              `json:"web_port"`
	DatabasePath string           `json:"database_path"`
	LogPath      string           `json:"log_path"`
	LogLevel     string           `json:"log_level"`
	Security     SecuritySettings `json:"security"`
	NATS         NATSSettings     `json:"nats"`
	SMTP         SMTPSettings     `json:"smtp"`
}

// DefaultSecuritySettings returns the protocol defaults.
func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		PasswordExpirationMinutes:    30,
		MaxLoginAttempts:             5,
		LockoutDurationMinutes:       15,
		KeyDerivationIterations:      60000,
		SignInTimeoutSeconds:         12,
		PasswordSweepIntervalMinutes: 5,
		PublicKeyCacheSize:           256,
	}
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	dataDir := "."

	homeDir, err := os.UserHomeDir()
	if err == nil && homeDir != "" {
		dataDir = filepath.Join(homeDir, "cryochat")

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			dataDir = "."
		}
	}

	return &Config{
		WebAddr:      "127.0.0.1",
		WebPort:      8090,
		DatabasePath: filepath.Join(dataDir, "cryochat.db"),
		LogPath:      filepath.Join(dataDir, "logs"),
		LogLevel:     "info",
		Security:     DefaultSecuritySettings(),
		NATS: NATSSettings{
			SubjectPrefix: "cryochat",
		},
		SMTP: SMTPSettings{
			Port:               587,
			MinIntervalMinutes: 60,
		},
	}
}

// DefaultConfigPath is used when LoadConfig or SaveConfig get an empty path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "cryochat.json"
	}
	return filepath.Join(homeDir, "cryochat", "cryochat.json")
}

// LoadConfig loads the configuration from a JSON file and applies environment overrides.
// A missing file is not an error; the defaults are used.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	} else {
		defer file.Close()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return config, nil
}

// envOverrides maps environment variables onto integer security settings.
func (c *Config) envOverrides() map[string]*int {
	return map[string]*int{
		"CRYOCHAT_PASSWORD_EXPIRATION_MINUTES":     &c.Security.PasswordExpirationMinutes,
		"CRYOCHAT_MAX_LOGIN_ATTEMPTS":              &c.Security.MaxLoginAttempts,
		"CRYOCHAT_LOCKOUT_DURATION_MINUTES":        &c.Security.LockoutDurationMinutes,
		"CRYOCHAT_KEY_DERIVATION_ITERATIONS":       &c.Security.KeyDerivationIterations,
		"CRYOCHAT_SIGN_IN_TIMEOUT_SECONDS":         &c.Security.SignInTimeoutSeconds,
		"CRYOCHAT_PASSWORD_SWEEP_INTERVAL_MINUTES": &c.Security.PasswordSweepIntervalMinutes,
		"CRYOCHAT_WEB_PORT":                        &c.WebPort,
	}
}

// ApplyEnv overrides settings from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for name, target := range c.envOverrides() {
		raw, ok := lookup(name)
		if !ok || raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
		*target = value
	}

	if v, ok := lookup("CRYOCHAT_DATABASE_PATH"); ok && v != "" {
		c.DatabasePath = v
	}
	if v, ok := lookup("CRYOCHAT_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("CRYOCHAT_NATS_URL"); ok && v != "" {
		c.NATS.URL = v
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid web port: %d", c.WebPort)
	}

	s := c.Security
	if s.PasswordExpirationMinutes <= 0 {
		return fmt.Errorf("password expiration must be positive, got %d", s.PasswordExpirationMinutes)
	}
	if s.MaxLoginAttempts <= 0 {
		return fmt.Errorf("max login attempts must be positive, got %d", s.MaxLoginAttempts)
	}
	if s.LockoutDurationMinutes <= 0 {
		return fmt.Errorf("lockout duration must be positive, got %d", s.LockoutDurationMinutes)
	}
	if s.KeyDerivationIterations < 1000 {
		return fmt.Errorf("key derivation iterations too low: %d", s.KeyDerivationIterations)
	}
	if s.SignInTimeoutSeconds <= 0 {
		return fmt.Errorf("sign-in timeout must be positive, got %d", s.SignInTimeoutSeconds)
	}
	if s.PasswordSweepIntervalMinutes <= 0 {
		return fmt.Errorf("password sweep interval must be positive, got %d", s.PasswordSweepIntervalMinutes)
	}
	return nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config file: %w", err)
	}

	return nil
}
