package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/josh-segal/text-me-assistant/pkg/logger"
	"github.com/josh-segal/text-me-assistant/pkg/utils"

	"go.uber.org/zap"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// EnvDevelopment switches outbound SMS to the logging mock sender
const EnvDevelopment = "development"

// DefaultJWTSecret is the placeholder secret; it is rejected outside development
const DefaultJWTSecret = "your-secret-key"

// encryptedPrefix marks a secret stored encrypted with Security.EncryptionKey
const encryptedPrefix = "enc:"

// Config holds all configuration settings
type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Port int `json:"port"`
		// Host is the listen address; empty listens on all interfaces
		Host string `json:"host"`
		// PublicURL is the externally visible base URL Twilio signs webhook requests against
		PublicURL string `json:"public_url"`
		// ForceHTTPS redirects plain HTTP requests when TLS is terminated upstream
		ForceHTTPS bool `json:"force_https"`
	} `json:"server"`
	Database struct {
		Driver string `json:"driver"`
		DSN    string `json:"dsn"`
	} `json:"database"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Twilio struct {
		AccountSID        string `json:"account_sid"`
		AuthToken         string `json:"auth_token"`
		PhoneNumber       string `json:"phone_number"`
		ValidateSignature bool   `json:"validate_signature"`
	} `json:"twilio"`
	Escalation struct {
		ManagerNumber string        `json:"manager_number"`
		Cooldown      time.Duration `json:"cooldown"`
	} `json:"escalation"`
	Admin struct {
		Username     string `json:"username"`
		PasswordHash string `json:"password_hash"`
		TOTPSecret   string `json:"totp_secret"`
	} `json:"admin"`
	Security struct {
		EncryptionKey string `json:"encryption_key"`
	} `json:"security"`
	JWT struct {
		Secret      string        `json:"secret"`
		TokenExpiry time.Duration `json:"token_expiry"`
	} `json:"jwt"`
	Logging struct {
		Level string `json:"level"`
		Path  string `json:"path"`
	} `json:"logging"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Environment = "production"
	config.Server.Port = 8080
	config.Database.Driver = DriverSQLite
	config.Database.DSN = "file:messages.db?cache=shared&mode=rwc"
	config.Twilio.ValidateSignature = true
	config.Escalation.Cooldown = 10 * time.Minute
	config.Admin.Username = "admin"
	config.JWT.Secret = DefaultJWTSecret // This should be changed in production
	config.JWT.TokenExpiry = 24 * time.Hour
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	return config
}

// ApplyEnv overrides settings from the environment variables used by the
// hosted deployment
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("APP_ENV", &c.Environment)
	setString("TWILIO_ACCOUNT_SID", &c.Twilio.AccountSID)
	setString("TWILIO_AUTH_TOKEN", &c.Twilio.AuthToken)
	setString("TWILIO_PHONE_NUMBER", &c.Twilio.PhoneNumber)
	setString("MANAGER_PHONE_NUMBER", &c.Escalation.ManagerNumber)
	setString("PUBLIC_URL", &c.Server.PublicURL)
	setString("DATABASE_DRIVER", &c.Database.Driver)
	setString("DATABASE_DSN", &c.Database.DSN)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("JWT_SECRET", &c.JWT.Secret)
	setString("ADMIN_USERNAME", &c.Admin.Username)
	setString("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)
	setString("ADMIN_TOTP_SECRET", &c.Admin.TOTPSecret)
	setString("ENCRYPTION_KEY", &c.Security.EncryptionKey)
	setString("LOG_PATH", &c.Logging.Path)
	setString("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	if v := os.Getenv("FORCE_HTTPS"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FORCE_HTTPS %q: %w", v, err)
		}
		c.Server.ForceHTTPS = force
	}

	if v := os.Getenv("ESCALATION_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ESCALATION_COOLDOWN %q: %w", v, err)
		}
		c.Escalation.Cooldown = d
	}

	return nil
}

// IsDevelopment reports whether outbound SMS should be mocked
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}

	if c.Escalation.ManagerNumber == "" {
		return errors.New("manager phone number is required")
	}
	if !strings.HasPrefix(c.Escalation.ManagerNumber, "+") {
		return errors.New("manager phone number must start with +")
	}

	if c.Escalation.Cooldown < 0 {
		return errors.New("escalation cooldown cannot be negative")
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}

	if c.IsDevelopment() {
		return nil
	}

	if c.JWT.Secret == DefaultJWTSecret {
		return errors.New("JWT secret must be changed from the default")
	}

	// Twilio signs the public URL, not the listen address
	if c.Twilio.ValidateSignature && c.Server.PublicURL == "" {
		return errors.New("public URL is required when webhook signature validation is enabled")
	}

	return nil
}

// DecryptSecrets replaces secrets stored with the "enc:" prefix by their
// plaintext, using Security.EncryptionKey
func (c *Config) DecryptSecrets() error {
	secrets := []*string{
		&c.Twilio.AuthToken,
		&c.Redis.Password,
		&c.Admin.TOTPSecret,
		&c.JWT.Secret,
	}

	for _, s := range secrets {
		if !strings.HasPrefix(*s, encryptedPrefix) {
			continue
		}
		plain, err := utils.DecryptSecret(strings.TrimPrefix(*s, encryptedPrefix), c.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to decrypt secret: %w", err)
		}
		*s = plain
	}

	return nil
}
