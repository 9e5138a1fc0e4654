package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends selectable through STORE_BACKEND.
const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`
	StoreBackend                     string `mapstructure:"STORE_BACKEND"`

	// BootstrapAdminUID is treated as an admin even without an admins/{uid} document.
	BootstrapAdminUID string `mapstructure:"BOOTSTRAP_ADMIN_UID"`

	RedisURL          string `mapstructure:"REDIS_URL"`
	DiagnosticsStream string `mapstructure:"DIAGNOSTICS_STREAM"`
	DiagnosticsMaxLen int64  `mapstructure:"DIAGNOSTICS_MAX_LEN"`
	GeminiAPIKey      string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel       string `mapstructure:"GEMINI_MODEL"`
	SMTPHost          string `mapstructure:"SMTP_HOST"`
	SMTPPort          int    `mapstructure:"SMTP_PORT"`
	SMTPUsername      string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword      string `mapstructure:"SMTP_PASSWORD"`
	ClinicInbox       string `mapstructure:"CLINIC_INBOX"`
	ClinicTimezone    string `mapstructure:"CLINIC_TIMEZONE"`
}

var appConfig *Config

var envKeys = []string{
	"PORT",
	"GIN_MODE",
	"FIREBASE_PROJECT_ID",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"CLIENT_URL",
	"STORE_BACKEND",
	"BOOTSTRAP_ADMIN_UID",
	"REDIS_URL",
	"DIAGNOSTICS_STREAM",
	"DIAGNOSTICS_MAX_LEN",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"SMTP_HOST",
	"SMTP_PORT",
	"SMTP_USERNAME",
	"SMTP_PASSWORD",
	"CLINIC_INBOX",
	"CLINIC_TIMEZONE",
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("STORE_BACKEND", StoreFirestore)
	v.SetDefault("DIAGNOSTICS_STREAM", "diagnostics:permission")
	v.SetDefault("DIAGNOSTICS_MAX_LEN", 1000)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("CLINIC_TIMEZONE", "Local")

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return appConfig, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreFirestore, StoreMemory, c.StoreBackend)
	}
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.DiagnosticsMaxLen <= 0 {
		return errors.New("DIAGNOSTICS_MAX_LEN must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE is invalid: %w", err)
	}
	return nil
}

// Location resolves the clinic timezone used to interpret booking dates.
func (c *Config) Location() (*time.Location, error) {
	if c.ClinicTimezone == "" || c.ClinicTimezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.ClinicTimezone)
}

// MailEnabled reports whether enough SMTP settings exist to send notifications.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.ClinicInbox != ""
}

// GetConfig returns the loaded application configuration.
// It will panic if LoadConfig has not been called successfully.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded; call LoadConfig first")
	}
	return appConfig
}
