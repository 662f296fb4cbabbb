package config

import (
	"encoding/json"
	"fmt"
	"os"

	"wabroadcast/internal/constants"
	"wabroadcast/internal/models"
	"wabroadcast/internal/security"
)

var (
	ErrMissingWhatsAppURL = models.ConfigError{Message: "missing WhatsApp gateway API URL"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.WhatsApp.APIBaseURL == "" {
		return ErrMissingWhatsAppURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.WebhookMaxSkewSec <= 0 {
		c.Server.WebhookMaxSkewSec = constants.DefaultWebhookMaxSkewSec
	}

	if c.WhatsApp.TimeoutMs <= 0 {
		c.WhatsApp.TimeoutMs = constants.DefaultHTTPTimeoutSec * 1000
	}
	if c.WhatsApp.CredentialTTLSec <= 0 {
		c.WhatsApp.CredentialTTLSec = constants.DefaultCredentialTTLSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.Scheduler.PollIntervalSec <= 0 {
		c.Scheduler.PollIntervalSec = constants.DefaultSchedulerPollIntervalSec
	}
	if c.Scheduler.StaleCheckSec <= 0 {
		c.Scheduler.StaleCheckSec = constants.DefaultStaleCheckIntervalSec
	}
	if c.Scheduler.StaleThresholdSec <= 0 {
		c.Scheduler.StaleThresholdSec = constants.DefaultStaleThresholdSec
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WHATSAPP_API_URL"); url != "" {
		c.WhatsApp.APIBaseURL = url
	}
	if url := os.Getenv("WHATSAPP_EVENTS_URL"); url != "" {
		c.WhatsApp.EventsURL = url
	}

	// SECURITY: callback secrets should be set via environment variables
	if secret := os.Getenv("WABROADCAST_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("WABROADCAST_ENV") == "production"

	if isProduction {
		if c.Server.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set WABROADCAST_WEBHOOK_SECRET environment variable)"}
		}
		if len(c.Server.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set WABROADCAST_WEBHOOK_SECRET environment variable for security.\n")
	}

	return nil
}
