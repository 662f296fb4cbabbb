package models

import "time"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Database  DatabaseConfig  `json:"database"`
	Retry     RetryConfig     `json:"retry"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"log_level"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port              int    `json:"port"`
	ReadTimeoutSec    int    `json:"readTimeoutSec"`
	WriteTimeoutSec   int    `json:"writeTimeoutSec"`
	IdleTimeoutSec    int    `json:"idleTimeoutSec"`
	WebhookSecret     string `json:"webhook_secret"`
	WebhookMaxSkewSec int    `json:"webhookMaxSkewSec"`
}

// WhatsAppConfig holds session backend related configurations
type WhatsAppConfig struct {
	APIBaseURL        string `json:"api_base_url"`
	EventsURL         string `json:"events_url"`
	TimeoutMs         int    `json:"timeout_ms"`
	CredentialTTLSec  int    `json:"credentialTTLSec"`
	EventStreamOnBoot bool   `json:"eventStreamOnBoot"`
}

// HTTPTimeout returns the gateway client timeout. The config carries
// milliseconds so a plain JSON number reads as expected.
func (c WhatsAppConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RetryConfig holds startup retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// SchedulerConfig holds due-message scheduler configurations
type SchedulerConfig struct {
	PollIntervalSec   int  `json:"pollIntervalSec"`
	Enabled           bool `json:"enabled"`
	StaleCheckSec     int  `json:"staleCheckSec"`
	StaleThresholdSec int  `json:"staleThresholdSec"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
