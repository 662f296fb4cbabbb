package constants

// Default server configuration values
const (
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultWebhookMaxSkewSec     = 300
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
	MaxRequestBodyBytes          = 1 << 20
)

// Default backoff values for startup retries
const (
	DefaultBackoffInitialMs      = 500
	DefaultMaxBackoffMs          = 60000
	DefaultDatabaseRetryAttempts = 3
)

// Default session backend values
const (
	DefaultHTTPTimeoutSec = 30
	// DefaultCredentialTTLSec matches the refresh cadence of a WhatsApp Web
	// pairing QR; a Connecting device with a younger credential is treated
	// as a live handshake and StartPairing will not supersede it.
	DefaultCredentialTTLSec         = 60
	DefaultEventStreamRetryDelaySec = 5
)

// Default scheduler values
const (
	DefaultSchedulerPollIntervalSec = 15
	DefaultDueBatchSize             = 50
	DefaultStaleCheckIntervalSec    = 60
	DefaultStaleThresholdSec        = 600
)

// Validation bounds
const (
	MaxDeviceNameLength  = 64
	MaxMessageBodyLength = 4096
	MaxTargetGroups      = 256
	MaxGroupIDLength     = 128
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)

// Encryption salts (key material comes from the environment)
const (
	EncryptionSalt       = "wabroadcast-field-salt-v1"
	EncryptionLookupSalt = "wabroadcast-lookup-salt-v1"
)
