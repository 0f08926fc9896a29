package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Sidecar   SidecarConfig   `mapstructure:"sidecar"   validate:"required"`
	Notifier  NotifierConfig  `mapstructure:"notifier"  validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// SidecarConfig contains settings for the local messaging/state relay.
// All pub/sub and state operations go through the sidecar's HTTP API,
// so application code never links a broker-specific client.
type SidecarConfig struct {
	// BaseURL is where the sidecar listens, e.g. http://localhost:3500.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// PubsubName is the logical name of the pub/sub component.
	PubsubName string `mapstructure:"pubsub_name" validate:"required"`

	// StateStoreName is the logical name of the state store component.
	StateStoreName string `mapstructure:"state_store_name" validate:"required"`

	// PublishTimeoutMillis bounds a single publish call. Capped at 2000ms
	// so a broker outage never stalls the request path.
	PublishTimeoutMillis int `mapstructure:"publish_timeout_millis" validate:"required,gt=0,lte=2000"`

	// Source is the logical component name stamped on published envelopes.
	Source string `mapstructure:"source" validate:"required"`

	// TaskEventsTopic is the topic task lifecycle events are published to.
	TaskEventsTopic string `mapstructure:"task_events_topic" validate:"required"`
}

// NotifierConfig contains notification consumer settings.
type NotifierConfig struct {
	// MaxAttempts caps delivery retries per event before the notification
	// record becomes terminally failed.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0,lte=10"`

	// BackoffBaseMillis is the base for exponential backoff between
	// delivery attempts.
	BackoffBaseMillis int `mapstructure:"backoff_base_millis" validate:"required,gt=0"`

	// DedupMarkerTTLSeconds is the lifetime of the fast-path dedup marker
	// kept in the state store alongside the authoritative ledger row.
	DedupMarkerTTLSeconds int `mapstructure:"dedup_marker_ttl_seconds" validate:"required,gt=0"`

	// ConversationTTLSeconds is the lifetime of conversation history entries
	// the notifier appends delivered notifications to.
	ConversationTTLSeconds int `mapstructure:"conversation_ttl_seconds" validate:"required,gt=0"`
}

// SchedulerConfig contains recurring task generator settings.
type SchedulerConfig struct {
	// CatchUpLimit bounds how many missed occurrences a single tick
	// generates per template after an outage.
	CatchUpLimit int `mapstructure:"catch_up_limit" validate:"required,gt=0,lte=100"`
}

// AuthConfig contains identity verification settings for owner-scoped
// template endpoints. Token issuance belongs to the external auth service;
// this core only validates tokens it is handed.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}
