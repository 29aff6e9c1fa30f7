package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	CORSAllowedOrigins []string

	MultiTenantMode    bool
	UsePGTenants       bool
	UsePGCallJournal   bool
	UseMemoryQueue     bool
	WorkerCount        int
	SessionTTL         time.Duration
	CallLockTimeout    time.Duration
	TransientRetryWait time.Duration

	DatabaseURL     string
	PGJournalURL    string
	PGSessionURL    string
	PGBillingURL    string

	AdminJWTSecret  string
	AdminAPIToken   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	IdempotencyTable string

	VoiceWebhookSecret    string
	WhatsAppWebhookSecret string
	WebChatAllowedOrigins []string

	PaymentProviderSecretKey  string
	PaymentProviderWebhookKey string

	CalendarProviderClientID     string
	CalendarProviderClientSecret string
	CalendarProviderBaseURL      string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	SESFromEmail string
	SESFromName  string

	S3ArchiveBucket string
	S3ArchiveKMSKey string

	BillingGracePeriod   time.Duration
	UsagePushRetryWindow time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	corsAllowedOrigins := splitCSV(getEnv("CORS_ALLOWED_ORIGINS", ""))
	webchatOrigins := splitCSV(getEnv("WEBCHAT_ALLOWED_ORIGINS", ""))

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: corsAllowedOrigins,

		MultiTenantMode:    getEnvAsBool("MULTI_TENANT_MODE", true),
		UsePGTenants:       getEnvAsBool("USE_PG_TENANTS", true),
		UsePGCallJournal:   getEnvAsBool("USE_PG_CALL_JOURNAL", true),
		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 4),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 15*time.Minute),
		CallLockTimeout:    getEnvAsDuration("CALL_LOCK_TIMEOUT", 2*time.Second),
		TransientRetryWait: getEnvAsDuration("TRANSIENT_RETRY_WAIT", 150*time.Millisecond),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		PGJournalURL: getEnv("PG_JOURNAL_URL", getEnv("DATABASE_URL", "")),
		PGSessionURL: getEnv("PG_SESSION_URL", getEnv("DATABASE_URL", "")),
		PGBillingURL: getEnv("PG_BILLING_URL", getEnv("DATABASE_URL", "")),

		AdminJWTSecret: getEnv("JWT_SECRET", ""),
		AdminAPIToken:  getEnv("ADMIN_API_TOKEN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		IdempotencyTable: getEnv("IDEMPOTENCY_TABLE", "external_write_idempotency"),

		VoiceWebhookSecret:    getEnv("VOICE_WEBHOOK_SECRET", ""),
		WhatsAppWebhookSecret: getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
		WebChatAllowedOrigins: webchatOrigins,

		PaymentProviderSecretKey:  getEnv("PAYMENT_PROVIDER_SECRET_KEY", ""),
		PaymentProviderWebhookKey: getEnv("PAYMENT_PROVIDER_WEBHOOK_SECRET", ""),

		CalendarProviderClientID:     getEnv("CALENDAR_CLIENT_ID", ""),
		CalendarProviderClientSecret: getEnv("CALENDAR_CLIENT_SECRET", ""),
		CalendarProviderBaseURL:      getEnv("CALENDAR_BASE_URL", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Concierge Booking"),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Concierge Booking"),

		S3ArchiveBucket: getEnv("S3_ARCHIVE_BUCKET", ""),
		S3ArchiveKMSKey: getEnv("S3_ARCHIVE_KMS_KEY", ""),

		BillingGracePeriod:   getEnvAsDuration("BILLING_GRACE_PERIOD", 72*time.Hour),
		UsagePushRetryWindow: getEnvAsDuration("USAGE_PUSH_RETRY_WINDOW", 48*time.Hour),
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
