package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// WhatsApp Cloud API
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppAPIBaseURL    string

	// Gemini decision oracle
	GeminiAPIKey  string
	GeminiModelID string

	DefaultLanguage string

	// Business served by this deployment. The WhatsApp number is bound to a
	// single business; multi-number routing would map PhoneNumberID instead.
	DefaultBusinessID string

	// Conversation worker
	UseMemoryQueue   bool
	WorkerCount      int
	FlowQueueURL     string
	FlowJobsTable    string
	AutoAdvanceLimit int

	// AWS (SQS queue + DynamoDB job store)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Payments
	AllowFakePayments  bool
	SquareAccessToken  string
	SquareLocationID   string
	PaymentSuccessURL  string
	PaymentWebhookKey  string
	DepositAmountCents int

	// SendGrid email notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	EscalationEmail   string

	AdminJWTSecret     string
	CORSAllowedOrigins string

	// Availability engine
	AvailabilityWindowDays int
	DefaultBufferMinutes   int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 6*time.Hour),

		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIBaseURL:    getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),

		DefaultBusinessID: getEnv("DEFAULT_BUSINESS_ID", "default"),

		UseMemoryQueue:   getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 4),
		FlowQueueURL:     getEnv("FLOW_QUEUE_URL", ""),
		FlowJobsTable:    getEnv("FLOW_JOBS_TABLE", "flow_jobs"),
		AutoAdvanceLimit: getEnvAsInt("AUTO_ADVANCE_LIMIT", 10),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AllowFakePayments:  getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),
		SquareAccessToken:  getEnv("SQUARE_ACCESS_TOKEN", ""),
		SquareLocationID:   getEnv("SQUARE_LOCATION_ID", ""),
		PaymentSuccessURL:  getEnv("PAYMENT_SUCCESS_URL", ""),
		PaymentWebhookKey:  getEnv("PAYMENT_WEBHOOK_SIGNATURE_KEY", ""),
		DepositAmountCents: getEnvAsInt("DEPOSIT_AMOUNT_CENTS", 5000),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Flowline"),
		EscalationEmail:   getEnv("ESCALATION_EMAIL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		AvailabilityWindowDays: getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 30),
		DefaultBufferMinutes:   getEnvAsInt("DEFAULT_BUFFER_MINUTES", 0),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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
