package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	// KVBackend selects where pending registrations and OTP records live: "memory" | "redis".
	KVBackend     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SweepInterval time.Duration

	OTPExpiry                 time.Duration
	PendingRegistrationTTL    time.Duration
	ResetRequireAuthorization bool

	// Notifier selects the OTP delivery channel: "smtp" | "sns".
	Notifier     string
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	SNSTopicARN  string

	SuperAdmin SeedAccount

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string
	Stores   string
	Ratings  string
	Counters string
	// UserKeys holds one item per claimed email and username.
	UserKeys string
}

// SeedAccount describes the super admin created on first start.
type SeedAccount struct {
	Username string
	Email    string
	Password string
	Address  string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:    getEnv("DYNAMO_TABLE_USERS", "users"),
			Stores:   getEnv("DYNAMO_TABLE_STORES", "stores"),
			Ratings:  getEnv("DYNAMO_TABLE_RATINGS", "ratings"),
			Counters: getEnv("DYNAMO_TABLE_COUNTERS", "counters"),
			UserKeys: getEnv("DYNAMO_TABLE_USER_KEYS", "user_keys"),
		},
		JWTPrivateKeyPath:         getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:          getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:                 getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		KVBackend:                 getEnv("KV_BACKEND", "memory"),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		SweepInterval:             getEnvDuration("KV_SWEEP_INTERVAL", 5*time.Minute),
		OTPExpiry:                 getEnvDuration("OTP_EXPIRY", 10*time.Minute),
		PendingRegistrationTTL:    getEnvDuration("PENDING_REGISTRATION_TTL", 24*time.Hour),
		ResetRequireAuthorization: getEnvBool("RESET_REQUIRE_AUTHORIZATION", false),
		Notifier:                  getEnv("NOTIFIER", "smtp"),
		SMTPHost:                  getEnv("SMTP_HOST", "localhost"),
		SMTPPort:                  getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:                  getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		SNSRegion:                 getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:               getEnv("SNS_TOPIC_ARN", ""),
		SuperAdmin: SeedAccount{
			Username: getEnv("SUPER_ADMIN_USERNAME", "superadmin"),
			Email:    getEnv("SUPER_ADMIN_EMAIL", ""),
			Password: getEnv("SUPER_ADMIN_PASSWORD", ""),
			Address:  getEnv("SUPER_ADMIN_ADDRESS", "none"),
		},
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
