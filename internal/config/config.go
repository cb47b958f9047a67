package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	DB      DBConfig
	Storage StorageConfig
	Session SessionConfig
	OTP     OTPConfig
	Mail    MailConfig
	Server  ServerConfig
	Usage   UsageConfig
	Users   UsersConfig
	Log     LogConfig
	Sweep   SweepConfig
}

type DBConfig struct {
	Driver   string `validate:"oneof=postgres sqlite"`
	Path     string `validate:"required_if=Driver sqlite"`
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// StorageConfig selects the blob backend. Options holds the backend specific
// settings and is decoded by the storage factory.
type StorageConfig struct {
	Type    string         `validate:"required,oneof=minio s3 memory"`
	Options map[string]any `validate:"required"`
}

type SessionConfig struct {
	CookieName      string `validate:"required"`
	Secret          string `validate:"required,min=16"`
	ExpirationHours int    `validate:"gt=0"`
	SecureCookie    bool
}

type OTPConfig struct {
	TTL           time.Duration `validate:"gt=0"`
	MaxAttempts   int           `validate:"gt=0"`
	Digits        int           `validate:"oneof=6 8"`
	Issuer        string        `validate:"required"`
	SealingSecret string        `validate:"required,min=16"`
}

type MailConfig struct {
	Provider       string `validate:"required,oneof=log sendgrid"`
	SendGridAPIKey string `validate:"required_if=Provider sendgrid"`
	FromName       string
	FromAddress    string `validate:"required,email"`
}

type ServerConfig struct {
	Port        string `validate:"required,numeric"`
	FrontendURL string `validate:"required,url"`
	BodyLimitMB int    `validate:"gt=0"`
}

type UsageConfig struct {
	CapacityBytes int64 `validate:"gt=0"`
}

type UsersConfig struct {
	AvatarPlaceholderURL string `validate:"required,url"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

type SweepConfig struct {
	GracePeriod time.Duration `validate:"gte=0"`
}

const defaultAvatarPlaceholderURL = "https://img.freepik.com/free-psd/3d-illustration-person-with-sunglasses_23-2149436188.jpg"

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Path:     getEnv("DB_PATH", "storeit.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "storeit"),
			Password: getEnv("DB_PASSWORD", "storeit_secret"),
			Name:     getEnv("DB_NAME", "storeit"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: loadStorage(),
		Session: SessionConfig{
			CookieName:      getEnv("SESSION_COOKIE_NAME", "storeit-session"),
			Secret:          getEnv("SESSION_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("SESSION_EXPIRATION_HOURS", 24*365),
			SecureCookie:    getEnvAsBool("SESSION_SECURE_COOKIE", true),
		},
		OTP: OTPConfig{
			TTL:           getEnvAsDuration("OTP_TTL", 15*time.Minute),
			MaxAttempts:   getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			Digits:        getEnvAsInt("OTP_DIGITS", 6),
			Issuer:        getEnv("OTP_ISSUER", "StoreIt"),
			SealingSecret: getEnv("OTP_SEALING_SECRET", getEnv("SESSION_SECRET", "change-me-in-production")),
		},
		Mail: MailConfig{
			Provider:       getEnv("MAIL_PROVIDER", "log"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromName:       getEnv("MAIL_FROM_NAME", "StoreIt"),
			FromAddress:    getEnv("MAIL_FROM_ADDRESS", "no-reply@storeit.local"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
			BodyLimitMB: getEnvAsInt("SERVER_BODY_LIMIT_MB", 50),
		},
		Usage: UsageConfig{
			CapacityBytes: getEnvAsInt64("STORAGE_CAPACITY_BYTES", 2*1024*1024*1024),
		},
		Users: UsersConfig{
			AvatarPlaceholderURL: getEnv("AVATAR_PLACEHOLDER_URL", defaultAvatarPlaceholderURL),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Sweep: SweepConfig{
			GracePeriod: getEnvAsDuration("SWEEP_GRACE_PERIOD", 24*time.Hour),
		},
	}
}

func loadStorage() StorageConfig {
	storageType := getEnv("STORAGE_TYPE", "minio")

	switch storageType {
	case "memory":
		return StorageConfig{
			Type:    storageType,
			Options: map[string]any{"base_url": getEnv("MEMORY_STORAGE_BASE_URL", "http://localhost:8080/blobs")},
		}
	case "s3":
		return StorageConfig{
			Type: storageType,
			Options: map[string]any{
				"region":            getEnv("S3_REGION", "us-east-1"),
				"bucket":            getEnv("S3_BUCKET", "storeit"),
				"endpoint":          getEnv("S3_ENDPOINT", ""),
				"access_key_id":     getEnv("S3_ACCESS_KEY_ID", ""),
				"secret_access_key": getEnv("S3_SECRET_ACCESS_KEY", ""),
				"public_base_url":   getEnv("S3_PUBLIC_BASE_URL", ""),
				"max_retries":       getEnvAsInt("S3_MAX_RETRIES", 5),
			},
		}
	default:
		endpoint := getEnv("MINIO_ENDPOINT", "localhost:9000")
		return StorageConfig{
			Type: storageType,
			Options: map[string]any{
				"endpoint":        endpoint,
				"public_endpoint": getEnv("MINIO_PUBLIC_ENDPOINT", endpoint),
				"access_key":      getEnv("MINIO_ACCESS_KEY", "storeit"),
				"secret_key":      getEnv("MINIO_SECRET_KEY", "storeit_secret"),
				"bucket":          getEnv("MINIO_BUCKET", "storeit"),
				"use_ssl":         getEnvAsBool("MINIO_USE_SSL", false),
				"region":          getEnv("MINIO_REGION", "us-east-1"),
			},
		}
	}
}

var validate = validator.New()

// Validate checks struct tags and returns the first failure in a readable form.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag", e.Namespace(), e.Tag())
	}
	return err
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
