// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database struct {
		Host       string `json:"host"`
		Port       string `json:"port"`
		User       string `json:"user"`
		Password   string `json:"password"`
		Name       string `json:"name"`
		SSLMode    string `json:"sslmode"`
		SearchPath string `json:"schema"`
	} `json:"database"`
	JWT struct {
		Secret       string        `json:"secret"`
		ExpiryPeriod time.Duration `json:"expiry_period"`
	} `json:"jwt"`
	Server struct {
		Port         string        `json:"port"`
		ReadTimeout  time.Duration `json:"read_timeout"`
		WriteTimeout time.Duration `json:"write_timeout"`
	}
	Mail struct {
		From     string `json:"from"`
		FromName string `json:"from_name"`
	} `json:"mail"`
	Sendgrid struct {
		APIKey string `json:"api_key"`
	} `json:"sendgrid"`
	SMTP  SMTPConfig `json:"smtp"`
	Mongo struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongo"`
	Redis struct {
		Addr         string        `json:"addr"`
		Password     string        `json:"password"`
		DB           int           `json:"db"`
		RoleCacheTTL time.Duration `json:"role_cache_ttl"`
	} `json:"redis"`
	Firebase struct {
		CredentialsFile string `json:"credentials_file"`
	} `json:"firebase"`
	S3 struct {
		Bucket        string        `json:"bucket"`
		Region        string        `json:"region"`
		Endpoint      string        `json:"endpoint"`
		PathStyle     bool          `json:"path_style"`
		PresignExpiry time.Duration `json:"presign_expiry"`
	} `json:"s3"`
	Slack struct {
		WebhookURL string `json:"webhook_url"`
	} `json:"slack"`
	FanOut struct {
		MaxPending    int           `json:"max_pending"`
		BatchTimeout  time.Duration `json:"batch_timeout"`
		ShutdownGrace time.Duration `json:"shutdown_grace"`
	} `json:"fanout"`
	IoT struct {
		APIKey string `json:"api_key"`
	} `json:"iot"`
	BaseURL string `json:"base_url"`
}

// SMTPConfig is the relay used when no Sendgrid key is configured. An empty
// Username sends without authentication.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func Load() *Config {
	cfg := &Config{}

	// Database configuration
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "lockity")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.SearchPath = getEnv("DB_SCHEMA", "public")

	// JWT configuration
	cfg.JWT.Secret = getEnv("JWT_SECRET", "your-secret-key")
	cfg.JWT.ExpiryPeriod = getEnvDuration("JWT_EXPIRY", time.Hour*24)

	// Outgoing mail
	cfg.Mail.From = getEnv("MAIL_FROM", "no-reply@lockity.app")
	cfg.Mail.FromName = getEnv("MAIL_FROM_NAME", "Lockity")
	cfg.Sendgrid.APIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.SMTP.Host = getEnv("SMTP_HOST", "localhost")
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", 587)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")

	// Server configuration
	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.ReadTimeout = time.Second * 15
	cfg.Server.WriteTimeout = time.Second * 15

	// Event store
	cfg.Mongo.URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", "lockity_db")

	// Role cache
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.RoleCacheTTL = getEnvDuration("ROLE_CACHE_TTL", time.Minute)

	// Push notifications and images
	cfg.Firebase.CredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", "")
	cfg.S3.Bucket = getEnv("S3_BUCKET", "lockity-images")
	cfg.S3.Region = getEnv("S3_REGION", "us-east-1")
	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", "")
	cfg.S3.PathStyle = getEnv("S3_PATH_STYLE", "false") == "true"
	cfg.S3.PresignExpiry = getEnvDuration("S3_PRESIGN_EXPIRY", time.Hour)

	// Alerting
	cfg.Slack.WebhookURL = getEnv("SLACK_WEBHOOK", "")

	// Fan-out processor
	cfg.FanOut.MaxPending = getEnvInt("FANOUT_MAX_PENDING", 10000)
	cfg.FanOut.BatchTimeout = getEnvDuration("FANOUT_BATCH_TIMEOUT", 30*time.Second)
	cfg.FanOut.ShutdownGrace = getEnvDuration("FANOUT_SHUTDOWN_GRACE", 20*time.Second)

	cfg.IoT.APIKey = getEnv("IOT_API_KEY", "")
	cfg.BaseURL = getEnv("BASE_URL", "http://localhost:8080")

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
