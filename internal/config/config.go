package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

// AppConfig contains site-wide settings.
type AppConfig struct {
	SiteName string `mapstructure:"site_name"`
	Timezone string `mapstructure:"timezone"`
	LogLevel string `mapstructure:"log_level"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
}

// AuthConfig 描述管理员会话与登录保护参数。
type AuthConfig struct {
	PrivateKeyFile        string        `mapstructure:"private_key_file"`
	PublicKeyFile         string        `mapstructure:"public_key_file"`
	SessionTTL            time.Duration `mapstructure:"session_ttl"`
	CookieName            string        `mapstructure:"cookie_name"`
	CookieDomain          string        `mapstructure:"cookie_domain"`
	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
	MinPasswordLength     int           `mapstructure:"min_password_length"`
}

// MailConfig contains SMTP settings for outgoing notifications.
type MailConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	From         string        `mapstructure:"from"`
	AdminAddress string        `mapstructure:"admin_address"`
	UseQueue     bool          `mapstructure:"use_queue"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
}

// UploadConfig 限制申请附件的大小与数量。
type UploadConfig struct {
	MaxBytes       int64         `mapstructure:"max_bytes"`
	MaxAdditional  int           `mapstructure:"max_additional"`
	ClamdAddr      string        `mapstructure:"clamd_addr"`
	DocumentURLTTL time.Duration `mapstructure:"document_url_ttl"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Location resolves the configured timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	if strings.TrimSpace(a.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables (with optional defaults).
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.AllowedOrigins = splitList(cfg.API.AllowedOrigins)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.site_name", "Job Board")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "jobboard")
	v.SetDefault("database.user", "jobboard")
	v.SetDefault("database.password", "jobboard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "applications")
	v.SetDefault("auth.private_key_file", "keys/session_private.pem")
	v.SetDefault("auth.public_key_file", "keys/session_public.pem")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_name", "admin_session")
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_ttl", 15*time.Minute)
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.use_queue", false)
	v.SetDefault("mail.send_timeout", 10*time.Second)
	v.SetDefault("upload.max_bytes", int64(5*1024*1024))
	v.SetDefault("upload.max_additional", 3)
	v.SetDefault("upload.document_url_ttl", 15*time.Minute)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"app.site_name":                  "SITE_NAME",
		"app.timezone":                   "APP_TIMEZONE",
		"app.log_level":                  "LOG_LEVEL",
		"api.port":                       "API_PORT",
		"api.allowed_origins":            "API_ALLOWED_ORIGINS",
		"api.shutdown_timeout":           "API_SHUTDOWN_TIMEOUT",
		"database.host":                  "DATABASE_HOST",
		"database.port":                  "DATABASE_PORT",
		"database.name":                  "POSTGRES_DB",
		"database.user":                  "POSTGRES_USER",
		"database.password":              "POSTGRES_PASSWORD",
		"database.sslmode":               "DATABASE_SSLMODE",
		"redis.host":                     "REDIS_HOST",
		"redis.port":                     "REDIS_PORT",
		"minio.endpoint":                 "MINIO_ENDPOINT",
		"minio.public_endpoint":          "MINIO_PUBLIC_ENDPOINT",
		"minio.region":                   "MINIO_REGION",
		"minio.bucket_lookup":            "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":       "MINIO_AUTO_CREATE_BUCKET",
		"minio.access_key_id":            "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":        "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                  "MINIO_USE_SSL",
		"minio.bucket":                   "MINIO_BUCKET",
		"auth.private_key_file":          "AUTH_PRIVATE_KEY_FILE",
		"auth.public_key_file":           "AUTH_PUBLIC_KEY_FILE",
		"auth.session_ttl":               "AUTH_SESSION_TTL",
		"auth.cookie_name":               "AUTH_COOKIE_NAME",
		"auth.cookie_domain":             "AUTH_COOKIE_DOMAIN",
		"auth.login_rate_limit_per_hour": "AUTH_LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":      "AUTH_LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_ttl":            "AUTH_LOGIN_LOCK_TTL",
		"auth.min_password_length":       "AUTH_MIN_PASSWORD_LENGTH",
		"mail.host":                      "SMTP_HOST",
		"mail.port":                      "SMTP_PORT",
		"mail.username":                  "SMTP_USERNAME",
		"mail.password":                  "SMTP_PASSWORD",
		"mail.from":                      "MAIL_FROM",
		"mail.admin_address":             "ADMIN_EMAIL",
		"mail.use_queue":                 "MAIL_USE_QUEUE",
		"mail.send_timeout":              "MAIL_SEND_TIMEOUT",
		"upload.max_bytes":               "UPLOAD_MAX_BYTES",
		"upload.max_additional":          "UPLOAD_MAX_ADDITIONAL",
		"upload.clamd_addr":              "CLAMD_ADDR",
		"upload.document_url_ttl":        "UPLOAD_DOCUMENT_URL_TTL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

// splitList 兼容逗号分隔的环境变量写法。
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return errors.New("auth session ttl must be positive")
	}
	if cfg.Auth.CookieName == "" {
		return errors.New("auth cookie name is required")
	}
	if cfg.Auth.MinPasswordLength < 8 {
		return errors.New("auth min password length must be at least 8")
	}
	if cfg.Mail.UseQueue && cfg.Mail.AdminAddress == "" {
		return errors.New("mail admin address is required when queueing admin notifications")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if cfg.Upload.MaxAdditional < 1 {
		return errors.New("upload max additional must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.App.Timezone); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", cfg.App.Timezone, err)
	}
	return nil
}
