package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"requisiciones/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port    int    `mapstructure:"PORT"`
	Env     string `mapstructure:"APP_ENV"` // development | production
	LogJSON bool   `mapstructure:"LOG_JSON"`

	// Database. DATABASE_URL wins over the DB_* parts.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`

	// Auth
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TokenTTLHours int    `mapstructure:"TOKEN_TTL_HOURS"`

	// Initial admin, created at startup only while no admin account exists.
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	// Numbering
	SchoolTimezone  string `mapstructure:"SCHOOL_TIMEZONE"`
	SequenceBackend string `mapstructure:"SEQUENCE_BACKEND"` // postgres | redis
	RedisURL        string `mapstructure:"REDIS_URL"`

	// Support documents; content stays in Postgres when MINIO_ENDPOINT is empty.
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioRegion    string `mapstructure:"MINIO_REGION"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	CORSOrigins    string `mapstructure:"CORS_ORIGINS"`
	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
}

// Load reads configuration from environment variables, after loading an
// optional .env file (configs/.env, then ./.env).
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_JSON", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "requisiciones")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("TOKEN_TTL_HOURS", 12)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("SCHOOL_TIMEZONE", "America/Bogota")
	v.SetDefault("SEQUENCE_BACKEND", BackendPostgres)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("MINIO_BUCKET", "soportes")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	v.SetDefault("METRICS_ENABLED", true)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET", "ADMIN_EMAIL", "ADMIN_PASSWORD",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_REGION", "MINIO_USE_SSL",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	switch c.SequenceBackend {
	case BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("SEQUENCE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendRedis, c.SequenceBackend)
	}
	if _, err := time.LoadLocation(c.SchoolTimezone); err != nil {
		return fmt.Errorf("SCHOOL_TIMEZONE: %w", err)
	}
	return nil
}

// SeedsAdmin reports whether startup should ensure an initial admin account.
func (c *Config) SeedsAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchoolTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) Storage() storage.Config {
	return storage.Config{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		Region:    c.MinioRegion,
		UseSSL:    c.MinioUseSSL,
	}
}
