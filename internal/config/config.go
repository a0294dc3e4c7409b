package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "CLINIC"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	RefreshSecret      string `mapstructure:"refresh_secret"`
	ExpiryHours        int    `mapstructure:"expiry_hours"`
	RefreshExpiryHours int    `mapstructure:"refresh_expiry_hours"`
}

type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	PoolSize         int           `mapstructure:"pool_size"`
	MinIdleConns     int           `mapstructure:"min_idle_conns"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	ChannelPrefix    string        `mapstructure:"channel_prefix"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// HealthPort serves the worker's /health and /metrics.
	HealthPort int `mapstructure:"health_port"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Enabled  bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type CacheConfig struct {
	AvailabilityTTL time.Duration `mapstructure:"availability_ttl"`
}

// AdminConfig seeds the first admin account when both fields are set.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// envOverrides are read from CLINIC_* variables and take precedence over the file.
type envOverrides struct {
	Port          int    `envconfig:"PORT"`
	DBHost        string `envconfig:"DB_HOST"`
	DBPort        int    `envconfig:"DB_PORT"`
	DBUser        string `envconfig:"DB_USER"`
	DBPassword    string `envconfig:"DB_PASSWORD"`
	DBName        string `envconfig:"DB_NAME"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	RefreshSecret string `envconfig:"JWT_REFRESH_SECRET"`
	RedisURL      string `envconfig:"REDIS_URL"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_page_size", 100)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("jwt.refresh_expiry_hours", 168)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.failure_threshold", 5)
	v.SetDefault("redis.open_timeout", "30s")
	v.SetDefault("redis.channel_prefix", "clinic")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "500ms")
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.retention_days", 7)
	v.SetDefault("outbox.cleanup_interval", "1h")
	v.SetDefault("outbox.health_port", 8081)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@clinic.local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})

	v.SetDefault("cache.availability_ttl", "5m")
}

// LoadConfig reads config.yaml from the given paths (defaults to . and
// ./config), then applies CLINIC_* environment overrides. A missing file is
// not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	config.applyEnv(env)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv(env envOverrides) {
	setInt(&c.Server.Port, env.Port)
	setString(&c.Database.Host, env.DBHost)
	setInt(&c.Database.Port, env.DBPort)
	setString(&c.Database.User, env.DBUser)
	setString(&c.Database.Password, env.DBPassword)
	setString(&c.Database.Name, env.DBName)
	setString(&c.JWT.Secret, env.JWTSecret)
	setString(&c.JWT.RefreshSecret, env.RefreshSecret)
	setString(&c.Redis.URL, env.RedisURL)
	setString(&c.SMTP.Password, env.SMTPPassword)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Admin.Email, env.AdminEmail)
	setString(&c.Admin.Password, env.AdminPassword)
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required (set CLINIC_JWT_SECRET)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return errors.New("smtp.host is required when smtp is enabled")
	}
	return nil
}

func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpiryHours) * time.Hour
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
