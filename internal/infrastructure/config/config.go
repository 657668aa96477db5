package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all framework configuration. It is built once at startup
// and passed by value to component constructors; nothing reads it from
// ambient global state.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Stream   StreamConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the event log
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address for the Redis client.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// StreamConfig holds event stream configuration: publishing retention,
// consumer group behavior, and failed-emission replay.
type StreamConfig struct {
	ConsumerGroup    string        // consumer group name for this service
	ConsumerName     string        // consumer name within the group
	EntityTypes      []string      // entity types this worker consumes, in addition to those derived from registered handlers
	BatchSize        int           // max messages claimed per poll
	BlockTimeout     time.Duration // how long a poll blocks before returning empty
	ReclaimTimeout   time.Duration // min idle time before a pending message is reclaimed
	MaxStreamLength  int64         // approximate per-topic retention (XADD MAXLEN)
	ReplayEnabled    bool          // run the failed-emission reconciler
	ReplayInterval   time.Duration // how often the reconciler polls the journal
	ReplayBatchSize  int           // journal entries replayed per poll
	ReplayMaxRetries int           // replay attempts before a journal entry goes dead
	ReplayBackoff    time.Duration // base delay of the per-entry exponential backoff
	RetentionPeriod  time.Duration // how long sent journal entries are kept
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g., ERP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Stream: StreamConfig{
			ConsumerGroup:    v.GetString("stream.consumer_group"),
			ConsumerName:     v.GetString("stream.consumer_name"),
			EntityTypes:      v.GetStringSlice("stream.entity_types"),
			BatchSize:        v.GetInt("stream.batch_size"),
			BlockTimeout:     v.GetDuration("stream.block_timeout"),
			ReclaimTimeout:   v.GetDuration("stream.reclaim_timeout"),
			MaxStreamLength:  v.GetInt64("stream.max_stream_length"),
			ReplayEnabled:    v.GetBool("stream.replay_enabled"),
			ReplayInterval:   v.GetDuration("stream.replay_interval"),
			ReplayBatchSize:  v.GetInt("stream.replay_batch_size"),
			ReplayMaxRetries: v.GetInt("stream.replay_max_retries"),
			ReplayBackoff:    v.GetDuration("stream.replay_backoff"),
			RetentionPeriod:  v.GetDuration("stream.retention_period"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erp-framework"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "erp"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Stream.ConsumerGroup == "" {
		cfg.Stream.ConsumerGroup = cfg.App.Name
	}
	if cfg.Stream.ConsumerName == "" {
		cfg.Stream.ConsumerName = cfg.App.Name + "-1"
	}
	if cfg.Stream.BatchSize == 0 {
		cfg.Stream.BatchSize = 50
	}
	if cfg.Stream.BlockTimeout == 0 {
		cfg.Stream.BlockTimeout = 5 * time.Second
	}
	if cfg.Stream.ReclaimTimeout == 0 {
		cfg.Stream.ReclaimTimeout = time.Minute
	}
	if cfg.Stream.MaxStreamLength == 0 {
		cfg.Stream.MaxStreamLength = 100_000
	}
	if cfg.Stream.ReplayInterval == 0 {
		cfg.Stream.ReplayInterval = 10 * time.Second
	}
	if cfg.Stream.ReplayBatchSize == 0 {
		cfg.Stream.ReplayBatchSize = 100
	}
	if cfg.Stream.ReplayMaxRetries == 0 {
		cfg.Stream.ReplayMaxRetries = 5
	}
	if cfg.Stream.ReplayBackoff == 0 {
		cfg.Stream.ReplayBackoff = time.Second
	}
	if cfg.Stream.RetentionPeriod == 0 {
		cfg.Stream.RetentionPeriod = 168 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Stream.BatchSize <= 0 {
		return fmt.Errorf("stream.batch_size must be positive")
	}
	if c.Stream.ReplayMaxRetries <= 0 {
		return fmt.Errorf("stream.replay_max_retries must be positive")
	}
	if c.Stream.ReplayBackoff <= 0 {
		return fmt.Errorf("stream.replay_backoff must be positive")
	}
	if c.Stream.ReclaimTimeout < c.Stream.BlockTimeout {
		return fmt.Errorf("stream.reclaim_timeout (%s) must not be shorter than stream.block_timeout (%s)",
			c.Stream.ReclaimTimeout, c.Stream.BlockTimeout)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
