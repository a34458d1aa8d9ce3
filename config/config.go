package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/oblivion-social/oblivion-api/pkg/wallet"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Timeline  TimelineConfig  `mapstructure:"timeline"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableSwagger   bool          `mapstructure:"enable_swagger"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// RedisConfig 为空地址时不启用缓存与跨实例推送
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LLMConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AssistantConfig AI 评论助手账号
type AssistantConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Wallet      string `mapstructure:"wallet"`
	Username    string `mapstructure:"username"`
	DisplayName string `mapstructure:"display_name"`
	Avatar      string `mapstructure:"avatar"`
	Workers     int    `mapstructure:"workers"`
}

type ChainConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ContractAddress string        `mapstructure:"contract_address"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Backend         string `mapstructure:"backend"` // local | firebase
	LocalDir        string `mapstructure:"local_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	FirebaseBucket  string `mapstructure:"firebase_bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
}

type TimelineConfig struct {
	Workers      int           `mapstructure:"workers"`
	BatchSize    int           `mapstructure:"batch_size"`
	ClaimLimit   int           `mapstructure:"claim_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type JobsConfig struct {
	TrendingRefresh   string        `mapstructure:"trending_refresh"`
	NotificationPrune string        `mapstructure:"notification_prune"`
	NotificationTTL   time.Duration `mapstructure:"notification_ttl"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.enable_swagger", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "oblivion.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 72*time.Hour)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "oblivion-api")
	v.SetDefault("tracing.sample_ratio", 0.1)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("llm.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("assistant.enabled", false)
	v.SetDefault("assistant.wallet", "0x00000000000000000000000000000000000a1a1a")
	v.SetDefault("assistant.username", "oblivionai")
	v.SetDefault("assistant.display_name", "Oblivion AI")
	v.SetDefault("assistant.avatar", "")
	v.SetDefault("assistant.workers", 2)

	v.SetDefault("chain.endpoint", "")
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.timeout", 30*time.Second)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.public_base_url", "/media")
	v.SetDefault("storage.firebase_bucket", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.max_upload_bytes", int64(10<<20))

	v.SetDefault("timeline.workers", 4)
	v.SetDefault("timeline.batch_size", 500)
	v.SetDefault("timeline.claim_limit", 64)
	v.SetDefault("timeline.poll_interval", 200*time.Millisecond)

	v.SetDefault("jobs.trending_refresh", "@every 5m")
	v.SetDefault("jobs.notification_prune", "@daily")
	v.SetDefault("jobs.notification_ttl", 90*24*time.Hour)
	v.SetDefault("jobs.cache_ttl", 2*time.Minute)
}

// Load 从 config.yaml（当前目录或 ./config）和 OBLIVION_* 环境变量读取配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 读取指定配置文件；path 为空时按默认路径查找，找不到文件不算错误
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OBLIVION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查必须的配置项，并规范化助手钱包地址
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
	case "firebase":
		if c.Storage.FirebaseBucket == "" {
			return errors.New("storage.firebase_bucket is required for the firebase backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Assistant.Enabled || c.Assistant.Wallet != "" {
		// 用户 ID 一律小写，助手账号也一样
		addr, err := wallet.Normalize(c.Assistant.Wallet)
		if err != nil {
			return fmt.Errorf("assistant.wallet: %w", err)
		}
		c.Assistant.Wallet = addr
	}
	if c.Server.Mode == "release" && c.JWT.Secret == "" {
		return errors.New("jwt.secret is required in release mode")
	}
	return nil
}

// Addr 监听地址
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }
