package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "APP"

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Lottery  *LotteryConfig  `mapstructure:"lottery"`

	v *viper.Viper
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

func (c *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.DB,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// LotteryConfig tunes the background draw workers.
type LotteryConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	ProgressBatch   int           `mapstructure:"progress_batch"`
	CommitTimeout   time.Duration `mapstructure:"commit_timeout"`
	CommitRetries   int           `mapstructure:"commit_retries"`
	CommitBatchSize int           `mapstructure:"commit_batch_size"`
	// ReapInterval paces retries of jobs that could not be marked FAILED.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.base_url", "localhost:8080")
	v.SetDefault("api.allowed_cors_domains", []string{})
	v.SetDefault("api.jwt_signing_key", "")
	v.SetDefault("gin.mode", "release")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db", "jobshadow")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("lottery.workers", 2)
	v.SetDefault("lottery.queue_size", 16)
	v.SetDefault("lottery.progress_batch", 50)
	v.SetDefault("lottery.commit_timeout", 45*time.Second)
	v.SetDefault("lottery.commit_retries", 3)
	v.SetDefault("lottery.commit_batch_size", 500)
	v.SetDefault("lottery.reap_interval", 30*time.Second)
}

// Load reads the YAML file at path. Every key can be overridden from the
// environment, e.g. APP_API_PORT or APP_LOTTERY_WORKERS.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
		}
	}

	conf := &AppConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}
	conf.v = v

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *AppConfig) validate() error {
	if c.API.Port == "" {
		return errors.New("api.port is required")
	}
	if c.API.JWTSigningKey == "" {
		return errors.New("api.jwt_signing_key is required")
	}
	if c.Lottery.Workers < 1 {
		return fmt.Errorf("lottery.workers must be at least 1, got %d", c.Lottery.Workers)
	}
	if c.Lottery.QueueSize < 1 {
		return fmt.Errorf("lottery.queue_size must be at least 1, got %d", c.Lottery.QueueSize)
	}
	if c.Lottery.CommitTimeout <= 0 {
		return errors.New("lottery.commit_timeout must be positive")
	}
	if c.Lottery.CommitRetries < 0 {
		return errors.New("lottery.commit_retries must not be negative")
	}
	if c.Lottery.ReapInterval <= 0 {
		return errors.New("lottery.reap_interval must be positive")
	}

	return nil
}

// OnChange watches the loaded file and calls fn on every write. Values
// already unmarshalled are not refreshed.
func (c *AppConfig) OnChange(fn func(fsnotify.Event)) {
	if c.v == nil {
		return
	}
	c.v.OnConfigChange(fn)
	c.v.WatchConfig()
}
