package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Passes   PassesConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address      string        `env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type DatabaseConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver       string        `env:"DB_DRIVER" env-default:"sqlite"`
	DSN          string        `env:"DB_DSN" env-default:"file:event_passes.db"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	MaxLifetime  time.Duration `env:"DB_MAX_LIFETIME" env-default:"5m"`
	ConnRetries  int           `env:"DB_CONNECT_RETRIES" env-default:"5"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type RedisConfig struct {
	// Addr is optional; without it revoked sessions are kept in process memory.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	Topics  TopicConfig
}

type TopicConfig struct {
	PassesGenerated string `env:"KAFKA_TOPIC_PASSES_GENERATED" env-default:"passes.generated"`
	PassRedeemed    string `env:"KAFKA_TOPIC_PASS_REDEEMED" env-default:"passes.redeemed"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET" env-default:"change-me"`
	SessionTTL      time.Duration `env:"SESSION_TTL" env-default:"12h"`
	CookieName      string        `env:"SESSION_COOKIE" env-default:"pass_session"`
	CookieSecure    bool          `env:"SESSION_COOKIE_SECURE" env-default:"false"`
	DefaultAdmin    string        `env:"DEFAULT_ADMIN_USERNAME" env-default:"admin"`
	DefaultPassword string        `env:"DEFAULT_ADMIN_PASSWORD" env-default:"admin123"`
}

type PassesConfig struct {
	CodeRetries   int    `env:"PASS_CODE_RETRIES" env-default:"10"`
	DefaultLayout string `env:"PASS_SHEET_LAYOUT" env-default:"margin-flow"`
	// FontDir may hold DejaVuSans.ttf and DejaVuSans-Bold.ttf; the built-in Go fonts are used otherwise.
	FontDir string `env:"PASS_SHEET_FONT_DIR"`
}

type LogConfig struct {
	Dir         string `env:"LOG_DIR" env-default:"logs"`
	FileEnabled bool   `env:"LOG_FILE_ENABLED" env-default:"true"`
	Debug       bool   `env:"LOG_DEBUG" env-default:"false"`
}

// Load reads the configuration from the process environment. A .env file, if any,
// must already have been loaded by the caller.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Passes.CodeRetries < 1 {
		return fmt.Errorf("PASS_CODE_RETRIES must be at least 1, got %d", c.Passes.CodeRetries)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
	}
	return nil
}
