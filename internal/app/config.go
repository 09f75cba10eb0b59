package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8081" usage:"HTTP listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	InventoryURL string `default:"http://localhost:8082" usage:"Base URL of the inventory service" flag:"inventory-url"`
	Kafka        KafkaConfig
	Resilience   ResilienceConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// KafkaConfig controls the placed-order notification channel.
type KafkaConfig struct {
	Brokers []string `default:"localhost:9092" usage:"Kafka broker addresses"`
	Topic   string   `default:"order-notifications" usage:"Topic for placed-order events"`
}

// ResilienceConfig tunes the policy guarding the inventory lookup.
type ResilienceConfig struct {
	FailureRatio  float64       `default:"0.5" usage:"Failure ratio that trips the inventory circuit" flag:"failure-ratio"`
	MinRequests   uint          `default:"5" usage:"Calls required in the window before the ratio is evaluated" flag:"min-requests"`
	Window        time.Duration `default:"30s" usage:"Rolling window for failure accounting"`
	OpenWait      time.Duration `default:"10s" usage:"Open-state duration before trial calls" flag:"open-wait"`
	HalfOpenCalls uint          `default:"2" usage:"Trial calls allowed while half-open" flag:"half-open-calls"`
	MaxRetries    uint          `default:"2" usage:"Retry attempts after a failed inventory call" flag:"max-retries"`
	RetryInterval time.Duration `default:"100ms" usage:"Initial backoff between retries" flag:"retry-interval"`
	CallTimeout   time.Duration `default:"2s" usage:"Deadline for the whole inventory call including retries" flag:"call-timeout"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the ORDERS_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8081" {
		c.Addr = "0.0.0.0:" + port
	}
}
