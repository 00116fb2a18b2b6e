package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Payments      PaymentsConfig
	Notifications NotificationsConfig
	Cron          CronConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STABLECOIN_APP_ENV" required:"true"`
	Port         string `envconfig:"STABLECOIN_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STABLECOIN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STABLECOIN_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STABLECOIN_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `envconfig:"STABLECOIN_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout   time.Duration `envconfig:"STABLECOIN_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	// CORSOrigins is a comma-separated allow list for browser clients.
	CORSOrigins []string `envconfig:"STABLECOIN_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type PaymentsConfig struct {
	RequestWindow  time.Duration   `envconfig:"STABLECOIN_PAYMENT_REQUEST_WINDOW" default:"15m"`
	StaticWindow   time.Duration   `envconfig:"STABLECOIN_PAYMENT_STATIC_WINDOW" default:"24h"`
	// FeeRate is the network fee withheld from each settlement (0.01 = 1%).
	FeeRate        decimal.Decimal `envconfig:"STABLECOIN_PAYMENT_FEE_RATE" default:"0.01"`
	MaxAmountScale int32           `envconfig:"STABLECOIN_PAYMENT_MAX_AMOUNT_SCALE" default:"6"`
	Network        string          `envconfig:"STABLECOIN_PAYMENT_NETWORK" default:"Polygon"`
}

type NotificationsConfig struct {
	SubscriberBuffer int `envconfig:"STABLECOIN_NOTIFY_SUBSCRIBER_BUFFER" default:"4"`
	ForwarderQueue   int `envconfig:"STABLECOIN_NOTIFY_FORWARDER_QUEUE" default:"256"`
}

type CronConfig struct {
	Enabled   bool          `envconfig:"STABLECOIN_CRON_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"STABLECOIN_CRON_INTERVAL" default:"30s"`
	Retention time.Duration `envconfig:"STABLECOIN_CRON_RETENTION" default:"168h"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STABLECOIN_REDIS_URL"`
	Address      string        `envconfig:"STABLECOIN_REDIS_ADDR"`
	Password     string        `envconfig:"STABLECOIN_REDIS_PASSWORD"`
	DB           int           `envconfig:"STABLECOIN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STABLECOIN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STABLECOIN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STABLECOIN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STABLECOIN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STABLECOIN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type RateLimitConfig struct {
	SettleLimit  int           `envconfig:"STABLECOIN_SETTLE_RATE_LIMIT" default:"30"`
	SettleWindow time.Duration `envconfig:"STABLECOIN_SETTLE_RATE_WINDOW" default:"1m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STABLECOIN_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	StatusTopic string `envconfig:"STABLECOIN_PUBSUB_STATUS_TOPIC"`
}

// Enabled reports whether status events should be forwarded to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.StatusTopic) != ""
}

func (c *Config) validate() error {
	if c.Payments.RequestWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymentRequestWindow)
	}
	if c.Payments.StaticWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymentStaticWindow)
	}
	rate := c.Payments.FeeRate
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1), got %s", EnvPaymentFeeRate, rate)
	}
	if c.Payments.MaxAmountScale < 1 || c.Payments.MaxAmountScale > 18 {
		return fmt.Errorf("%s must be between 1 and 18", EnvPaymentMaxAmountScale)
	}
	if c.Cron.Interval <= 0 {
		return fmt.Errorf("%s must be positive", EnvCronInterval)
	}
	if c.PubSub.Enabled() && strings.TrimSpace(c.GCP.ProjectID) == "" {
		return fmt.Errorf("%s requires %s", EnvPubSubStatusTopic, EnvGCPProjectID)
	}
	return nil
}
