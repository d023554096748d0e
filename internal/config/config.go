package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`

	// Database
	PostgresURL string `envconfig:"POSTGRES_URL" required:"true"`

	// Redis
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// NATS
	NATSURL string `envconfig:"NATS_URL" required:"true"`

	// Mspace provider. Missing credentials are fatal at startup.
	MspaceUserID  string        `envconfig:"MSPACE_USER_ID" required:"true"`
	MspaceAPIKey  string        `envconfig:"MSPACE_API_KEY" required:"true"`
	MspaceBaseURL string        `envconfig:"MSPACE_BASE_URL" default:"https://api.mspace.co.ke"`
	MspaceTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s"`

	// Pricing (KES)
	SMSCostPerSegment  float64 `envconfig:"SMS_COST_PER_SEGMENT" default:"0.80"`
	VoiceCostPerCall   float64 `envconfig:"VOICE_COST_PER_CALL" default:"2.0"`
	USSDCostPerSession float64 `envconfig:"USSD_COST_PER_SESSION" default:"1.0"`
	AirtimeServiceFee  float64 `envconfig:"AIRTIME_SERVICE_FEE" default:"0.05"`
	AirtimeMinAmount   float64 `envconfig:"AIRTIME_MIN_AMOUNT" default:"10"`
	AirtimeMaxAmount   float64 `envconfig:"AIRTIME_MAX_AMOUNT" default:"10000"`

	// Dispatch
	DispatchConcurrency int `envconfig:"DISPATCH_CONCURRENCY" default:"8"`

	// Rate limiting
	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"200"`

	// Reconciler
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	ReconcileBatch    int           `envconfig:"RECONCILE_BATCH" default:"100"`

	// Observability
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
