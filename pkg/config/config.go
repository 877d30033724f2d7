package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "RISKPULSE_"

type Config struct {
	Environment  string             `yaml:"environment" env:"ENVIRONMENT" default:"development"`
	Server       ServerConfig       `yaml:"server" envPrefix:"SERVER_"`
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
	Metrics      MetricsConfig      `yaml:"metrics" envPrefix:"METRICS_"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" envPrefix:"ORCHESTRATOR_"`
	Ingest       IngestConfig       `yaml:"ingest" envPrefix:"INGEST_"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Analytics    AnalyticsConfig    `yaml:"analytics" envPrefix:"ANALYTICS_"`
	Sinks        SinksConfig        `yaml:"sinks" envPrefix:"SINKS_"`
	Kafka        KafkaConfig        `yaml:"kafka" envPrefix:"KAFKA_"`
	ClickHouse   ClickHouseConfig   `yaml:"clickhouse" envPrefix:"CLICKHOUSE_"`
	Redis        RedisConfig        `yaml:"redis" envPrefix:"REDIS_"`
	Retention    RetentionConfig    `yaml:"retention" envPrefix:"RETENTION_"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" default:"15s"`
	CORS            bool          `yaml:"cors" env:"CORS" default:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" default:"info"`
	Format string `yaml:"format" env:"FORMAT" default:"console"`
	Output string `yaml:"output" env:"OUTPUT" default:"stdout"`
	// Collect aggregates repeated error logs and ships them to Kafka.
	Collect       bool          `yaml:"collect" env:"COLLECT"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL" default:"30s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED" default:"true"`
	Path    string `yaml:"path" env:"PATH" default:"/metrics"`
}

// OrchestratorConfig is the runtime configuration surface of the scheduler.
// It is hot-reloaded from the config file.
type OrchestratorConfig struct {
	AutoStart            bool          `yaml:"auto_start" env:"AUTO_START" default:"true"`
	PollInterval         time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" default:"5s"`
	PerformanceThreshold time.Duration `yaml:"performance_threshold" env:"PERFORMANCE_THRESHOLD" default:"1s"`
	HighRiskThreshold    float64       `yaml:"high_risk_threshold" env:"HIGH_RISK_THRESHOLD" default:"75"`
	ReadTimeout          time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"2s"`
}

type IngestConfig struct {
	MaxRPS     int `yaml:"max_rps" env:"MAX_RPS" default:"200"`
	BufferSize int `yaml:"buffer_size" env:"BUFFER_SIZE" default:"1000"`
	// WorkingSetSize bounds the in-memory signal window fed to clustering.
	WorkingSetSize int `yaml:"working_set_size" env:"WORKING_SET_SIZE" default:"500"`
}

type RateLimitConfig struct {
	Capacity     float64 `yaml:"capacity" env:"CAPACITY" default:"20"`
	RefillPerSec float64 `yaml:"refill_per_sec" env:"REFILL_PER_SEC" default:"10"`
}

type AnalyticsConfig struct {
	Mode       string        `yaml:"mode" env:"MODE" default:"static"` // static or http
	ServiceURL string        `yaml:"service_url" env:"SERVICE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT" default:"3s"`
	Retries    int           `yaml:"retries" env:"RETRIES" default:"3"`
	Static     StaticConfig  `yaml:"static" envPrefix:"STATIC_"`
}

// StaticConfig holds the fixed values served in static mode.
type StaticConfig struct {
	Coefficients []float64 `yaml:"coefficients" env:"COEFFICIENTS" default:"[0.82,0.64,0.41]"`
	StrongLinks  int       `yaml:"strong_links" env:"STRONG_LINKS" default:"2"`
	Cascades     int       `yaml:"cascades" env:"CASCADES" default:"0"`
	NodeCount    int       `yaml:"node_count" env:"NODE_COUNT" default:"6"`
	RiskShift    float64   `yaml:"risk_shift" env:"RISK_SHIFT" default:"0.4"`
}

type SinksConfig struct {
	Redis      bool `yaml:"redis" env:"REDIS"`
	Kafka      bool `yaml:"kafka" env:"KAFKA"`
	ClickHouse bool `yaml:"clickhouse" env:"CLICKHOUSE"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers" env:"BROKERS" default:"[\"localhost:9092\"]"`
	SignalsTopic string   `yaml:"signals_topic" env:"SIGNALS_TOPIC" default:"signals"`
	PayloadTopic string   `yaml:"payload_topic" env:"PAYLOAD_TOPIC" default:"intelligence"`
	EventsTopic  string   `yaml:"events_topic" env:"EVENTS_TOPIC" default:"intelligence_events"`
	LogsTopic    string   `yaml:"logs_topic" env:"LOGS_TOPIC" default:"logs_topic"`
	RequiredAcks int      `yaml:"required_acks" env:"REQUIRED_ACKS" default:"1"`
	Compression  string   `yaml:"compression" env:"COMPRESSION" default:"snappy"`
	// Consume enables signal ingestion from SignalsTopic.
	Consume  bool           `yaml:"consume" env:"CONSUME"`
	Producer ProducerConfig `yaml:"producer" envPrefix:"PRODUCER_"`
	Consumer ConsumerConfig `yaml:"consumer" envPrefix:"CONSUMER_"`
}

type ProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" default:"3"`
	Linger       time.Duration `yaml:"linger" env:"LINGER" default:"10ms"`
	BatchBytes   int           `yaml:"batch_bytes" env:"BATCH_BYTES" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" env:"BATCH_SIZE" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"10s"`
	Async        bool          `yaml:"async" env:"ASYNC"`
}

type ConsumerConfig struct {
	GroupID    string        `yaml:"group_id" env:"GROUP_ID" default:"riskpulse"`
	Workers    int           `yaml:"workers" env:"WORKERS" default:"4"`
	BufferSize int           `yaml:"buffer_size" env:"BUFFER_SIZE" default:"256"`
	RetryMax   int           `yaml:"retry_max" env:"RETRY_MAX" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" env:"BACKOFF_MIN" default:"100ms"`
	BackoffMax time.Duration `yaml:"backoff_max" env:"BACKOFF_MAX" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic" env:"DLQ_TOPIC" default:"signals_dlq"`
	MinBytes   int           `yaml:"min_bytes" env:"MIN_BYTES" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" env:"MAX_BYTES" default:"10485760"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" env:"HOST" default:"localhost"`
	Port             int           `yaml:"port" env:"PORT" default:"9000"`
	Database         string        `yaml:"database" env:"DATABASE" default:"riskpulse"`
	User             string        `yaml:"user" env:"USER" default:"default"`
	Password         string        `yaml:"password" env:"PASSWORD"`
	UseHTTP          bool          `yaml:"use_http" env:"USE_HTTP"`
	AsyncInsert      bool          `yaml:"async_insert" env:"ASYNC_INSERT"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" env:"WAIT_FOR_ASYNC_INSERT"`
	DialTimeout      time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" env:"MAX_EXECUTION_TIME" default:"60s"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr" env:"ADDR" default:"localhost:6379"`
	Password    string        `yaml:"password" env:"PASSWORD"`
	DB          int           `yaml:"db" env:"DB"`
	SnapshotKey string        `yaml:"snapshot_key" env:"SNAPSHOT_KEY" default:"riskpulse:intelligence:latest"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" env:"SNAPSHOT_TTL" default:"5m"`
}

type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Schedule string        `yaml:"schedule" env:"SCHEDULE" default:"@every 1h"`
	MaxAge   time.Duration `yaml:"max_age" env:"MAX_AGE" default:"168h"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with RISKPULSE_* environment variables.
// An empty path yields defaults plus environment.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	if err := ParseEnv(c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// ParseEnv applies environment overrides to target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	switch c.Analytics.Mode {
	case "static":
	case "http":
		if c.Analytics.ServiceURL == "" {
			return fmt.Errorf("analytics.service_url is required in http mode")
		}
	default:
		return fmt.Errorf("analytics.mode must be 'static' or 'http', got '%s'", c.Analytics.Mode)
	}
	if (c.Sinks.Kafka || c.Kafka.Consume) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Ingest.WorkingSetSize <= 0 {
		return fmt.Errorf("ingest.working_set_size must be positive")
	}
	return nil
}

// Validate checks the runtime surface on its own, for hot reloads.
func (o OrchestratorConfig) Validate() error {
	if o.PollInterval <= 0 {
		return fmt.Errorf("orchestrator.poll_interval must be positive")
	}
	if o.PerformanceThreshold <= 0 {
		return fmt.Errorf("orchestrator.performance_threshold must be positive")
	}
	if o.HighRiskThreshold < 0 || o.HighRiskThreshold > 100 {
		return fmt.Errorf("orchestrator.high_risk_threshold must be within [0,100], got %v", o.HighRiskThreshold)
	}
	if o.ReadTimeout <= 0 {
		return fmt.Errorf("orchestrator.read_timeout must be positive")
	}
	return nil
}
