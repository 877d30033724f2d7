package kafka

import (
	"time"

	"RiskPulse/pkg/config"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool
	HashByKey    bool
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Brokers = brokers
	}
}

// WithCompression accepts gzip, snappy, lz4, zstd or none.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Compression = compression
	}
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
	}
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

// WithTimeouts sets writer read/write timeouts. Zero values keep the default.
func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if write > 0 {
			c.WriteTimeout = write
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.Async = async
	}
}

// WithHashByKey routes messages with the same key to the same partition.
func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.HashByKey = hash
	}
}

// ProducerOptionsFromConfig maps the kafka section of the app config.
// Payloads are keyed by id, so key hashing is always on.
func ProducerOptionsFromConfig(cfg config.KafkaConfig) []ProducerOption {
	p := cfg.Producer
	return []ProducerOption{
		WithBrokers(cfg.Brokers),
		WithRequiredAcks(cfg.RequiredAcks),
		WithCompression(cfg.Compression),
		WithMaxAttempts(p.MaxAttempts),
		WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		WithAsync(p.Async),
		WithHashByKey(true),
	}
}

// ConsumerOptionsFromConfig maps the kafka.consumer section of the app config.
func ConsumerOptionsFromConfig(cfg config.KafkaConfig) []ConsumerOption {
	c := cfg.Consumer
	return []ConsumerOption{
		WithConsumerBrokers(cfg.Brokers),
		WithConsumerGroupID(c.GroupID),
		WithConsumerWorkers(c.Workers),
		WithConsumerBufferSize(c.BufferSize),
		WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		WithConsumerDLQ(c.DLQTopic),
		WithConsumerFetch(c.MinBytes, c.MaxBytes),
	}
}
