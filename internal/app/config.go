package app

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Драйверы хранилища заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Транспорт уведомлений.
const (
	NotificationTransportHTTP     = "http"
	NotificationTransportRabbitMQ = "rabbitmq"
)

const envPrefix = "ORDERS_"

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	ProductServiceURL      string
	NotificationServiceURL string
	NotificationTransport  string
	RabbitMQURL            string
	RabbitMQExchange       string
	FrontendURL            string
	GatewayTimeout         time.Duration

	AbandonmentGracePeriod time.Duration
	SweepInterval          time.Duration

	KafkaBrokers       []string
	KafkaOrderTopic    string
	KafkaPaymentTopic  string
	KafkaConsumerGroup string
	KafkaDLQTopic      string

	OTLPEndpoint    string
	TraceSampleRate float64
	Environment     string
	LogLevel        string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		ProductServiceURL:      "http://localhost:8082",
		NotificationServiceURL: "http://localhost:8085",
		NotificationTransport:  NotificationTransportHTTP,
		RabbitMQExchange:       "notifications",
		FrontendURL:            "http://localhost:5173",
		GatewayTimeout:         5 * time.Second,

		AbandonmentGracePeriod: 15 * time.Minute,
		SweepInterval:          60 * time.Second,

		KafkaOrderTopic:    "orders.events",
		KafkaPaymentTopic:  "payments.events",
		KafkaConsumerGroup: "order-service",
		KafkaDLQTopic:      "orders.dlq",

		TraceSampleRate: 1.0,
		Environment:     "development",
		LogLevel:        "info",
	}
}

// LoadConfigFromEnv накладывает переменные ORDERS_* на DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	env.str("HTTP_ADDR", &cfg.HTTPAddr)
	env.str("GRPC_ADDR", &cfg.GRPCAddr)
	env.str("METRICS_ADDR", &cfg.MetricsAddr)

	env.str("STORAGE_DRIVER", &cfg.StorageDriver)
	env.str("POSTGRES_DSN", &cfg.PostgresDSN)
	env.boolean("POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)

	env.str("PRODUCT_SERVICE_URL", &cfg.ProductServiceURL)
	env.str("NOTIFICATION_SERVICE_URL", &cfg.NotificationServiceURL)
	env.str("NOTIFICATION_TRANSPORT", &cfg.NotificationTransport)
	env.str("RABBITMQ_URL", &cfg.RabbitMQURL)
	env.str("RABBITMQ_EXCHANGE", &cfg.RabbitMQExchange)
	env.str("FRONTEND_URL", &cfg.FrontendURL)
	env.duration("GATEWAY_TIMEOUT", &cfg.GatewayTimeout)

	env.duration("ABANDONMENT_GRACE_PERIOD", &cfg.AbandonmentGracePeriod)
	env.duration("SWEEP_INTERVAL", &cfg.SweepInterval)

	env.list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	env.str("KAFKA_ORDER_TOPIC", &cfg.KafkaOrderTopic)
	env.str("KAFKA_PAYMENT_TOPIC", &cfg.KafkaPaymentTopic)
	env.str("KAFKA_CONSUMER_GROUP", &cfg.KafkaConsumerGroup)
	env.str("KAFKA_DLQ_TOPIC", &cfg.KafkaDLQTopic)

	env.str("OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	env.float("TRACE_SAMPLE_RATE", &cfg.TraceSampleRate)
	env.str("ENVIRONMENT", &cfg.Environment)
	env.str("LOG_LEVEL", &cfg.LogLevel)

	if env.err != nil {
		return Config{}, env.err
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	cfg.NotificationTransport = strings.ToLower(cfg.NotificationTransport)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	for name, addr := range map[string]string{
		"http addr":    c.HTTPAddr,
		"grpc addr":    c.GRPCAddr,
		"metrics addr": c.MetricsAddr,
	} {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("invalid config: %s is required", name)
		}
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("invalid config: postgres dsn is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("invalid config: unknown storage driver %q", c.StorageDriver)
	}

	if err := validateURL("product service url", c.ProductServiceURL); err != nil {
		return err
	}
	if err := validateURL("frontend url", c.FrontendURL); err != nil {
		return err
	}

	switch c.NotificationTransport {
	case NotificationTransportHTTP:
		if err := validateURL("notification service url", c.NotificationServiceURL); err != nil {
			return err
		}
	case NotificationTransportRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			return fmt.Errorf("invalid config: rabbitmq url is required for notification transport %q", c.NotificationTransport)
		}
		if strings.TrimSpace(c.RabbitMQExchange) == "" {
			return fmt.Errorf("invalid config: rabbitmq exchange is required")
		}
	default:
		return fmt.Errorf("invalid config: unknown notification transport %q", c.NotificationTransport)
	}

	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("invalid config: gateway timeout must be positive")
	}
	if c.AbandonmentGracePeriod <= 0 {
		return fmt.Errorf("invalid config: abandonment grace period must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid config: sweep interval must be positive")
	}
	if len(c.KafkaBrokers) > 0 && (c.KafkaOrderTopic == "" || c.KafkaPaymentTopic == "" || c.KafkaConsumerGroup == "") {
		return fmt.Errorf("invalid config: kafka topics and consumer group are required when brokers are set")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("invalid config: trace sample rate must be between 0 and 1")
	}
	return nil
}

// KafkaEnabled сообщает, настроена ли шина событий.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid config: %s %q must be an absolute url", name, raw)
	}
	return nil
}

// envReader запоминает первую ошибку разбора, чтобы не проверять каждую переменную.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) value(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := r.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("invalid config: %s%s=%q: %w", envPrefix, key, v, err)
		return
	}
	*dst = parsed
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		r.err = fmt.Errorf("invalid config: %s%s=%q: %w", envPrefix, key, v, err)
		return
	}
	*dst = parsed
}

func (r *envReader) float(key string, dst *float64) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = fmt.Errorf("invalid config: %s%s=%q: %w", envPrefix, key, v, err)
		return
	}
	*dst = parsed
}
