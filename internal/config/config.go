package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort       string
	AppEnv        string
	LogLevel      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	MigrationsDir string

	JWTSecret  string
	JWTTTL     string
	RefreshTTL string

	ShippingFreeThreshold string
	ShippingFlatFee       string
	OrderNoAttempts       string

	RedisAddr     string
	RedisPassword string
	CacheTTL      string

	JaegerEndpoint string

	KafkaBrokers           string
	KafkaClientID          string
	KafkaGroupID           string
	KafkaRetryGroupID      string
	KafkaInstanceID        string
	KafkaTopicPartitions   string
	KafkaRetryPartitions   string
	KafkaReplicationFactor string
	EventDrivenEnabled     string
}

func Load() *Config {
	instanceID := os.Getenv("KAFKA_INSTANCE_ID")
	if instanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			instanceID = "unknown"
		} else {
			instanceID = hostname
		}
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "storefront"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "db/migrations"),

		JWTSecret:  getEnv("JWT_SECRET", "change-me-in-production"),
		JWTTTL:     getEnv("JWT_TTL", "168h"),
		RefreshTTL: getEnv("REFRESH_TTL", "720h"),

		ShippingFreeThreshold: getEnv("SHIPPING_FREE_THRESHOLD", "99"),
		ShippingFlatFee:       getEnv("SHIPPING_FLAT_FEE", "10"),
		OrderNoAttempts:       getEnv("ORDER_NO_ATTEMPTS", "5"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      getEnv("CACHE_TTL", "5m"),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),

		KafkaBrokers:           getEnv("KAFKA_BROKERS", "kafka:9092"),
		KafkaClientID:          getEnv("KAFKA_CLIENT_ID", "storefront"),
		KafkaGroupID:           getEnv("KAFKA_GROUP_ID", "storefront-claims"),
		KafkaRetryGroupID:      getEnv("KAFKA_RETRY_GROUP_ID", "storefront-claims-retry"),
		KafkaInstanceID:        instanceID,
		KafkaTopicPartitions:   getEnv("KAFKA_TOPIC_PARTITIONS", "3"),
		KafkaRetryPartitions:   getEnv("KAFKA_RETRY_PARTITIONS", "1"),
		KafkaReplicationFactor: getEnv("KAFKA_REPLICATION_FACTOR", "1"),
		EventDrivenEnabled:     getEnv("EVENT_DRIVEN_ENABLED", "false"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) EventDriven() bool {
	enabled, err := strconv.ParseBool(c.EventDrivenEnabled)
	return err == nil && enabled
}

func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.JWTTTL, 7*24*time.Hour)
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return parseDuration(c.RefreshTTL, 30*24*time.Hour)
}

func (c *Config) CacheExpiry() time.Duration {
	return parseDuration(c.CacheTTL, 5*time.Minute)
}

func (c *Config) FreeShippingThreshold() decimal.Decimal {
	return parseDecimal(c.ShippingFreeThreshold, decimal.NewFromInt(99))
}

func (c *Config) FlatShippingFee() decimal.Decimal {
	return parseDecimal(c.ShippingFlatFee, decimal.NewFromInt(10))
}

func (c *Config) OrderNumberAttempts() int {
	return parseInt(c.OrderNoAttempts, 5)
}

func (c *Config) TopicPartitions() int {
	return parseInt(c.KafkaTopicPartitions, 3)
}

func (c *Config) RetryPartitions() int {
	return parseInt(c.KafkaRetryPartitions, 1)
}

func (c *Config) ReplicationFactor() int16 {
	value := parseInt(c.KafkaReplicationFactor, 1)
	return int16(value)
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseDecimal(value string, fallback decimal.Decimal) decimal.Decimal {
	parsed, err := decimal.NewFromString(value)
	if err != nil || parsed.IsNegative() {
		return fallback
	}
	return parsed
}
