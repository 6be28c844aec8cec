package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	GRPCAddr string

	DB    DBConfig
	Redis RedisConfig
	Kafka KafkaConfig

	JWTSecret      string
	JWTTTL         time.Duration
	JaegerEndpoint string

	CheckoutTimeout       time.Duration
	AllowOverdraft        bool
	LowStockThreshold     int
	CacheTTL              time.Duration
	BreakerMaxFailures    int
	NotificationInboxSize int
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns a lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "production"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),
		DB: DBConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "shopdb"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 10),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC", "order_events"),
		},
		JWTSecret:             getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTTTL:                getEnvDuration("JWT_TTL", 24*time.Hour),
		JaegerEndpoint:        getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		CheckoutTimeout:       getEnvDuration("CHECKOUT_TIMEOUT", 10*time.Second),
		AllowOverdraft:        getEnvBool("WALLET_ALLOW_OVERDRAFT", false),
		LowStockThreshold:     getEnvInt("LOW_STOCK_THRESHOLD", 10),
		CacheTTL:              getEnvDuration("CACHE_TTL", 5*time.Minute),
		BreakerMaxFailures:    getEnvInt("BREAKER_MAX_FAILURES", 5),
		NotificationInboxSize: getEnvInt("NOTIFICATION_INBOX_SIZE", 50),
	}
}

func (c Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
