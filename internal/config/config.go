package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string
	MongoURI          string
	DBName            string
	MongoTransactions bool
	JWTSecret         string
	RequestTimeout    time.Duration

	Razorpay RazorpayConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Log      LogConfig
}

type RazorpayConfig struct {
	KeyID           string
	KeySecret       string
	BaseURL         string
	Currency        string
	MinorUnitFactor int64
	Timeout         time.Duration
}

// RedisConfig is optional; an empty Addr disables the payment lock.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PaymentLockTTL time.Duration
}

// AMQPConfig is optional; an empty URL disables event publishing.
type AMQPConfig struct {
	URL      string
	Exchange string
}

type LogConfig struct {
	Level    string
	Encoding string
}

// Load reads .env (when present), an optional CONFIG_FILE and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("PORT"),
		MongoURI:          strings.TrimSpace(v.GetString("MONGO_URI")),
		DBName:            v.GetString("DB_NAME"),
		MongoTransactions: v.GetBool("MONGO_TRANSACTIONS"),
		JWTSecret:         strings.TrimSpace(v.GetString("JWT_SECRET")),
		RequestTimeout:    v.GetDuration("REQUEST_TIMEOUT"),
		Razorpay: RazorpayConfig{
			KeyID:           strings.TrimSpace(v.GetString("RAZORPAY_KEY_ID")),
			KeySecret:       strings.TrimSpace(v.GetString("RAZORPAY_KEY_SECRET")),
			BaseURL:         strings.TrimRight(v.GetString("RAZORPAY_BASE_URL"), "/"),
			Currency:        strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
			MinorUnitFactor: v.GetInt64("PAYMENT_MINOR_UNIT_FACTOR"),
			Timeout:         v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:           strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			PaymentLockTTL: v.GetDuration("PAYMENT_LOCK_TTL"),
		},
		AMQP: AMQPConfig{
			URL:      strings.TrimSpace(v.GetString("AMQP_URL")),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_NAME", "thriftstore")
	v.SetDefault("MONGO_TRANSACTIONS", false)
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("PAYMENT_CURRENCY", "INR")
	v.SetDefault("PAYMENT_MINOR_UNIT_FACTOR", 100)
	v.SetDefault("GATEWAY_TIMEOUT", 4*time.Second)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PAYMENT_LOCK_TTL", 30*time.Second)
	v.SetDefault("AMQP_EXCHANGE", "orders.exchange")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
}

func (c *Config) validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required"))
	}
	if c.Razorpay.Timeout <= 0 || c.Razorpay.Timeout >= c.RequestTimeout {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive and below REQUEST_TIMEOUT"))
	}
	if c.Razorpay.MinorUnitFactor <= 0 {
		errs = append(errs, errors.New("PAYMENT_MINOR_UNIT_FACTOR must be positive"))
	}
	return errors.Join(errs...)
}
