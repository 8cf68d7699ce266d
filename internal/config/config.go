package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Database struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

type Migrations struct {
	Dir string `mapstructure:"dir"`
}

type Gateway struct {
	BaseURL     string `mapstructure:"base-url"`
	APIToken    string `mapstructure:"api-token"`
	CallbackURL string `mapstructure:"callback-url"`
	TimeoutMs   int    `mapstructure:"timeout-ms"`
}

type Webhook struct {
	TimeoutMs     int `mapstructure:"timeout-ms"`
	Parallelism   int `mapstructure:"parallelism"`
	EmitTimeoutMs int `mapstructure:"emit-timeout-ms"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	OrderEvents      string `mapstructure:"order-events"`
	GatewayCallbacks string `mapstructure:"gateway-callbacks"`
}

type KafkaReader struct {
	GroupID string `mapstructure:"group-id"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
	Reader KafkaReader `mapstructure:"reader"`
}

// Enabled reports whether a broker is configured. Without one, lifecycle
// events go to webhooks only and gateway callbacks are processed in-process.
func (k Kafka) Enabled() bool {
	return k.Broker.URL != ""
}

type Server struct {
	Port              string `mapstructure:"port"`
	ShutdownTimeoutMs int    `mapstructure:"shutdown-timeout-ms"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL string `mapstructure:"url"`
}

type Config struct {
	Database   Database   `mapstructure:"database"`
	Migrations Migrations `mapstructure:"migrations"`
	Gateway    Gateway    `mapstructure:"gateway"`
	Webhook    Webhook    `mapstructure:"webhook"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Server     Server     `mapstructure:"server"`
	Metrics    Metrics    `mapstructure:"metrics"`
	Logs       Logs       `mapstructure:"logs"`
}

var defaults = map[string]any{
	"database.user":     "postgres",
	"database.password": "postgres",
	"database.name":     "checkout",
	"database.host":     "localhost",
	"database.port":     "5432",
	"database.ssl-mode": "disable",

	"migrations.dir": "migrations",

	"gateway.base-url":     "https://api.pushinpay.com.br",
	"gateway.api-token":    "",
	"gateway.callback-url": "",
	"gateway.timeout-ms":   10_000,

	"webhook.timeout-ms":      10_000,
	"webhook.parallelism":     16,
	"webhook.emit-timeout-ms": 30_000,

	"kafka.broker.url":              "",
	"kafka.topic.order-events":      "order-events",
	"kafka.topic.gateway-callbacks": "gateway-callbacks",
	"kafka.reader.group-id":         "checkout-service",
	"kafka.writer.batch-size":       100,
	"kafka.writer.batch-timeout-ms": 100,

	"server.port":                "8080",
	"server.shutdown-timeout-ms": 15_000,

	"metrics.url":           "",
	"metrics.interval-ms":   10_000,
	"metrics.common-labels": "",

	"logs.url": "",
}

// LoadConfig reads config.yaml from path. A .env file in the working
// directory is loaded first, and every key can be overridden from the
// environment: gateway.api-token becomes GATEWAY_API_TOKEN.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}
