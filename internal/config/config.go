package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramConfig TelegramConfig
	PostgresConfig PostgresConfig
	KafkaConfig    KafkaConfig
	TracingConfig  TracingConfig
	MetricsConfig  MetricsConfig
	MemoConfig     MemoConfig
	NotifierConfig NotifierConfig
	TimeZone       string
}

type TelegramConfig struct {
	TokenWriteBot  string
	TokenNotifyBot string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type KafkaConfig struct {
	Brokers           []string
	Topic             string
	GroupID           string
	Partitions        int
	ReplicationFactor int
}

type TracingConfig struct {
	Endpoint string
}

type MetricsConfig struct {
	WriterAddr   string
	NotifierAddr string
}

type MemoConfig struct {
	OperationTimeout time.Duration
	ReminderTimeout  time.Duration
	AllowEmptyTitle  bool
}

type NotifierConfig struct {
	CheckInterval time.Duration
}

var defaults = map[string]interface{}{
	"POSTGRES_HOST":            "localhost",
	"POSTGRES_PORT":            "5432",
	"POSTGRES_USER":            "user",
	"POSTGRES_PASSWORD":        "password",
	"POSTGRES_DB":              "dbname",
	"POSTGRES_SSLMODE":         "disable",
	"KAFKA_BROKERS":            "localhost:9092",
	"KAFKA_TOPIC":              "reminders-fired",
	"KAFKA_GROUP_ID":           "reminder-cleaners",
	"KAFKA_PARTITIONS":         1,
	"KAFKA_REPLICATION_FACTOR": 1,
	"TRACING_ENDPOINT":         "http://localhost:14268/api/traces",
	"METRICS_WRITER_ADDR":      ":8080",
	"METRICS_NOTIFIER_ADDR":    ":8081",
	"MEMO_OPERATION_TIMEOUT":   10 * time.Second,
	"MEMO_REMINDER_TIMEOUT":    5 * time.Second,
	"MEMO_ALLOW_EMPTY_TITLE":   false,
	"NOTIFIER_CHECK_INTERVAL":  time.Minute,
	"TIME_ZONE":                "Europe/Moscow",
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	config := &Config{
		TelegramConfig: TelegramConfig{
			TokenWriteBot:  v.GetString("TOKEN_WRITE_BOT"),
			TokenNotifyBot: v.GetString("TOKEN_NOTIFY_BOT"),
		},
		PostgresConfig: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:           splitList(v.GetString("KAFKA_BROKERS")),
			Topic:             v.GetString("KAFKA_TOPIC"),
			GroupID:           v.GetString("KAFKA_GROUP_ID"),
			Partitions:        v.GetInt("KAFKA_PARTITIONS"),
			ReplicationFactor: v.GetInt("KAFKA_REPLICATION_FACTOR"),
		},
		TracingConfig: TracingConfig{
			Endpoint: v.GetString("TRACING_ENDPOINT"),
		},
		MetricsConfig: MetricsConfig{
			WriterAddr:   v.GetString("METRICS_WRITER_ADDR"),
			NotifierAddr: v.GetString("METRICS_NOTIFIER_ADDR"),
		},
		MemoConfig: MemoConfig{
			OperationTimeout: v.GetDuration("MEMO_OPERATION_TIMEOUT"),
			ReminderTimeout:  v.GetDuration("MEMO_REMINDER_TIMEOUT"),
			AllowEmptyTitle:  v.GetBool("MEMO_ALLOW_EMPTY_TITLE"),
		},
		NotifierConfig: NotifierConfig{
			CheckInterval: v.GetDuration("NOTIFIER_CHECK_INTERVAL"),
		},
		TimeZone: v.GetString("TIME_ZONE"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.TelegramConfig.TokenWriteBot == "" {
		return fmt.Errorf("TOKEN_WRITE_BOT is required")
	}

	if c.TelegramConfig.TokenNotifyBot == "" {
		return fmt.Errorf("TOKEN_NOTIFY_BOT is required")
	}

	if len(c.KafkaConfig.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}

	if c.MemoConfig.OperationTimeout <= 0 {
		return fmt.Errorf("MEMO_OPERATION_TIMEOUT must be positive, got %s", c.MemoConfig.OperationTimeout)
	}

	if c.NotifierConfig.CheckInterval < time.Second {
		return fmt.Errorf("NOTIFIER_CHECK_INTERVAL must be at least 1s, got %s", c.NotifierConfig.CheckInterval)
	}

	return nil
}

// PostgresURL is the connection string shared by the driver and migrations.
func (c PostgresConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
