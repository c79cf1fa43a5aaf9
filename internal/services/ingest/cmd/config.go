package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BrokerURL      string
	Username       string
	Password       string
	ClientID       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration

	PostgresURL string

	RedisAddr string
	RedisTTL  time.Duration

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	RetentionDays int
	PruneInterval time.Duration

	HTTPPort int
	LogLevel string
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envMs(key string, defMs int) time.Duration {
	return time.Duration(envInt(key, defMs)) * time.Millisecond
}

func loadConfig() Config {
	qos := envInt("MQTT_QOS", 0)
	if qos < 0 || qos > 1 {
		qos = 0
	}
	return Config{
		BrokerURL:      envStr("MQTT_BROKER_URL", "tcp://localhost:1883"),
		Username:       os.Getenv("MQTT_USERNAME"),
		Password:       os.Getenv("MQTT_PASSWORD"),
		ClientID:       os.Getenv("MQTT_CLIENT_ID"),
		TopicPrefix:    envStr("MQTT_TOPIC_PREFIX", "plantflow/devices"),
		QoS:            byte(qos),
		ConnectTimeout: envMs("MQTT_CONNECT_TIMEOUT_MS", 30000),
		ReconnectMin:   envMs("MQTT_RECONNECT_MIN_MS", 5000),
		ReconnectMax:   envMs("MQTT_RECONNECT_MAX_MS", 120000),

		PostgresURL: os.Getenv("POSTGRES_URL"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisTTL:  envMs("REDIS_TTL_MS", int((24 * time.Hour).Milliseconds())),

		InfluxURL:    os.Getenv("INFLUX_URL"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "plantflow"),
		InfluxBucket: envStr("INFLUX_BUCKET", "ingest"),

		RetentionDays: envInt("RETENTION_DAYS", 30),
		PruneInterval: time.Duration(envInt("PRUNE_INTERVAL_MIN", 60)) * time.Minute,

		HTTPPort: envInt("HTTP_PORT", 8080),
		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}
