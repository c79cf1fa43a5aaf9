package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	simulator "github.com/plantflow/plantflow/internal/sensor-simulator"
	"github.com/plantflow/plantflow/pkg/mqttconn"
)

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

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "sensor-simulator").
		Logger()

	brokerURL := envStr("MQTT_BROKER_URL", "tcp://localhost:1883")
	prefix := envStr("MQTT_TOPIC_PREFIX", "plantflow/devices")
	interval := time.Duration(envInt("PUBLISH_INTERVAL_MS", 10000)) * time.Millisecond

	deviceIDs := strings.Split(envStr("SIM_DEVICES", "plant-001,plant-002,plant-003"), ",")
	for i := range deviceIDs {
		deviceIDs[i] = strings.TrimSpace(deviceIDs[i])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := mqttconn.Dial(ctx, &mqttconn.Config{
		BrokerURL: brokerURL,
		Username:  os.Getenv("MQTT_USERNAME"),
		Password:  os.Getenv("MQTT_PASSWORD"),
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("shutdown before broker connection was established")
		return
	}
	defer conn.Close(250)

	log.Info().Strs("devices", deviceIDs).Dur("interval", interval).Msg("simulator running")
	simulator.New(conn, prefix, deviceIDs, interval, log).Run(ctx)
}
