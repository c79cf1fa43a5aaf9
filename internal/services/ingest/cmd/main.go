package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/plantflow/plantflow/internal/devicedir"
	"github.com/plantflow/plantflow/internal/events"
	"github.com/plantflow/plantflow/internal/services/ingest"
	"github.com/plantflow/plantflow/internal/storage"
	"github.com/plantflow/plantflow/pkg/mqttconn"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", "ingest").
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Storage & directory ===
	var (
		store     storage.ReadingStore
		dir       devicedir.Directory
		storePing func(ctx context.Context) error
	)
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		store = pg
		dir = devicedir.NewPostgres(pg.Pool())
		storePing = pg.Pool().Ping
		log.Info().Msg("postgres store ready")
	} else {
		store = storage.NewMemory()
		dir = devicedir.NewMemory()
		log.Warn().Msg("POSTGRES_URL not set, using in-memory store (data is volatile)")
	}
	dir = devicedir.NewBreaker(dir, "device-directory", 5, 10*time.Second)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis unreachable")
		}
		defer rdb.Close()
		store = storage.NewCachedStore(store, rdb, cfg.RedisTTL, log)
		log.Info().Str("addr", cfg.RedisAddr).Msg("latest-reading cache enabled")
	}

	// === Diagnostics sink ===
	var (
		sink       events.Sink = events.NopSink{}
		sinkErrAge func() time.Duration
	)
	if cfg.InfluxURL != "" && cfg.InfluxToken != "" {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		is := events.NewInfluxSink(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), log)
		sink = is
		sinkErrAge = is.LastErrorAge
		log.Info().Str("bucket", cfg.InfluxBucket).Msg("influx diagnostics sink enabled")
	}

	// === Broker ===
	conn, err := mqttconn.Dial(ctx, &mqttconn.Config{
		BrokerURL:      cfg.BrokerURL,
		Username:       cfg.Username,
		Password:       cfg.Password,
		ClientID:       cfg.ClientID,
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectMin:   cfg.ReconnectMin,
		ReconnectMax:   cfg.ReconnectMax,
	}, log)
	if err != nil {
		// Dial only fails once ctx is cancelled, i.e. shutdown was requested
		// while still waiting for the broker.
		log.Warn().Err(err).Msg("shutdown before broker connection was established")
		return
	}
	defer conn.Close(250)

	// === Pipeline ===
	metrics := ingest.NewMetrics(prometheus.DefaultRegisterer)
	dispatcher := ingest.NewDispatcher(cfg.TopicPrefix, dir, store, sink, metrics, log)

	filter := cfg.TopicPrefix + "/+/sensors"
	consumer := mqttconn.NewConsumer(conn, filter, cfg.QoS, log, nil)
	svc := ingest.NewService(consumer, dispatcher, log)
	if cfg.QoS >= 1 {
		svc.EnableDedup(10*time.Minute, 20000)
	}

	pruner := ingest.NewPruner(store, time.Duration(cfg.RetentionDays)*24*time.Hour, cfg.PruneInterval, log)
	go pruner.Run(ctx)

	// === Ops HTTP ===
	probes := ingest.Probes{
		BrokerConnected: conn.IsConnected,
		StorePing:       storePing,
		SinkErrorAge:    sinkErrAge,
	}
	mux := http.NewServeMux()
	mux.Handle("/healthz", ingest.NewHealthHandler(probes))
	mux.Handle("/readyz", ingest.NewReadyHandler(probes))
	mux.Handle("/metrics", promhttp.Handler())

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("ops endpoint listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	log.Info().Str("topic", filter).Msg("ingestion running")
	if err := svc.Start(ctx); err != nil {
		log.Error().Err(err).Msg("consumer terminated")
	}

	// ctx is done: unsubscribe happened in Start, drain the rest.
	log.Info().Msg("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
}
