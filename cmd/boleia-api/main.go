// README: Entry point; loads config, wires the ride store, search service and HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"boleia/internal/clock"
	"boleia/internal/config"
	httptransport "boleia/internal/http"
	"boleia/internal/http/handlers"
	"boleia/internal/http/middleware"
	"boleia/internal/infra"
	"boleia/internal/log"
	"boleia/internal/maps"
	"boleia/internal/metrics"
	"boleia/internal/modules/matching"
	"boleia/internal/modules/ride"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("load config")
	}
	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "boleia-api"})
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres init")
	}
	defer dbPool.Close()

	m := metrics.NewWithLogger(&logger)
	m.StartDBStatsCollector(dbPool, 15*time.Second)
	defer m.Shutdown()

	rideStore := ride.NewStore(dbPool, cfg.Location)
	rideSvc := ride.NewService(rideStore)

	health := map[string]handlers.Pinger{"postgres": dbPool}
	opts := []matching.Option{matching.WithRecorder(m)}
	if cfg.Matching.CacheEnabled {
		redisClient, err := infra.NewRedis(ctx, infra.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, search cache disabled")
		} else {
			defer redisClient.Close()
			opts = append(opts, matching.WithCache(matching.NewRedisCache(redisClient)))
			health["redis"] = handlers.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		}
	}
	if cfg.Maps.APIKey != "" {
		geocoder, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("geocoder disabled")
		} else {
			opts = append(opts, matching.WithGeocoder(geocoder))
		}
	}
	searchSvc := matching.NewService(rideStore, clock.RealClock{}, cfg.Matching, opts...)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, clock.RealClock{}, m)
	go limiter.RunSweeper(ctx, time.Minute)

	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Search:      searchSvc,
		Rides:       rideSvc,
		Health:      health,
		Metrics:     m,
		RateLimiter: limiter,
		Logger:      logger,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router)
	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
}
