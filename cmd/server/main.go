package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/consogab/server/internal/api"
	"github.com/consogab/server/internal/auth"
	"github.com/consogab/server/internal/config"
	"github.com/consogab/server/internal/directory"
	"github.com/consogab/server/internal/events"
	"github.com/consogab/server/internal/logger"
	"github.com/consogab/server/internal/media"
	"github.com/consogab/server/internal/metrics"
	"github.com/consogab/server/internal/repository"
	"github.com/consogab/server/internal/service"
	"github.com/consogab/server/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(logger.Config{Development: cfg.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	db, err := repository.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		zl.Fatalw("mongo indexes", "err", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var validator *auth.Validator
	if cfg.JWT.SigningMethod == "RS256" {
		validator, err = auth.NewValidatorRS256(cfg.JWT.PublicKeyPath)
	} else {
		validator, err = auth.NewValidatorHS256(cfg.JWT.Secret)
	}
	if err != nil {
		zl.Fatalw("jwt validator init", "err", err)
	}

	profiles := directory.NewClient(directory.Config{
		BaseURL:  cfg.Directory.BaseURL,
		Timeout:  cfg.DirectoryTimeout,
		CacheTTL: cfg.DirectoryTTL,
	}, rdb, zl)

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	svc := service.NewMessaging(
		repository.NewConversationRepo(db),
		repository.NewMessageRepo(db),
		repository.NewParticipantRepo(db),
		profiles,
		producer,
		zl,
	)

	store, err := media.NewS3Store(ctx, cfg.Media.Region, cfg.Media.Bucket, cfg.Media.PublicRead)
	if err != nil {
		zl.Fatalw("s3 init", "err", err)
	}
	mediaSvc := media.NewService(store, media.Limits{
		MaxBytes:  cfg.Media.MaxBytes,
		MaxPixels: cfg.Media.MaxPixels,
	})

	hub := ws.NewHub()
	consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, zl)
	defer consumer.Close()
	consumeCtx, stopConsumer := context.WithCancel(ctx)
	go consumer.Run(consumeCtx, hub)

	limiter := api.NewRateLimiter(rdb, cfg.Redis.Prefix+"rl:send", cfg.Rate.SendPerMinute, time.Minute)

	app := api.NewServer(api.Options{
		Messaging:    svc,
		Media:        mediaSvc,
		Hub:          hub,
		Validator:    validator,
		Profiles:     profiles,
		Limiter:      limiter,
		Log:          zl,
		MaxUpload:    cfg.Media.MaxBytes,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	metricsSrv := &http.Server{
		Addr:    ":" + cfg.Server.MetricsPort,
		Handler: metrics.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Errorw("metrics server", "err", err)
		}
	}()

	errs := make(chan error, 1)
	go func() {
		zl.Infow("starting messaging server", "port", cfg.Server.Port)
		errs <- app.Listen(":" + cfg.Server.Port)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zl.Fatalw("server error", "err", e)
	case s := <-sig:
		zl.Infow("signal received", "signal", s.String())
	}

	stopConsumer()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown", "err", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	zl.Info("stopped")
}
