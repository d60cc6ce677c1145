package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"clipforge/internal/blob"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notify"
	"clipforge/internal/renderer"
	"clipforge/internal/store"
	"clipforge/internal/sweep"
	"clipforge/internal/telemetry"
	"clipforge/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.Env).With().Str("service", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		st = pg
	default:
		st = store.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	}
	defer st.Close()

	var bs blob.Store
	if cfg.BlobBucket != "" {
		s3Store, err := blob.NewS3(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init s3 blob store")
		}
		bs = s3Store
	} else {
		bs = blob.NewLocal(cfg.BlobLocalDir, cfg.BlobLocalBase)
	}

	rend := renderer.NewFFmpeg(cfg.RenderBin, cfg.FallbackVideo)
	notifier := notify.NewPushClient(cfg.NotifyBaseURL, cfg.NotifyAPIKey)

	w := worker.New(cfg, st, bs, rend, notifier, log)
	sw := sweep.New(st, bs, cfg.RetentionAge, log)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	go func() {
		if err := sw.Run(ctx, cfg.SweepInterval); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sweep stopped")
		}
	}()

	log.Info().
		Dur("poll_interval", cfg.WorkerPollInterval).
		Dur("retention", cfg.RetentionAge).
		Msg("worker started")
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("worker stopped")
	}
}
