package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"clipforge/internal/api"
	"clipforge/internal/blob"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notify"
	"clipforge/internal/ratelimit"
	"clipforge/internal/reconcile"
	"clipforge/internal/renderer"
	"clipforge/internal/store"
	"clipforge/internal/sweep"
	"clipforge/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.Env).With().Str("service", "api").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		st = pg
	default:
		st = store.NewRedisStore(redisClient)
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
	rec := reconcile.New(st, cfg.WebhookSecret, cfg.WebhookMonitorFID, cfg.HostURL, cfg.ShareBaseURL, log)
	limiter := ratelimit.New(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill)

	server := api.New(cfg, st, w, sw, rec, limiter, log)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Info().Str("port", cfg.HTTPPort).Msg("api listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
