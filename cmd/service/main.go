package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jam-session-service/internal/config"
	"jam-session-service/internal/gateway"
	"jam-session-service/internal/jam"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("jam-service: config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("jam-service: pg: %v", err)
	}
	defer pool.Close()

	if err := jam.AutoMigrate(ctx, pool); err != nil {
		log.Fatalf("jam-service: migrate: %v", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("jam-service: redis: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctrl := jam.NewController(pool, jam.NewDispatcher(rdb))

	hub := gateway.NewHub()
	go hub.Run()

	var resolver gateway.TokenResolver
	if cfg.JWTSecret != "" {
		resolver = gateway.NewJWTResolver(cfg.JWTSecret)
	}
	gw := gateway.NewServer(hub, ctrl, resolver, rdb, gateway.Config{
		AllowedOrigin: cfg.AllowedOrigin,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
	})
	go gw.RunSubscriber(ctx)

	r := chi.NewRouter()
	r.Mount("/", jam.NewServer(ctrl).Router())
	r.Mount("/realtime", gw.Router())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("jam-service on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("jam-service: listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("jam-service: shutdown: %v", err)
	}
}
