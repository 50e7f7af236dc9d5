package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"readaloud/internal/auth"
	"readaloud/internal/config"
	"readaloud/internal/db"
	internalhttp "readaloud/internal/http"
	"readaloud/internal/repository"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	var limiter auth.AttemptLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		limiter = auth.NewRedisLimiter(redisClient, cfg.VisualLoginLimit, cfg.VisualLoginWindow)
	} else {
		log.Printf("REDIS_ADDR not set, visual login attempt limiting disabled")
	}

	authService := auth.NewService(store, store, store, store, limiter, cfg.SessionTTL)
	server := internalhttp.NewServer(cfg, authService, store, store)

	go sweepSessions(ctx, authService, cfg.SessionSweep)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("readaloud auth listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// sweepSessions reclaims expired session rows. Expiry is enforced lazily at
// resolve time either way; this only keeps the table small.
func sweepSessions(ctx context.Context, authService *auth.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := authService.SweepExpired(ctx)
			if err != nil {
				log.Printf("session sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("session sweep reclaimed %d rows", deleted)
			}
		}
	}
}
