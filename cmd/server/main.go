// Command server wires high-level dependencies and keeps the lifecycle
// small. Business logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"keyward/internal/audit"
	"keyward/internal/fieldcrypt"
	"keyward/internal/identity/service"
	userstore "keyward/internal/identity/store/user"
	"keyward/internal/jwttoken"
	"keyward/internal/password"
	"keyward/internal/platform/config"
	"keyward/internal/platform/httpserver"
	"keyward/internal/platform/logger"
	"keyward/internal/platform/metrics"
	"keyward/internal/platform/postgres"
	platformredis "keyward/internal/platform/redis"
	"keyward/internal/ratelimit"
	httptransport "keyward/internal/transport/http"
)

func main() {
	log := logger.New(slog.LevelInfo)
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cipher, err := fieldcrypt.New(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	defer cipher.Close()

	hashParams := password.DefaultParams()
	if cfg.Argon2MemoryKiB > 0 {
		hashParams.MemoryKiB = cfg.Argon2MemoryKiB
	}
	if cfg.Argon2Time > 0 {
		hashParams.Time = cfg.Argon2Time
	}
	hasher, err := password.NewHasher(hashParams)
	if err != nil {
		return err
	}

	tokens, err := jwttoken.New(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var users service.UserStore = userstore.New()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		users = userstore.NewPostgres(pool)
		log.Info("using postgres credential store")
	} else {
		log.Info("using in-memory credential store")
	}

	var buckets ratelimit.BucketStore = ratelimit.NewMemoryBucketStore()
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		buckets = ratelimit.NewRedisBucketStore(redisClient.Client)
		log.Info("using redis rate-limit buckets")
	}
	limiter := ratelimit.NewLimiter(buckets, cfg.RateLimit, cfg.RateWindow, ratelimit.WithLogger(log))

	var auditStore audit.Store = audit.NewInMemoryStore()
	if cfg.DatabaseURL != "" {
		pgAudit, err := audit.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgAudit.Close()
		auditStore = pgAudit
	}
	dispatcher := audit.NewDispatcher(1024)
	auditWorker := audit.NewWorker(audit.NewPublisher(auditStore), dispatcher, log)

	identity := service.New(users, hasher, cipher, tokens, limiter, log,
		service.WithMetrics(metrics.New()),
		service.WithAuditRecorder(dispatcher),
	)

	router := httptransport.NewRouter(httptransport.NewHandler(identity), log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting keyward", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if dropped := dispatcher.Dropped(); dropped > 0 {
		log.Warn("audit events dropped during run", "count", dropped)
	}
	return nil
}
