// Package main запускает HTTP-сервер маркетплейса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/marketplace/internal/auth"
	"github.com/mmeshcher/marketplace/internal/config"
	"github.com/mmeshcher/marketplace/internal/handler"
	"github.com/mmeshcher/marketplace/internal/middleware"
	"github.com/mmeshcher/marketplace/internal/notify"
	"github.com/mmeshcher/marketplace/internal/ratelimit"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env необязателен, переменные окружения могут прийти от оркестратора
	if err := godotenv.Load(); err != nil {
		sugar.Debugw("no .env file loaded", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := openRepository(cfg)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		sugar.Fatalw("token issuer initialization error", "error", err.Error())
	}

	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, notify.DefaultExchange)
		if err != nil {
			sugar.Fatalw("amqp initialization error", "error", err.Error())
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	emitter := notify.NewEmitter(repo, publisher, logger)
	svc := service.NewService(repo, issuer, emitter, logger, service.Options{
		AllowOverdraftPayouts: cfg.AllowOverdraftPayouts,
	})
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		sugar.Fatalw("admin bootstrap error", "error", err.Error())
	}

	limiter, sweeper, closeLimiter, err := openLimiter(ctx, cfg, logger)
	if err != nil {
		sugar.Fatalw("rate limiter initialization error", "error", err.Error())
	}
	defer func() {
		if err := closeLimiter(); err != nil {
			sugar.Warnw("rate limiter close error", "error", err.Error())
		}
	}()
	if sweeper != nil {
		sweeper.Start()
	}

	session := middleware.NewSessionGuard(auth.NewValidator(issuer, repo), logger)
	h := handler.NewHandler(svc, logger, session, handler.Options{
		Limiter:           limiter,
		LoginPolicy:       ratelimit.Policy{Name: "login", Limit: cfg.LoginRateLimit, Window: cfg.RateLimitWindow},
		CheckoutPolicy:    ratelimit.Policy{Name: "checkout", Limit: cfg.CheckoutRateLimit, Window: cfg.RateLimitWindow},
		AllowedOrigins:    cfg.CORSOrigins,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting marketplace server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		if sweeper != nil {
			<-sweeper.Stop().Done()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// store объединяет доступ к данным сервиса и журнал уведомлений.
type store interface {
	service.Repository
	notify.Store
}

// openRepository выбирает PostgreSQL, если задан DATABASE_URI, иначе хранилище в памяти.
func openRepository(cfg *config.Config) (store, error) {
	if cfg.DatabaseURI == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI)
}

// openLimiter возвращает общий лимитер в Redis либо локальный с периодической очисткой окон.
// Возвращаемая функция освобождает соединение с Redis.
func openLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, *cron.Cron, func() error, error) {
	if cfg.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return ratelimit.NewRedisLimiter(client, "marketplace:ratelimit"), nil, client.Close, nil
	}

	limiter := ratelimit.NewMemoryLimiter(nil)
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.RateLimitSweep, func() {
		if n := limiter.Sweep(); n > 0 {
			logger.Debug("rate limit windows swept", zap.Int("removed", n))
		}
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("schedule rate limit sweep: %w", err)
	}
	return limiter, sweeper, func() error { return nil }, nil
}
