package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ezlevup/supportdesk/config"
	httpDelivery "github.com/ezlevup/supportdesk/internal/delivery/http"
	"github.com/ezlevup/supportdesk/internal/infra/redis"
	"github.com/ezlevup/supportdesk/internal/kafka"
	"github.com/ezlevup/supportdesk/internal/queue"
	repo "github.com/ezlevup/supportdesk/internal/repository/redis"
	"github.com/ezlevup/supportdesk/internal/service"
	"github.com/ezlevup/supportdesk/internal/timers"
	pkgLog "github.com/ezlevup/supportdesk/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(redisCli)

	ssRepo := repo.NewRedisSessionRepository(redisCli, l)
	userRepo := repo.NewRedisUserRepository(redisCli, l)
	msgRepo := repo.NewRedisMessageRepository(redisCli, l)

	// Kafka producer (optional, nil when disabled)
	var prod kafka.Producer
	if cfg.Kafka.Enabled {
		prod, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		}, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		defer prod.Close()
	}

	// Shared in-process state: admission order and activity clocks.
	q := queue.New()
	tm := timers.NewRegistry()

	// Initialize services
	ssSvc := service.NewSessionService(ssRepo, q, tm, cfg.Session.Timeout, l)
	asSvc := service.NewAssignmentService(ssRepo, userRepo, q, tm, l)
	userSvc := service.NewUserService(userRepo, cfg.JWT, l)

	rp := service.NewReaper(ssSvc, tm, prod, service.ReaperConfig{
		Interval: cfg.Session.ReapInterval,
		Timeout:  cfg.Session.Timeout,
	}, l)

	deskSvc := service.NewDeskService(ssSvc, asSvc, userSvc, msgRepo, prod, rp, l)

	// Recover admission order from persisted waiting sessions before
	// accepting traffic.
	restored, err := ssSvc.RebuildQueue(ctx)
	if err != nil {
		l.Fatalf(ctx, "Failed to rebuild admission queue: %v", err)
	}
	l.Infof(ctx, "Admission queue rebuilt: %d waiting session(s) restored", restored)

	if err := rp.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start session reaper: %v", err)
	}

	router := httpDelivery.NewRouter(deskSvc, userSvc, l)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		l.Info(ctx, "Server shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Errorf(ctx, "HTTP server shutdown: %v", err)
		}

		if err := rp.Stop(); err != nil {
			l.Errorf(ctx, "Reaper shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Fatalf(ctx, "Server error: %v", err)
	}
	l.Info(ctx, "Server exited")
}
