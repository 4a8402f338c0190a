package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/channel"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/config"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/httpserver"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/metrics"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/migrations"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/repository"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/service"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/storage/postgres"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/sweeper"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	httpServer *httpserver.Server
	db         *pgxpool.Pool
	redis      *redis.Client
	hub        *channel.Hub
	relay      *channel.RedisRelay
	sweeper    *sweeper.Sweeper
	svc        *service.Service
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	db, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Options{MaxConns: cfg.DatabaseMaxConn}, logger)
	if err != nil {
		return nil, err
	}

	if err := migrations.Run(ctx, cfg.DatabaseURL, logger); err != nil {
		db.Close()
		return nil, err
	}

	m := metrics.New()
	hub := channel.NewHub(cfg.HubBuffer)
	hub.OnDrop(m.HubDropped)
	hub.OnPanic(func(env events.Envelope, recovered any) {
		logger.Error("hub subscriber panicked",
			zap.String("event_id", env.ID),
			zap.String("event", string(env.Event)),
			zap.Any("panic", recovered),
		)
	})

	svc := service.New(repository.New(db), hub, m, logger)

	a := &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		hub:    hub,
		svc:    svc,
	}

	if cfg.RedisURL != "" {
		if err := a.connectRelay(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	if cfg.SweepInterval > 0 {
		a.sweeper = sweeper.New(svc, service.SystemSender, cfg.SweepInterval, logger)
	}

	a.httpServer = httpserver.New(httpserver.Options{
		Port:           cfg.HTTPPort,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger, svc, hub, m)

	return a, nil
}

func (a *App) connectRelay(ctx context.Context) error {
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	a.redis = client
	a.relay = channel.NewRedisRelay(client, a.cfg.RelayTopic, a.logger)
	a.svc.WithRelay(a.relay)
	a.logger.Info("redis relay enabled", zap.String("addr", opts.Addr), zap.String("topic", a.cfg.RelayTopic))
	return nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	// Background goroutines end with ctx or the hub context; wait for them
	// before closing connections.
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hub.Start(hubCtx)
	}()

	if err := a.svc.Restore(ctx); err != nil {
		return err
	}

	if a.relay != nil {
		// Events appended between Restore and the subscription, or whose
		// relay message got lost, are picked up from the log.
		a.relay.OnSubscribed(a.syncLog)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.relay.Run(ctx, a.svc.ApplyRemote); err != nil {
				a.logger.Error("relay stopped", zap.Error(err))
			}
		}()

		stopSync, err := a.scheduleSync(ctx)
		if err != nil {
			return err
		}
		defer stopSync()
	}

	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return err
		}
		defer a.sweeper.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			return err
		}

		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (a *App) scheduleSync(ctx context.Context) (func(), error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(a.cfg.SyncInterval).WaitForSchedule().Tag("log-sync").Do(func() {
		a.syncLog(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule log sync: %w", err)
	}
	scheduler.StartAsync()
	return scheduler.Stop, nil
}

func (a *App) syncLog(ctx context.Context) {
	n, err := a.svc.Sync(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("event log sync failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		a.logger.Info("caught up with event log", zap.Int("events", n), zap.Int64("last_seq", a.svc.LastSeq()))
	}
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	a.db.Close()
}
