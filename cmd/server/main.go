package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"fidotel/internal/jwttoken"
	"fidotel/internal/platform/config"
	"fidotel/internal/platform/httpserver"
	"fidotel/internal/platform/logger"
	platformredis "fidotel/internal/platform/redis"
	"fidotel/internal/platform/sentinel"
	"fidotel/internal/telemetry/pipeline"
	"fidotel/internal/telemetry/reaper"
	"fidotel/internal/telemetry/relay"
	"fidotel/internal/telemetry/settings"
	"fidotel/internal/telemetry/store"
	memorystore "fidotel/internal/telemetry/store/memory"
	pgstore "fidotel/internal/telemetry/store/postgres"
	transporthttp "fidotel/internal/transport/http"
)

const (
	tokenIssuer   = "fidotel"
	tokenAudience = "fidotel-admin"
)

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event store: postgres when configured, in-memory otherwise.
	var eventStore store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect event store", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := pgstore.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure event schema", "error", err)
			os.Exit(1)
		}
		eventStore = pg
	} else {
		log.Warn("no database configured, events held in memory only")
		eventStore = memorystore.NewInMemoryStore()
	}

	settingsStore, closeSettings, err := buildSettingsStore(ctx, cfg)
	if err != nil {
		log.Error("connect settings store", "error", err)
		os.Exit(1)
	}
	defer closeSettings()

	if err := seedSettings(ctx, settingsStore); err != nil {
		log.Error("seed default settings", "error", err)
		os.Exit(1)
	}

	cached := settings.NewCached(settingsStore, cfg.SettingsRefreshInterval, log)
	if err := cached.Refresh(ctx); err != nil {
		log.Warn("initial settings load failed, recording disabled until refresh succeeds", "error", err)
	}

	metrics := pipeline.NewMetrics()

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics),
		pipeline.WithQueueCapacity(cfg.QueueCapacity),
		pipeline.WithFlushInterval(cfg.FlushInterval),
		pipeline.WithSyncWriteTimeout(cfg.SyncWriteTimeout),
		pipeline.WithDrainTimeout(cfg.ShutdownDrainTimeout),
	}

	if len(cfg.KafkaBrokers) > 0 {
		mirror, err := relay.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log,
			relay.WithFailureHook(metrics.IncRelayPublishFails),
		)
		if err != nil {
			log.Error("connect kafka relay", "error", err)
			os.Exit(1)
		}
		defer mirror.Close()
		opts = append(opts, pipeline.WithRelay(mirror))
	}

	recorder := pipeline.New(eventStore, cached, cfg.NodeID, opts...)
	recorder.Start(ctx)

	reap := reaper.New(eventStore, cached, cfg.CleanInterval, cfg.CleanChunkSize,
		reaper.WithLogger(log),
		reaper.WithMetrics(metrics),
	)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
	router := transporthttp.NewRouter(settingsStore, cached, recorder, jwtService, log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("telemetry server listening", "addr", cfg.Addr, "node_id", cfg.NodeID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := cached.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := reap.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
	}

	// Intake is closed; give the writer one bounded drain before exit.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
	defer cancel()
	if err := recorder.Close(drainCtx); err != nil {
		log.Warn("pipeline drain incomplete", "error", err)
	}

	log.Info("telemetry server stopped")
}

// buildSettingsStore picks the settings backend: redis when configured,
// otherwise the same postgres instance as the event store, otherwise memory.
func buildSettingsStore(ctx context.Context, cfg config.Server) (settings.Store, func(), error) {
	if cfg.RedisURL != "" {
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return settings.NewRedis(client.Client), func() { _ = client.Close() }, nil
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		st := settings.NewPostgres(db)
		if err := st.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return st, func() { _ = db.Close() }, nil
	}

	return settings.NewMemory(), func() {}, nil
}

// seedSettings writes the defaults on first boot so operators always find a
// committed document to edit.
func seedSettings(ctx context.Context, st settings.Store) error {
	_, err := st.Load(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		_, err = st.Save(ctx, settings.Defaults())
	}
	return err
}
