// Package gopherstep boots a complete engine from GSTEP_ settings: storage,
// history, events, tracing, triggers and the HTTP API.
package gopherstep

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/config"
	"github.com/RealZimboGuy/gopherstep/internal/controllers"
	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/RealZimboGuy/gopherstep/internal/events"
	"github.com/RealZimboGuy/gopherstep/internal/repository"
	"github.com/RealZimboGuy/gopherstep/internal/telemetry"
	"github.com/RealZimboGuy/gopherstep/internal/trigger"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/core"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/definition"
	"github.com/lmittmann/tint"
	redis "github.com/redis/go-redis/v9"
)

const serviceName = "gopherstep"

// App is a configured engine together with the resources it owns.
type App struct {
	Manager *engine.Manager

	db        *sql.DB
	redis     *redis.Client
	publisher *events.Publisher
	shutdown  telemetry.ShutdownFunc
	schedule  *trigger.ScheduleTrigger
	queue     *trigger.QueueTrigger
}

// NewApp builds an engine around executor from the GSTEP_ settings. Nothing
// runs until Start.
func NewApp(ctx context.Context, executor core.TaskExecutor) (*App, error) {
	a := &App{}
	var opts []engine.Option

	if dbType := config.GetSystemSettingString(config.DATABASE_TYPE); dbType != config.DATABASE_TYPE_MEMORY {
		d, err := repository.DialectFromConfig()
		if err != nil {
			return nil, err
		}
		dsn := config.GetSystemSettingString(config.DATABASE_URL)
		if d == repository.SQLite {
			dsn = config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
		}
		a.db, err = repository.Open(d, dsn)
		if err != nil {
			return nil, err
		}
		repairAfter := time.Duration(config.GetSystemSettingInteger(config.ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES)) * time.Minute
		opts = append(opts,
			engine.WithExecutionRepo(repository.NewExecutionRepository(a.db, d)),
			engine.WithDefinitionRepo(repository.NewDefinitionRepository(a.db, d)),
			engine.WithExecutorRepo(repository.NewExecutorRepository(a.db, d)),
			engine.WithRepair(config.GetSystemSettingDuration(config.ENGINE_STUCK_EXECUTIONS_INTERVAL, time.Minute), repairAfter),
		)
		if config.GetSystemSettingString(config.HISTORY_SINK) == config.HISTORY_SINK_DATABASE {
			opts = append(opts, engine.WithHistorySink(repository.NewHistoryRepository(a.db, d)))
		}
	} else if config.GetSystemSettingString(config.HISTORY_SINK) == config.HISTORY_SINK_DATABASE {
		return nil, errors.New("GSTEP_HISTORY_SINK=DATABASE needs a GSTEP_DATABASE_TYPE other than MEMORY")
	}

	if config.GetSystemSettingString(config.HISTORY_SINK) == config.HISTORY_SINK_REDIS || config.GetSystemSettingString(config.REDIS_QUEUE) != "" {
		redisOpts, err := redis.ParseURL(config.GetSystemSettingString(config.REDIS_URL))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("GSTEP_REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(redisOpts)
		if config.GetSystemSettingString(config.HISTORY_SINK) == config.HISTORY_SINK_REDIS {
			opts = append(opts, engine.WithHistorySink(repository.NewRedisHistory(a.redis, serviceName+":")))
		}
	}

	publisher, subscriber, err := events.NewFromConfig(slog.Default())
	if err != nil {
		a.Close()
		return nil, err
	}
	if publisher != nil {
		a.publisher = publisher
		opts = append(opts, engine.WithPublisher(publisher))
		if subscriber != nil {
			if err := events.LogEvents(ctx, subscriber, publisher.Topic()); err != nil {
				a.Close()
				return nil, err
			}
		}
	}

	if config.GetSystemSettingBool(config.OTEL_ENABLED) {
		tracer, shutdown, err := telemetry.NewTracer(ctx, serviceName)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("tracing: %w", err)
		}
		a.shutdown = shutdown
		opts = append(opts, engine.WithTracer(tracer))
	}

	opts = append(opts,
		engine.WithWorkers(config.GetSystemSettingInteger(config.ENGINE_EXECUTOR_SIZE)),
		engine.WithQueueSize(config.GetSystemSettingInteger(config.ENGINE_QUEUE_SIZE)),
	)
	a.Manager = engine.NewManager(executor, opts...)

	schedules, err := trigger.ParseSchedules(config.GetSystemSettingString(config.SCHEDULE_TRIGGERS))
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(schedules) > 0 {
		a.schedule = trigger.NewScheduleTrigger(a.Manager, schedules, slog.Default())
	}
	if q := config.GetSystemSettingString(config.REDIS_QUEUE); q != "" {
		a.queue, err = trigger.NewQueueTrigger(a.Manager, a.redis, q, slog.Default())
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// LoadDefinitions registers every definition document found in dir.
func (a *App) LoadDefinitions(ctx context.Context, dir string) error {
	defs, err := definition.LoadDir(dir)
	if err != nil {
		return err
	}
	for name, def := range defs {
		if err := a.Manager.RegisterDefinition(ctx, name, def); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Registered workflow definition", "name", name, "digest", def.Digest, "states", len(def.States))
	}
	return nil
}

// Start runs the worker pool and the configured triggers.
func (a *App) Start(ctx context.Context) error {
	a.Manager.Start(ctx)
	if a.schedule != nil {
		if err := a.schedule.Start(ctx); err != nil {
			return err
		}
	}
	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the triggers and the engine, then releases every resource.
func (a *App) Close() error {
	if a.schedule != nil {
		a.schedule.Stop()
	}
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.Manager != nil {
		a.Manager.Stop()
	}
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.shutdown(ctx))
		cancel()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP API, optionally mounted onto an existing mux.
func (a *App) Handler(mux *http.ServeMux) *http.ServeMux {
	if mux == nil {
		mux = http.NewServeMux()
	}
	controllers.RegisterAll(mux, a.Manager)
	return mux
}

// Start boots the engine from the GSTEP_ settings, loads the definitions in
// GSTEP_DEFINITIONS_DIR and serves the HTTP API until ctx is cancelled.
func Start(ctx context.Context, mux *http.ServeMux, executor core.TaskExecutor) error {
	app, err := NewApp(ctx, executor)
	if err != nil {
		return err
	}
	defer app.Close()

	if dir := config.GetSystemSettingString(config.DEFINITIONS_DIR); dir != "" {
		if err := app.LoadDefinitions(ctx, dir); err != nil {
			return err
		}
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	addr := ":" + config.GetSystemSettingString(config.ENGINE_SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{Addr: addr, Handler: app.Handler(mux), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR onto slog levels; anything
// else is INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func SetupLogger(level string) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      ParseLevel(level),
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
