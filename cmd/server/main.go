package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/internal/server"
	"github.com/vecinal/certdesk/modules"
	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/configuration"
	"github.com/vecinal/certdesk/pkg/eventbus"
	"github.com/vecinal/certdesk/pkg/logging"
	"github.com/vecinal/certdesk/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	infra, err := server.NewInfrastructure(ctx, conf, logger)
	if err != nil {
		log.Fatalf("failed to build infrastructure: %v", err)
	}
	defer infra.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules(infra.Module)...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if conf.MigrateOnStart {
		if err := migrate(ctx, app, conf); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	app.RegisterControllers(metrics.NewHealthController(pool))
	if infra.Controller != nil {
		app.RegisterControllers(infra.Controller)
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	app.RegisterWorkers(server.OutboxWorkers(conf, pool, app.EventPublisher(), logger)...)

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	startWorkers(ctx, app.Workers(), logger)

	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func migrate(ctx context.Context, app application.Application, conf *configuration.Configuration) error {
	db, err := sql.Open("postgres", conf.Database.Opts)
	if err != nil {
		return err
	}
	defer db.Close()
	return app.Migrations().Up(ctx, db)
}

func startWorkers(ctx context.Context, workers []application.Worker, logger *logrus.Logger) {
	for _, w := range workers {
		go func(w application.Worker) {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).WithField("worker", w.Name()).Error("worker stopped")
			}
		}(w)
	}
}
