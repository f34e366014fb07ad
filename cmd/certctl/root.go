package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/vecinal/certdesk/internal/server"
	"github.com/vecinal/certdesk/modules"
	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/configuration"
	"github.com/vecinal/certdesk/pkg/eventbus"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "certctl",
		Short:         "Operator tools for the residence certificate desk",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newDocumentCmd(),
		newHistoryCmd(),
		newOutboxCmd(),
	)
	return cmd
}

// cliApp is a fully wired application without the HTTP server.
type cliApp struct {
	conf  *configuration.Configuration
	pool  *pgxpool.Pool
	app   application.Application
	infra *server.Infrastructure
}

func bootstrap(ctx context.Context) (*cliApp, error) {
	conf := configuration.Use()
	logger := conf.Logger()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}

	infra, err := server.NewInfrastructure(ctx, conf, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules(infra.Module)...); err != nil {
		infra.Close()
		pool.Close()
		return nil, err
	}
	return &cliApp{conf: conf, pool: pool, app: app, infra: infra}, nil
}

// ctx returns a context the services can open transactions on.
func (r *cliApp) ctx(parent context.Context) context.Context {
	return composables.WithPool(parent, r.pool)
}

func (r *cliApp) sqlDB() (*sql.DB, error) {
	return sql.Open("postgres", r.conf.Database.Opts)
}

func (r *cliApp) Close() {
	r.infra.Close()
	r.pool.Close()
	r.conf.Unload()
}

func withRuntime(cmd *cobra.Command, fn func(rt *cliApp) error) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func withDB(cmd *cobra.Command, fn func(rt *cliApp, db *sql.DB) error) error {
	return withRuntime(cmd, func(rt *cliApp) error {
		db, err := rt.sqlDB()
		if err != nil {
			return errors.Wrap(err, "open database")
		}
		defer func() { _ = db.Close() }()
		return fn(rt, db)
	})
}
