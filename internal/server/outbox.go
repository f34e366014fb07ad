package server

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/configuration"
	"github.com/vecinal/certdesk/pkg/eventbus"
	"github.com/vecinal/certdesk/pkg/outbox"
	eventbusdispatcher "github.com/vecinal/certdesk/pkg/outbox/dispatchers/eventbus"
)

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func (w worker) Name() string                  { return w.name }
func (w worker) Run(ctx context.Context) error { return w.run(ctx) }

// NewRelays builds one relay per OUTBOX_RELAY_TABLES entry, dispatching
// through the application bus.
func NewRelays(conf *configuration.Configuration, pool *pgxpool.Pool, bus eventbus.EventBusWithError, logger *logrus.Entry) ([]*outbox.Relay, error) {
	tables, err := outbox.ParseIdentifierList(conf.Outbox.RelayTables)
	if err != nil {
		return nil, err
	}
	dispatcher := eventbusdispatcher.New(bus)
	relays := make([]*outbox.Relay, 0, len(tables))
	for _, table := range tables {
		relay, err := outbox.NewRelay(pool, table, dispatcher, outbox.RelayOptions{
			PollInterval:    conf.Outbox.RelayPollInterval,
			BatchSize:       conf.Outbox.RelayBatchSize,
			LockTTL:         conf.Outbox.RelayLockTTL,
			MaxAttempts:     conf.Outbox.RelayMaxAttempts,
			SingleActive:    conf.Outbox.RelaySingleActive,
			LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
			DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
			Logger:          logger.WithField("table", outbox.TableLabel(table)),
		})
		if err != nil {
			return nil, err
		}
		relays = append(relays, relay)
	}
	return relays, nil
}

// OutboxWorkers returns the relay and cleaner loops enabled by
// configuration. Misconfigured tables disable the affected loop.
func OutboxWorkers(conf *configuration.Configuration, pool *pgxpool.Pool, bus eventbus.EventBusWithError, logger *logrus.Logger) []application.Worker {
	outboxLog := logger.WithField("component", "outbox")
	var workers []application.Worker

	if conf.Outbox.RelayEnabled {
		relays, err := NewRelays(conf, pool, bus, outboxLog)
		if err != nil {
			outboxLog.WithError(err).Warn("outbox: invalid OUTBOX_RELAY_TABLES; relay disabled")
		}
		for _, relay := range relays {
			workers = append(workers, worker{name: "outbox-relay", run: relay.Run})
		}
	}

	if !conf.Outbox.CleanerEnabled {
		return workers
	}
	cleaners, err := NewCleaners(conf, pool, outboxLog)
	if err != nil {
		outboxLog.WithError(err).Warn("outbox: invalid OUTBOX_CLEANER_TABLES; cleaner disabled")
		return workers
	}
	if len(cleaners) == 0 {
		outboxLog.Info("outbox: cleaner enabled but no tables configured")
	}
	for _, cleaner := range cleaners {
		workers = append(workers, worker{name: "outbox-cleaner", run: cleaner.Run})
	}
	return workers
}

// CleanerTables resolves OUTBOX_CLEANER_TABLES, defaulting to the relay tables.
func CleanerTables(conf *configuration.Configuration) ([]pgx.Identifier, error) {
	spec := conf.Outbox.CleanerTables
	if spec == "" {
		spec = conf.Outbox.RelayTables
	}
	return outbox.ParseIdentifierList(spec)
}

// NewCleaners builds one retention cleaner per cleaner table.
func NewCleaners(conf *configuration.Configuration, pool *pgxpool.Pool, logger *logrus.Entry) ([]*outbox.Cleaner, error) {
	tables, err := CleanerTables(conf)
	if err != nil {
		return nil, err
	}
	cleaners := make([]*outbox.Cleaner, 0, len(tables))
	for _, table := range tables {
		cleaner, err := outbox.NewCleaner(pool, table, outbox.CleanerOptions{
			Enabled:               true,
			Interval:              conf.Outbox.CleanerInterval,
			Retention:             conf.Outbox.CleanerRetention,
			DeadRetention:         conf.Outbox.CleanerDeadRetention,
			DeadAttemptsThreshold: conf.Outbox.RelayMaxAttempts,
			Logger:                logger.WithField("table", outbox.TableLabel(table)),
		})
		if err != nil {
			return nil, err
		}
		cleaners = append(cleaners, cleaner)
	}
	return cleaners, nil
}
