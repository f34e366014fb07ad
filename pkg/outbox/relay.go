package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Relay claims unpublished rows from one outbox table and hands them to a
// Dispatcher, acking, retrying with backoff, or parking them as dead.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       RelayOptions

	lockKey    int64
	m          *metrics
	tableLabel string
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()

	label := TableLabel(table)
	return &Relay{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		lockKey:    advisoryLockKey("outbox:" + label),
		m:          getMetrics(),
		tableLabel: label,
	}, nil
}

func (r *Relay) Run(ctx context.Context) error {
	if r.opts.SingleActive {
		return r.runSingleActive(ctx)
	}
	r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
	return r.runLoop(ctx, nil)
}

// Drain processes claimable messages until a batch comes back empty and
// returns how many were dispatched.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.processOnce(ctx, nil)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

func (r *Relay) runSingleActive(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: failed to acquire connection for single-active relay")
			if err := r.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		leader, err := r.tryAcquireLeader(ctx, conn)
		if err != nil || !leader {
			if err != nil {
				r.opts.Logger.WithError(err).Warn("outbox: failed to attempt advisory lock")
			}
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
			conn.Release()
			if err := r.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
		r.opts.Logger.WithField("table", r.tableLabel).Info("outbox: relay became leader")

		err = r.runLoop(ctx, conn)
		_ = r.releaseLeader(context.Background(), conn)
		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
		conn.Release()
		return err
	}
}

func (r *Relay) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.opts.PollInterval):
		return nil
	}
}

func (r *Relay) runLoop(ctx context.Context, conn *pgxpool.Conn) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := r.observeQueueDepth(ctx, conn); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}

		if _, err := r.processOnce(ctx, conn); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

type claimed struct {
	ID           uuid.UUID
	Topic        string
	AggregateKey string
	Payload      []byte
	EventID      uuid.UUID
	Sequence     int64
	Attempts     int
}

func (c claimed) fields(table string) logrus.Fields {
	return logrus.Fields{
		"table":         table,
		"topic":         c.Topic,
		"event_id":      c.EventID.String(),
		"aggregate_key": c.AggregateKey,
		"sequence":      c.Sequence,
		"attempts":      c.Attempts,
	}
}

func (r *Relay) processOnce(ctx context.Context, conn *pgxpool.Conn) (int, error) {
	now := time.Now()
	batch, err := r.claim(ctx, conn, now, now.Add(-r.opts.LockTTL))
	if err != nil {
		return 0, err
	}

	for _, c := range batch {
		r.deliver(ctx, conn, c)
	}
	return len(batch), nil
}

func (r *Relay) deliver(ctx context.Context, conn *pgxpool.Conn, c claimed) {
	dispatchCtx := ctx
	cancel := func() {}
	if r.opts.DispatchTimeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, r.opts.DispatchTimeout)
	}

	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
		Meta: Meta{
			Table:        r.table,
			Topic:        c.Topic,
			EventID:      c.EventID,
			AggregateKey: c.AggregateKey,
			Sequence:     c.Sequence,
			Attempts:     c.Attempts,
		},
		Payload: c.Payload,
	})
	cancel()
	latency := time.Since(start)

	log := r.opts.Logger.WithFields(c.fields(r.tableLabel))
	if err == nil {
		r.recordDispatch(c.Topic, "success", latency)
		if ackErr := r.ack(ctx, conn, c.ID); ackErr != nil {
			log.WithError(ackErr).Warn("outbox: ack failed")
		}
		return
	}

	r.recordDispatch(c.Topic, "failure", latency)
	lastErr := truncateError(err, r.opts.LastErrorMaxLen)

	if c.Attempts >= r.opts.MaxAttempts {
		r.m.deadTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
		log.WithError(err).Error("outbox: message exhausted its attempts")
		if deadErr := r.release(ctx, conn, c.ID, lastErr, time.Now()); deadErr != nil {
			log.WithError(deadErr).Warn("outbox: dead update failed")
		}
		return
	}

	log.WithError(err).Warn("outbox: dispatch failed, scheduling retry")
	next := time.Now().Add(backoff(c.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
	if nackErr := r.release(ctx, conn, c.ID, lastErr, next); nackErr != nil {
		log.WithError(nackErr).Warn("outbox: nack failed")
	}
}

func (r *Relay) claim(ctx context.Context, conn *pgxpool.Conn, now, lockCutoff time.Time) ([]claimed, error) {
	var items []claimed
	err := r.inTx(ctx, conn, func(tx pgx.Tx) error {
		q := fmt.Sprintf(
			`SELECT id, topic, aggregate_key, payload, event_id, sequence, attempts
			   FROM %s
			  WHERE published_at IS NULL
			    AND available_at <= $1
			    AND attempts < $2
			    AND (locked_at IS NULL OR locked_at < $3)
			  ORDER BY available_at, sequence
			  LIMIT $4
			  FOR UPDATE SKIP LOCKED`,
			r.table.Sanitize(),
		)
		rows, err := tx.Query(ctx, q, now, r.opts.MaxAttempts, lockCutoff, r.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("outbox claim select: %w", err)
		}
		defer rows.Close()

		var ids []uuid.UUID
		for rows.Next() {
			var c claimed
			if err := rows.Scan(&c.ID, &c.Topic, &c.AggregateKey, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
				return fmt.Errorf("outbox claim scan: %w", err)
			}
			c.Attempts++
			items = append(items, c)
			ids = append(ids, c.ID)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("outbox claim rows: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		update := fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, r.table.Sanitize())
		if _, err := tx.Exec(ctx, update, now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
			return fmt.Errorf("outbox claim update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Relay) ack(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID) error {
	return r.inTx(ctx, conn, func(tx pgx.Tx) error {
		q := fmt.Sprintf(
			`UPDATE %s
			    SET published_at = now(), locked_at = NULL, last_error = NULL
			  WHERE id = $1 AND published_at IS NULL`,
			r.table.Sanitize(),
		)
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return fmt.Errorf("outbox ack: %w", err)
		}
		return nil
	})
}

// release unlocks a failed message, records its error, and sets when it may
// be claimed again. Dead messages stay unpublished with attempts >= MaxAttempts.
func (r *Relay) release(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID, lastError string, availableAt time.Time) error {
	return r.inTx(ctx, conn, func(tx pgx.Tx) error {
		q := fmt.Sprintf(
			`UPDATE %s
			    SET locked_at = NULL, last_error = $2, available_at = $3
			  WHERE id = $1 AND published_at IS NULL`,
			r.table.Sanitize(),
		)
		if _, err := tx.Exec(ctx, q, id, lastError, availableAt); err != nil {
			return fmt.Errorf("outbox release: %w", err)
		}
		return nil
	})
}

func (r *Relay) observeQueueDepth(ctx context.Context, conn *pgxpool.Conn) error {
	var db interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	} = r.pool
	if conn != nil {
		db = conn
	}

	q := fmt.Sprintf(
		`SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL)
		   FROM %s WHERE published_at IS NULL`,
		r.table.Sanitize(),
	)
	var pending, locked int64
	if err := db.QueryRow(ctx, q).Scan(&pending, &locked); err != nil {
		return fmt.Errorf("outbox queue depth: %w", err)
	}
	r.m.pending.WithLabelValues(r.tableLabel).Set(float64(pending))
	r.m.locked.WithLabelValues(r.tableLabel).Set(float64(locked))
	return nil
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, topic, result).Observe(latency.Seconds())
}

func (r *Relay) tryAcquireLeader(ctx context.Context, conn *pgxpool.Conn) (bool, error) {
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Relay) releaseLeader(ctx context.Context, conn *pgxpool.Conn) error {
	var ok bool
	return conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey).Scan(&ok)
}

// inTx runs fn in a transaction on the leader connection when one is held.
func (r *Relay) inTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if conn != nil {
		tx, err = conn.BeginTx(ctx, pgx.TxOptions{})
	} else {
		tx, err = r.pool.BeginTx(ctx, pgx.TxOptions{})
	}
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
