package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Cleaner deletes published rows past retention and, optionally, dead rows.
type Cleaner struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	opts       CleanerOptions
	tableLabel string
}

func NewCleaner(pool *pgxpool.Pool, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if opts.DeadRetention > 0 && opts.DeadAttemptsThreshold <= 0 {
		return nil, invalidConfig("dead retention requires DeadAttemptsThreshold > 0")
	}
	opts.setDefaults()
	return &Cleaner{
		pool:       pool,
		table:      table,
		opts:       opts,
		tableLabel: TableLabel(table),
	}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	if !c.opts.Enabled {
		return nil
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := c.CleanOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("table", c.tableLabel).Warn("outbox: cleaner tick failed")
			continue
		}
		if res.Published > 0 || res.Dead > 0 {
			c.opts.Logger.WithFields(logrus.Fields{
				"table":     c.tableLabel,
				"published": res.Published,
				"dead":      res.Dead,
			}).Info("outbox: cleaner removed rows")
		}
	}
}

// CleanResult counts the rows one pass removed.
type CleanResult struct {
	Published int64
	Dead      int64
}

// CleanOnce runs a single retention pass in one transaction.
func (c *Cleaner) CleanOnce(ctx context.Context) (CleanResult, error) {
	var res CleanResult
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	tableName := c.table.Sanitize()
	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, tableName),
		now.Add(-c.opts.Retention),
	)
	if err != nil {
		return res, fmt.Errorf("outbox cleaner delete published: %w", err)
	}
	res.Published = tag.RowsAffected()

	// Dead rows are those the relay gave up on; they are kept for inspection
	// unless a dead retention is configured.
	if c.opts.DeadRetention > 0 {
		tag, err = tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`, tableName),
			c.opts.DeadAttemptsThreshold, now.Add(-c.opts.DeadRetention),
		)
		if err != nil {
			return res, fmt.Errorf("outbox cleaner delete dead: %w", err)
		}
		res.Dead = tag.RowsAffected()
	}

	return res, tx.Commit(ctx)
}
