package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vecinal/certdesk/pkg/repo"
)

type Publisher interface {
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (sequence int64, err error)
}

type publisher struct {
	m *metrics
}

func NewPublisher() Publisher {
	return &publisher{m: getMetrics()}
}

// Enqueue inserts msg through tx so it commits or rolls back with the
// caller's business writes. Re-enqueueing the same EventID is a no-op.
func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (int64, error) {
	if err := validateMessage(table, msg); err != nil {
		return 0, err
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (topic, aggregate_key, payload, event_id, available_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		 RETURNING sequence`,
		table.Sanitize(),
	)

	var sequence int64
	if err := tx.QueryRow(ctx, q, msg.Topic, msg.AggregateKey, msg.Payload, msg.EventID).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("outbox enqueue: %w", err)
	}

	p.m.enqueueTotal.WithLabelValues(TableLabel(table), msg.Topic).Inc()
	return sequence, nil
}

func validateMessage(table pgx.Identifier, msg Message) error {
	switch {
	case len(table) == 0:
		return fmt.Errorf("%w: table is required", ErrInvalidConfig)
	case msg.EventID == uuid.Nil:
		return fmt.Errorf("%w: event_id is required", ErrInvalidMessage)
	case msg.Topic == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidMessage)
	case len(msg.Payload) == 0:
		return fmt.Errorf("%w: payload is required", ErrInvalidMessage)
	}
	return nil
}
