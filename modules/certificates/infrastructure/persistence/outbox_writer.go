package persistence

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pkgerrors "github.com/pkg/errors"

	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/outbox"
)

// OutboxWriter enqueues events on the transaction carried by ctx, so they
// commit or roll back with the business writes around them.
type OutboxWriter struct {
	publisher outbox.Publisher
	table     pgx.Identifier
	newID     func() uuid.UUID
}

func NewOutboxWriter(publisher outbox.Publisher, table pgx.Identifier) *OutboxWriter {
	return &OutboxWriter{publisher: publisher, table: table, newID: uuid.New}
}

func (w *OutboxWriter) Enqueue(ctx context.Context, topic, aggregateKey string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode outbox payload")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = w.publisher.Enqueue(ctx, tx, w.table, outbox.Message{
		Topic:        topic,
		EventID:      w.newID(),
		AggregateKey: aggregateKey,
		Payload:      raw,
	})
	return err
}
