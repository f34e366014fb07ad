package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type captureTx struct {
	sql  string
	args []any
	seq  int64
	err  error
}

func (c *captureTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (c *captureTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (c *captureTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (c *captureTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (c *captureTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.sql = sql
	c.args = args
	return seqRow{seq: c.seq, err: c.err}
}

type seqRow struct {
	seq int64
	err error
}

func (r seqRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.seq
	return nil
}

func TestPublisher_EnqueueWritesThroughTx(t *testing.T) {
	tx := &captureTx{seq: 42}
	table := pgx.Identifier{"public", "certificates_outbox"}
	eventID := uuid.New()

	seq, err := NewPublisher().Enqueue(context.Background(), tx, table, Message{
		Topic:        "certificates.document.requested",
		EventID:      eventID,
		AggregateKey: "C-00100",
		Payload:      json.RawMessage(`{"folio":"C-00100"}`),
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), seq)
	require.Contains(t, tx.sql, `INSERT INTO "public"."certificates_outbox"`)
	require.Equal(t, "certificates.document.requested", tx.args[0])
	require.Equal(t, "C-00100", tx.args[1])
	require.Equal(t, eventID, tx.args[3])
}

func TestPublisher_EnqueueRejectsIncompleteMessages(t *testing.T) {
	table := pgx.Identifier{"certificates_outbox"}
	payload := json.RawMessage(`{}`)
	cases := map[string]struct {
		table pgx.Identifier
		msg   Message
		want  error
	}{
		"missing table":   {nil, Message{Topic: "t", EventID: uuid.New(), Payload: payload}, ErrInvalidConfig},
		"missing event":   {table, Message{Topic: "t", Payload: payload}, ErrInvalidMessage},
		"missing topic":   {table, Message{EventID: uuid.New(), Payload: payload}, ErrInvalidMessage},
		"missing payload": {table, Message{Topic: "t", EventID: uuid.New()}, ErrInvalidMessage},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tx := &captureTx{}
			_, err := NewPublisher().Enqueue(context.Background(), tx, tc.table, tc.msg)
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, tx.sql)
		})
	}
}

func TestPublisher_EnqueueWrapsDriverErrors(t *testing.T) {
	boom := errors.New("connection reset")
	tx := &captureTx{err: boom}
	_, err := NewPublisher().Enqueue(context.Background(), tx, pgx.Identifier{"certificates_outbox"}, Message{
		Topic:   "t",
		EventID: uuid.New(),
		Payload: json.RawMessage(`{}`),
	})
	require.ErrorIs(t, err, boom)
}
