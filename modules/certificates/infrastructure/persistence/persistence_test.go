package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/pkg/constants"
	"github.com/vecinal/certdesk/pkg/outbox"
	"github.com/vecinal/certdesk/pkg/repo"
)

func TestRequestRepository_Create_AllocatesFolio(t *testing.T) {
	now := time.Now()
	calls := 0
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			calls++
			if calls == 1 {
				require.Contains(t, sql, "nextval('certificate_folio_seq')")
				return stubRow{scan: func(dest ...any) error {
					*dest[0].(*int64) = 101
					return nil
				}}
			}
			require.Contains(t, sql, "INSERT INTO certificate_requests")
			require.Equal(t, "C-00101", args[0])
			require.Equal(t, "pending", args[8])
			return rowOf(requestRow(7, "C-00101", "pending", now))
		},
	}

	repo := NewRequestRepository()
	created, err := repo.Create(withTx(tx), request.Request{
		RequestorName: "Ana Pérez",
		NationalID:    "12345678K",
		Address:       "Los Aromos 123",
		PaymentMethod: request.BankTransfer,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), created.ID)
	require.Equal(t, "C-00101", created.Folio)
	require.Equal(t, request.Pending, created.State)
	require.Equal(t, now, created.CreatedAt)
}

func TestRequestRepository_List_FiltersByState(t *testing.T) {
	now := time.Now()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "WHERE state = $1")
			require.Contains(t, sql, "ORDER BY created_at DESC")
			require.Equal(t, []any{"under_review"}, args)
			return &stubRows{data: [][]any{
				requestRow(2, "C-00101", "under_review", now),
				requestRow(1, "C-00100", "under_review", now.Add(-time.Hour)),
			}}, nil
		},
	}

	state := request.UnderReview
	list, err := NewRequestRepository().List(withTx(tx), &request.FindParams{State: &state})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "C-00101", list[0].Folio)
}

func TestRequestRepository_List_NoFilter(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.NotContains(t, sql, "WHERE")
			require.Empty(t, args)
			return &stubRows{}, nil
		},
	}
	list, err := NewRequestRepository().List(withTx(tx), nil)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestRequestRepository_GetByFolio_NotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	_, err := NewRequestRepository().GetByFolio(withTx(tx), "C-00999")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestRepository_Delete_RequiresAffectedRow(t *testing.T) {
	tx := &stubTx{tag: pgconn.NewCommandTag("DELETE 0")}
	err := NewRequestRepository().Delete(withTx(tx), 5)
	require.ErrorIs(t, err, domain.ErrNotFound)

	tx.tag = pgconn.NewCommandTag("DELETE 1")
	require.NoError(t, NewRequestRepository().Delete(withTx(tx), 5))
	require.Contains(t, tx.lastExec, "DELETE FROM certificate_requests")
}

func TestRequestRepository_UniqueViolationIsConflict(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505", Message: "duplicate key"}
			}}
		},
	}
	_, err := NewRequestRepository().Update(withTx(tx), request.Request{ID: 1, Folio: "C-00100"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestHistoryRepository_Upsert_OverwritesByRequestID(t *testing.T) {
	now := time.Now()
	validator := int64(42)
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "ON CONFLICT (request_id) DO UPDATE")
			require.Equal(t, int64(3), args[0])
			require.Equal(t, "approved", args[10])
			require.Equal(t, &validator, args[12])
			return rowOf(historyRow(9, 3, "C-00102", "approved", &validator, now))
		},
	}

	rec := history.Record{
		RequestID:   3,
		Folio:       "C-00102",
		State:       request.Approved,
		ValidatorID: &validator,
		RequestedAt: now,
		ChangedAt:   now,
	}
	saved, err := NewHistoryRepository().Upsert(withTx(tx), rec)
	require.NoError(t, err)
	require.Equal(t, int64(9), saved.ID)
	require.Equal(t, request.Approved, saved.State)
	require.Equal(t, int64(42), *saved.ValidatorID)
}

func TestHistoryRepository_TransitionIfState_GuardsExpectedState(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "WHERE request_id = $1 AND state = $2")
			require.Equal(t, "under_review", args[1])
			require.Equal(t, "approved", args[2])
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	rec := history.Record{RequestID: 3, State: request.Approved}
	_, err := NewHistoryRepository().TransitionIfState(withTx(tx), request.UnderReview, rec)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryRepository_List_OrdersByChangedAt(t *testing.T) {
	now := time.Now()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM certificate_request_history")
			require.Contains(t, sql, "ORDER BY changed_at DESC")
			return &stubRows{data: [][]any{
				historyRow(1, 1, "C-00100", "rejected", nil, now),
			}}, nil
		},
	}
	list, err := NewHistoryRepository().List(withTx(tx), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].ValidatorID)
	require.Equal(t, request.Rejected, list[0].State)
}

func TestHistoryRepository_SetDocumentURL(t *testing.T) {
	tx := &stubTx{tag: pgconn.NewCommandTag("UPDATE 1")}
	err := NewHistoryRepository().SetDocumentURL(withTx(tx), "C-00100", "http://x/doc.pdf")
	require.NoError(t, err)
	require.Contains(t, tx.lastExec, "SET document_url = $2")
	require.Equal(t, []any{"C-00100", "http://x/doc.pdf"}, tx.lastArgs)

	tx.tag = pgconn.NewCommandTag("UPDATE 0")
	err = NewHistoryRepository().SetDocumentURL(withTx(tx), "C-00404", "u")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOutboxWriter_EnqueuesOnContextTx(t *testing.T) {
	tx := &stubTx{}
	pub := &recordingPublisher{}
	table := pgx.Identifier{"public", "certificates_outbox"}
	w := NewOutboxWriter(pub, table)

	err := w.Enqueue(withTx(tx), "certificates.document.requested", "C-00100", map[string]string{"folio": "C-00100"})
	require.NoError(t, err)
	require.Same(t, tx, pub.tx)
	require.Equal(t, table, pub.table)
	require.Equal(t, "certificates.document.requested", pub.msg.Topic)
	require.Equal(t, "C-00100", pub.msg.AggregateKey)
	require.NotEqual(t, uuid.Nil, pub.msg.EventID)
	require.JSONEq(t, `{"folio":"C-00100"}`, string(pub.msg.Payload))
}

func TestOutboxWriter_NoDatabase(t *testing.T) {
	w := NewOutboxWriter(&recordingPublisher{}, pgx.Identifier{"certificates_outbox"})
	err := w.Enqueue(context.Background(), "t", "k", struct{}{})
	require.Error(t, err)
}

func withTx(tx *stubTx) context.Context {
	return context.WithValue(context.Background(), constants.TxKey, tx)
}

func requestRow(id int64, folio, state string, createdAt time.Time) []any {
	return []any{id, folio, "Ana Pérez", "12345678K", "Los Aromos 123", "", "", "bank_transfer", "", state, "", createdAt}
}

func historyRow(id, requestID int64, folio, state string, validator *int64, at time.Time) []any {
	return []any{
		id, requestID, folio, "Ana Pérez", "12345678K", "Los Aromos 123", "", "",
		"bank_transfer", "", "", state, "", validator, at, at, "",
	}
}

func rowOf(values []any) pgx.Row {
	rows := &stubRows{data: [][]any{values}}
	rows.Next()
	return stubRow{scan: rows.Scan}
}

type recordingPublisher struct {
	tx    any
	table pgx.Identifier
	msg   outbox.Message
}

func (p *recordingPublisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg outbox.Message) (int64, error) {
	p.tx = tx
	p.table = table
	p.msg = msg
	return 1, nil
}

type stubTx struct {
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	tag          pgconn.CommandTag
	lastExec     string
	lastArgs     []any
}

func (s *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("copy not implemented")
}

func (s *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	var results pgx.BatchResults
	return results
}

func (s *stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	s.lastExec = sql
	s.lastArgs = arguments
	return s.tag, nil
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc == nil {
		return stubRow{scan: func(dest ...any) error { return errors.New("query row not implemented") }}
	}
	return s.queryRowFunc(ctx, sql, args...)
}

type stubRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return errors.New("no current row to scan")
	}
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(row))
	}
	for i, target := range dest {
		switch v := target.(type) {
		case *int64:
			*v = row[i].(int64)
		case *string:
			*v = row[i].(string)
		case *time.Time:
			*v = row[i].(time.Time)
		case **int64:
			*v = row[i].(*int64)
		case *json.RawMessage:
			*v = row[i].(json.RawMessage)
		default:
			return fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return nil
}

func (r *stubRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.idx-1], nil
}

func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Err() error          { return r.err }
func (r *stubRows) Close()              {}
func (r *stubRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return errors.New("scan not implemented")
	}
	return r.scan(dest...)
}
