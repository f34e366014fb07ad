package persistence

import (
	"context"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/persistence/models"
	"github.com/vecinal/certdesk/pkg/composables"
)

const historyColumns = `id, request_id, folio, requestor_name, national_id, address, email, phone,
	payment_method, proof_of_payment_url, notes, state, comment, validator_id,
	requested_at, changed_at, document_url`

const selectHistoryColumns = `SELECT ` + historyColumns + ` FROM certificate_request_history`

type HistoryRepository struct{}

func NewHistoryRepository() history.Repository {
	return &HistoryRepository{}
}

func scanHistory(row interface{ Scan(dest ...any) error }) (history.Record, error) {
	var m models.HistoryRecord
	if err := row.Scan(
		&m.ID,
		&m.RequestID,
		&m.Folio,
		&m.RequestorName,
		&m.NationalID,
		&m.Address,
		&m.Email,
		&m.Phone,
		&m.PaymentMethod,
		&m.ProofOfPaymentURL,
		&m.Notes,
		&m.State,
		&m.Comment,
		&m.ValidatorID,
		&m.RequestedAt,
		&m.ChangedAt,
		&m.DocumentURL,
	); err != nil {
		return history.Record{}, err
	}
	return toDomainHistory(&m), nil
}

// Upsert keeps one record per request: a second write for the same
// request_id overwrites the first.
func (r *HistoryRepository) Upsert(ctx context.Context, rec history.Record) (history.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return history.Record{}, err
	}
	m := toDBHistory(rec)
	saved, err := scanHistory(tx.QueryRow(ctx, `
		INSERT INTO certificate_request_history (
			request_id, folio, requestor_name, national_id, address, email, phone,
			payment_method, proof_of_payment_url, notes, state, comment, validator_id,
			requested_at, changed_at, document_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (request_id) DO UPDATE SET
			folio = EXCLUDED.folio,
			requestor_name = EXCLUDED.requestor_name,
			national_id = EXCLUDED.national_id,
			address = EXCLUDED.address,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			payment_method = EXCLUDED.payment_method,
			proof_of_payment_url = EXCLUDED.proof_of_payment_url,
			notes = EXCLUDED.notes,
			state = EXCLUDED.state,
			comment = EXCLUDED.comment,
			validator_id = EXCLUDED.validator_id,
			requested_at = EXCLUDED.requested_at,
			changed_at = EXCLUDED.changed_at,
			document_url = EXCLUDED.document_url
		RETURNING `+historyColumns,
		m.RequestID,
		m.Folio,
		m.RequestorName,
		m.NationalID,
		m.Address,
		m.Email,
		m.Phone,
		m.PaymentMethod,
		m.ProofOfPaymentURL,
		m.Notes,
		m.State,
		m.Comment,
		m.ValidatorID,
		m.RequestedAt,
		m.ChangedAt,
		m.DocumentURL,
	))
	if err != nil {
		return history.Record{}, mapError(err, "failed to upsert history record")
	}
	return saved, nil
}

func (r *HistoryRepository) TransitionIfState(ctx context.Context, expected request.State, rec history.Record) (history.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return history.Record{}, err
	}
	saved, err := scanHistory(tx.QueryRow(ctx, `
		UPDATE certificate_request_history
		   SET state = $3, comment = $4, validator_id = $5, changed_at = $6, document_url = $7
		 WHERE request_id = $1 AND state = $2
		RETURNING `+historyColumns,
		rec.RequestID,
		string(expected),
		string(rec.State),
		rec.Comment,
		rec.ValidatorID,
		rec.ChangedAt,
		rec.DocumentURL,
	))
	if err != nil {
		return history.Record{}, mapError(err, "failed to transition history record")
	}
	return saved, nil
}

func (r *HistoryRepository) List(ctx context.Context, params *history.FindParams) ([]history.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := selectHistoryColumns
	var args []any
	if state, ok := params.StateFilter(); ok {
		query += " WHERE state = $1"
		args = append(args, string(state))
	}
	query += " ORDER BY changed_at DESC, id DESC"

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to list history records")
	}
	defer rows.Close()

	out := make([]history.Record, 0)
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan history record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to list history records")
	}
	return out, nil
}

func (r *HistoryRepository) GetByFolio(ctx context.Context, folio string) (history.Record, error) {
	return r.getOne(ctx, selectHistoryColumns+" WHERE folio = $1", folio)
}

func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID int64) (history.Record, error) {
	return r.getOne(ctx, selectHistoryColumns+" WHERE request_id = $1", requestID)
}

func (r *HistoryRepository) getOne(ctx context.Context, query string, arg any) (history.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return history.Record{}, err
	}
	rec, err := scanHistory(tx.QueryRow(ctx, query, arg))
	if err != nil {
		return history.Record{}, mapError(err, "failed to get history record")
	}
	return rec, nil
}

func (r *HistoryRepository) Update(ctx context.Context, rec history.Record) (history.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return history.Record{}, err
	}
	m := toDBHistory(rec)
	saved, err := scanHistory(tx.QueryRow(ctx, `
		UPDATE certificate_request_history
		   SET requestor_name = $2, national_id = $3, address = $4, email = $5, phone = $6,
		       payment_method = $7, proof_of_payment_url = $8, notes = $9, comment = $10,
		       validator_id = $11
		 WHERE folio = $1
		RETURNING `+historyColumns,
		m.Folio,
		m.RequestorName,
		m.NationalID,
		m.Address,
		m.Email,
		m.Phone,
		m.PaymentMethod,
		m.ProofOfPaymentURL,
		m.Notes,
		m.Comment,
		m.ValidatorID,
	))
	if err != nil {
		return history.Record{}, mapError(err, "failed to update history record")
	}
	return saved, nil
}

func (r *HistoryRepository) SetDocumentURL(ctx context.Context, folio, url string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE certificate_request_history SET document_url = $2 WHERE folio = $1`, folio, url)
	if err != nil {
		return mapError(err, "failed to set document url")
	}
	return requireAffected(tag)
}

func (r *HistoryRepository) DeleteByFolio(ctx context.Context, folio string) error {
	return r.deleteWhere(ctx, `DELETE FROM certificate_request_history WHERE folio = $1`, folio)
}

func (r *HistoryRepository) DeleteByRequestID(ctx context.Context, requestID int64) error {
	return r.deleteWhere(ctx, `DELETE FROM certificate_request_history WHERE request_id = $1`, requestID)
}

func (r *HistoryRepository) deleteWhere(ctx context.Context, query string, arg any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, arg)
	if err != nil {
		return mapError(err, "failed to delete history record")
	}
	return requireAffected(tag)
}
