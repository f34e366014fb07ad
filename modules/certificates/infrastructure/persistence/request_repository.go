package persistence

import (
	"context"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/persistence/models"
	"github.com/vecinal/certdesk/pkg/composables"
)

const selectRequestColumns = `
	SELECT id, folio, requestor_name, national_id, address, email, phone,
	       payment_method, proof_of_payment_url, state, notes, created_at
	FROM certificate_requests`

type RequestRepository struct{}

func NewRequestRepository() request.Repository {
	return &RequestRepository{}
}

func scanRequest(row interface{ Scan(dest ...any) error }) (request.Request, error) {
	var m models.CertificateRequest
	if err := row.Scan(
		&m.ID,
		&m.Folio,
		&m.RequestorName,
		&m.NationalID,
		&m.Address,
		&m.Email,
		&m.Phone,
		&m.PaymentMethod,
		&m.ProofOfPaymentURL,
		&m.State,
		&m.Notes,
		&m.CreatedAt,
	); err != nil {
		return request.Request{}, err
	}
	return toDomainRequest(&m), nil
}

func (r *RequestRepository) Create(ctx context.Context, data request.Request) (request.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return request.Request{}, err
	}

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('certificate_folio_seq')`).Scan(&seq); err != nil {
		return request.Request{}, mapError(err, "failed to allocate folio")
	}

	m := toDBRequest(data)
	m.Folio = request.FormatFolio(seq)
	if m.State == "" {
		m.State = string(request.Pending)
	}

	created, err := scanRequest(tx.QueryRow(ctx, `
		INSERT INTO certificate_requests (
			folio, requestor_name, national_id, address, email, phone,
			payment_method, proof_of_payment_url, state, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, folio, requestor_name, national_id, address, email, phone,
		          payment_method, proof_of_payment_url, state, notes, created_at`,
		m.Folio,
		m.RequestorName,
		m.NationalID,
		m.Address,
		m.Email,
		m.Phone,
		m.PaymentMethod,
		m.ProofOfPaymentURL,
		m.State,
		m.Notes,
	))
	if err != nil {
		return request.Request{}, mapError(err, "failed to create certificate request")
	}
	return created, nil
}

func (r *RequestRepository) List(ctx context.Context, params *request.FindParams) ([]request.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := selectRequestColumns
	var args []any
	if state, ok := params.StateFilter(); ok {
		query += " WHERE state = $1"
		args = append(args, string(state))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to list certificate requests")
	}
	defer rows.Close()

	out := make([]request.Request, 0)
	for rows.Next() {
		item, err := scanRequest(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan certificate request")
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to list certificate requests")
	}
	return out, nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id int64) (request.Request, error) {
	return r.getOne(ctx, selectRequestColumns+" WHERE id = $1", id)
}

func (r *RequestRepository) GetByFolio(ctx context.Context, folio string) (request.Request, error) {
	return r.getOne(ctx, selectRequestColumns+" WHERE folio = $1", folio)
}

func (r *RequestRepository) getOne(ctx context.Context, query string, arg any) (request.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return request.Request{}, err
	}
	item, err := scanRequest(tx.QueryRow(ctx, query, arg))
	if err != nil {
		return request.Request{}, mapError(err, "failed to get certificate request")
	}
	return item, nil
}

func (r *RequestRepository) Update(ctx context.Context, data request.Request) (request.Request, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return request.Request{}, err
	}
	m := toDBRequest(data)
	updated, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE certificate_requests
		   SET requestor_name = $2, national_id = $3, address = $4, email = $5, phone = $6,
		       payment_method = $7, proof_of_payment_url = $8, notes = $9
		 WHERE id = $1
		RETURNING id, folio, requestor_name, national_id, address, email, phone,
		          payment_method, proof_of_payment_url, state, notes, created_at`,
		m.ID,
		m.RequestorName,
		m.NationalID,
		m.Address,
		m.Email,
		m.Phone,
		m.PaymentMethod,
		m.ProofOfPaymentURL,
		m.Notes,
	))
	if err != nil {
		return request.Request{}, mapError(err, "failed to update certificate request")
	}
	return updated, nil
}

func (r *RequestRepository) Delete(ctx context.Context, id int64) error {
	return r.deleteWhere(ctx, `DELETE FROM certificate_requests WHERE id = $1`, id)
}

func (r *RequestRepository) DeleteByFolio(ctx context.Context, folio string) error {
	return r.deleteWhere(ctx, `DELETE FROM certificate_requests WHERE folio = $1`, folio)
}

func (r *RequestRepository) deleteWhere(ctx context.Context, query string, arg any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, arg)
	if err != nil {
		return mapError(err, "failed to delete certificate request")
	}
	return requireAffected(tag)
}

