package history

import (
	"context"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
)

type Repository interface {
	// Upsert inserts the record for rec.RequestID or overwrites it.
	Upsert(ctx context.Context, rec Record) (Record, error)
	// TransitionIfState overwrites the record only while it is still in
	// expected; domain.ErrNotFound otherwise.
	TransitionIfState(ctx context.Context, expected request.State, rec Record) (Record, error)
	List(ctx context.Context, params *FindParams) ([]Record, error)
	GetByFolio(ctx context.Context, folio string) (Record, error)
	GetByRequestID(ctx context.Context, requestID int64) (Record, error)
	// Update rewrites descriptive fields by folio and never touches state.
	Update(ctx context.Context, rec Record) (Record, error)
	SetDocumentURL(ctx context.Context, folio, url string) error
	DeleteByFolio(ctx context.Context, folio string) error
	DeleteByRequestID(ctx context.Context, requestID int64) error
}
