package request

import "context"

type Repository interface {
	// Create assigns the id, folio and creation time.
	Create(ctx context.Context, r Request) (Request, error)
	List(ctx context.Context, params *FindParams) ([]Request, error)
	GetByID(ctx context.Context, id int64) (Request, error)
	GetByFolio(ctx context.Context, folio string) (Request, error)
	Update(ctx context.Context, r Request) (Request, error)
	// Delete and DeleteByFolio return domain.ErrNotFound when no row went away.
	Delete(ctx context.Context, id int64) error
	DeleteByFolio(ctx context.Context, folio string) error
}
