package services

import (
	"context"
	"time"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/eventbus"
)

// Outbox enqueues an event on the transaction carried by ctx.
type Outbox interface {
	Enqueue(ctx context.Context, topic, aggregateKey string, payload any) error
}

type MemberRegistry interface {
	PhoneByNationalID(ctx context.Context, nationalID string) (string, bool, error)
}

type Renderer interface {
	Render(ctx context.Context, rec history.Record) ([]byte, error)
}

type VerifyCache interface {
	Get(ctx context.Context, folio string, dst any) (bool, error)
	Set(ctx context.Context, folio string, value any) error
	Invalidate(ctx context.Context, folio string) error
}

// TxFunc runs fn in one transaction, joining the one in ctx if present.
type TxFunc func(ctx context.Context, fn func(txCtx context.Context) error) error

// Deps are the collaborators shared by the certificate services.
type Deps struct {
	Requests request.Repository
	Ledger   history.Repository
	Outbox   Outbox
	Bus      eventbus.EventBus
	InTx     TxFunc
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.InTx == nil {
		d.InTx = composables.InTx
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func inTxResult[T any](ctx context.Context, inTx TxFunc, fn func(txCtx context.Context) (T, error)) (T, error) {
	var out T
	err := inTx(ctx, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	return out, err
}

// publish hands an event to in-process subscribers once its transaction
// has committed.
func (d Deps) publish(ctx context.Context, event any) {
	if d.Bus != nil {
		d.Bus.Publish(ctx, event)
	}
}
