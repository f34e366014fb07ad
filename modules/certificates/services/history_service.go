package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/wI2L/jsondiff"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/domain/events"
)

type HistoryService struct {
	deps Deps
}

func NewHistoryService(deps Deps) *HistoryService {
	return &HistoryService{deps: deps.withDefaults()}
}

func (s *HistoryService) List(ctx context.Context, params *history.FindParams) ([]history.Record, error) {
	return s.deps.Ledger.List(ctx, params)
}

func (s *HistoryService) GetByFolio(ctx context.Context, folio string) (history.Record, error) {
	return s.deps.Ledger.GetByFolio(ctx, folio)
}

// UpdateLatestByFolio applies a corrective edit to the ledger record. The
// state is never touched; the change is audited as a JSON Patch.
func (s *HistoryService) UpdateLatestByFolio(ctx context.Context, folio string, patch history.Patch) (history.Record, error) {
	if err := patch.Validate(); err != nil {
		return history.Record{}, err
	}
	if patch.IsEmpty() {
		return s.deps.Ledger.GetByFolio(ctx, folio)
	}

	var corrected *events.RecordCorrected
	saved, err := inTxResult(ctx, s.deps.InTx, func(txCtx context.Context) (history.Record, error) {
		before, err := s.deps.Ledger.GetByFolio(txCtx, folio)
		if err != nil {
			return history.Record{}, err
		}
		after, err := s.deps.Ledger.Update(txCtx, patch.Apply(before))
		if err != nil {
			return history.Record{}, err
		}
		corrected, err = correctionEvent(before, after, SourceHistory, s.deps.Now())
		if err != nil {
			return history.Record{}, err
		}
		if err := s.deps.Outbox.Enqueue(txCtx, events.TopicRequestCorrected, folio, corrected); err != nil {
			return history.Record{}, err
		}
		return after, nil
	})
	if err != nil {
		return history.Record{}, domain.TransactionError(err)
	}
	s.deps.publish(ctx, corrected)
	return saved, nil
}

// ledgerView is the audited shape of a record.
type ledgerView struct {
	RequestorName     string                `json:"name"`
	NationalID        string                `json:"national_id"`
	Address           string                `json:"address"`
	Email             string                `json:"email"`
	Phone             string                `json:"phone"`
	PaymentMethod     request.PaymentMethod `json:"payment_method"`
	ProofOfPaymentURL string                `json:"proof_of_payment_url"`
	Notes             string                `json:"notes"`
	State             request.State         `json:"state"`
	Comment           string                `json:"comment"`
	ValidatorID       *int64                `json:"validator_id"`
}

func viewOf(rec history.Record) ledgerView {
	return ledgerView{
		RequestorName:     rec.RequestorName,
		NationalID:        rec.NationalID,
		Address:           rec.Address,
		Email:             rec.Email,
		Phone:             rec.Phone,
		PaymentMethod:     rec.PaymentMethod,
		ProofOfPaymentURL: rec.ProofOfPaymentURL,
		Notes:             rec.Notes,
		State:             rec.State,
		Comment:           rec.Comment,
		ValidatorID:       rec.ValidatorID,
	}
}

func correctionEvent(before, after history.Record, source string, at time.Time) (*events.RecordCorrected, error) {
	patch, err := jsondiff.Compare(viewOf(before), viewOf(after))
	if err != nil {
		return nil, errors.Wrap(err, "diff ledger record")
	}
	if patch == nil {
		patch = jsondiff.Patch{}
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, errors.Wrap(err, "encode ledger patch")
	}
	return &events.RecordCorrected{
		RequestID:  after.RequestID,
		Folio:      after.Folio,
		Source:     source,
		Patch:      raw,
		OccurredAt: at,
	}, nil
}
