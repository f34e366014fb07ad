package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/domain/events"
	"github.com/vecinal/certdesk/modules/certificates/domain/value_objects/nationalid"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/serrors"
	"github.com/vecinal/certdesk/pkg/types"
)

const (
	SourceActive  = "active"
	SourceHistory = "history"
)

// FolioView is what a folio resolves to: the active request while it
// exists, the ledger record afterwards.
type FolioView struct {
	Source  string
	Request *request.Request
	Record  *history.Record
}

// State of the folio in whichever store answered.
func (v FolioView) State() request.State {
	if v.Request != nil {
		return v.Request.State
	}
	if v.Record != nil {
		return v.Record.State
	}
	return ""
}

type RequestService struct {
	deps       Deps
	translator *serrors.Translator
	registry   MemberRegistry
	documents  *DocumentService
}

// NewRequestService builds the request service. registry and documents
// may be nil.
func NewRequestService(deps Deps, translator *serrors.Translator, registry MemberRegistry, documents *DocumentService) *RequestService {
	return &RequestService{
		deps:       deps.withDefaults(),
		translator: translator,
		registry:   registry,
		documents:  documents,
	}
}

func (s *RequestService) Create(ctx context.Context, dto *request.CreateDTO) (request.Request, error) {
	if dto == nil {
		return request.Request{}, domain.ErrValidation
	}
	if err := dto.Validate(s.translator); err != nil {
		return request.Request{}, err
	}
	entity := dto.ToEntity()
	if entity.Phone == "" {
		entity.Phone = s.lookupPhone(ctx, entity.NationalID)
	}

	created, err := inTxResult(ctx, s.deps.InTx, func(txCtx context.Context) (request.Request, error) {
		created, err := s.deps.Requests.Create(txCtx, entity)
		if err != nil {
			return request.Request{}, err
		}
		snapshot := history.Snapshot(created, created.State, "", nil, created.CreatedAt)
		if _, err := s.deps.Ledger.Upsert(txCtx, snapshot); err != nil {
			return request.Request{}, err
		}
		ev := events.RequestCreated{
			RequestID:  created.ID,
			Folio:      created.Folio,
			State:      created.State,
			OccurredAt: created.CreatedAt,
		}
		if err := s.deps.Outbox.Enqueue(txCtx, events.TopicRequestCreated, created.Folio, ev); err != nil {
			return request.Request{}, err
		}
		return created, nil
	})
	if err != nil {
		return request.Request{}, domain.TransactionError(err)
	}

	s.deps.publish(ctx, &events.RequestCreated{
		RequestID:  created.ID,
		Folio:      created.Folio,
		State:      created.State,
		OccurredAt: created.CreatedAt,
	})
	return created, nil
}

// lookupPhone is best effort: a registry outage must not block intake.
func (s *RequestService) lookupPhone(ctx context.Context, nationalID string) string {
	if s.registry == nil {
		return ""
	}
	phone, ok, err := s.registry.PhoneByNationalID(ctx, nationalID)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("member registry lookup failed")
		return ""
	}
	if !ok {
		return ""
	}
	return phone
}

func (s *RequestService) List(ctx context.Context, params *request.FindParams) ([]request.Request, error) {
	return s.deps.Requests.List(ctx, params)
}

func (s *RequestService) GetByID(ctx context.Context, id int64) (request.Request, error) {
	return s.deps.Requests.GetByID(ctx, id)
}

func (s *RequestService) GetByFolio(ctx context.Context, folio string) (FolioView, error) {
	req, err := s.deps.Requests.GetByFolio(ctx, folio)
	if err == nil {
		return FolioView{Source: SourceActive, Request: &req}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return FolioView{}, err
	}
	rec, err := s.deps.Ledger.GetByFolio(ctx, folio)
	if err != nil {
		return FolioView{}, err
	}
	return FolioView{Source: SourceHistory, Record: &rec}, nil
}

// Update edits the descriptive fields of an active request and carries
// the same edit over to its ledger snapshot.
func (s *RequestService) Update(ctx context.Context, id int64, patch request.Patch) (request.Request, error) {
	if err := patch.Validate(); err != nil {
		return request.Request{}, err
	}
	if patch.IsEmpty() {
		return s.deps.Requests.GetByID(ctx, id)
	}

	var corrected *events.RecordCorrected
	updated, err := inTxResult(ctx, s.deps.InTx, func(txCtx context.Context) (request.Request, error) {
		current, err := s.deps.Requests.GetByID(txCtx, id)
		if err != nil {
			return request.Request{}, err
		}
		edit := s.refreshPhone(txCtx, patch, current)
		updated, err := s.deps.Requests.Update(txCtx, edit.Apply(current))
		if err != nil {
			return request.Request{}, err
		}

		before, err := s.deps.Ledger.GetByRequestID(txCtx, id)
		if errors.Is(err, domain.ErrNotFound) {
			snapshot := history.Snapshot(updated, updated.State, "", nil, updated.CreatedAt)
			_, err = s.deps.Ledger.Upsert(txCtx, snapshot)
			return updated, err
		}
		if err != nil {
			return request.Request{}, err
		}
		after, err := s.deps.Ledger.Update(txCtx, history.FromRequestPatch(edit).Apply(before))
		if err != nil {
			return request.Request{}, err
		}
		corrected, err = correctionEvent(before, after, SourceActive, s.deps.Now())
		if err != nil {
			return request.Request{}, err
		}
		if err := s.deps.Outbox.Enqueue(txCtx, events.TopicRequestCorrected, after.Folio, corrected); err != nil {
			return request.Request{}, err
		}
		return updated, nil
	})
	if err != nil {
		return request.Request{}, domain.TransactionError(err)
	}
	if corrected != nil {
		s.deps.publish(ctx, corrected)
	}
	return updated, nil
}

// refreshPhone backfills the phone when an edit names a different person
// and the request has none. Formatting-only edits keep the earlier lookup.
func (s *RequestService) refreshPhone(ctx context.Context, patch request.Patch, current request.Request) request.Patch {
	if !patch.NationalID.Set || patch.Phone.Set || current.Phone != "" {
		return patch
	}
	if nationalid.Equal(patch.NationalID.Value, current.NationalID) {
		return patch
	}
	if phone := s.lookupPhone(ctx, patch.NationalID.Value); phone != "" {
		patch.Phone = types.Some(phone)
	}
	return patch
}

// Delete purges a request from both stores by id.
func (s *RequestService) Delete(ctx context.Context, id int64) error {
	folio, err := inTxResult(ctx, s.deps.InTx, func(txCtx context.Context) (string, error) {
		var folio string
		req, err := s.deps.Requests.GetByID(txCtx, id)
		switch {
		case err == nil:
			folio = req.Folio
			if err := s.deps.Requests.Delete(txCtx, id); err != nil {
				return "", err
			}
		case errors.Is(err, domain.ErrNotFound):
		default:
			return "", err
		}

		rec, err := s.deps.Ledger.GetByRequestID(txCtx, id)
		switch {
		case err == nil:
			folio = rec.Folio
			if err := s.deps.Ledger.DeleteByRequestID(txCtx, id); err != nil {
				return "", err
			}
		case errors.Is(err, domain.ErrNotFound):
			if folio == "" {
				return "", domain.ErrNotFound
			}
		default:
			return "", err
		}
		return folio, s.enqueuePurged(txCtx, id, folio)
	})
	if err != nil {
		return domain.TransactionError(err)
	}
	s.afterPurge(ctx, id, folio)
	return nil
}

// DeleteByFolio purges whichever stores still hold folio.
func (s *RequestService) DeleteByFolio(ctx context.Context, folio string) error {
	id, err := inTxResult(ctx, s.deps.InTx, func(txCtx context.Context) (int64, error) {
		var id int64
		found := false

		req, err := s.deps.Requests.GetByFolio(txCtx, folio)
		switch {
		case err == nil:
			id, found = req.ID, true
			if err := s.deps.Requests.DeleteByFolio(txCtx, folio); err != nil {
				return 0, err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return 0, err
		}

		rec, err := s.deps.Ledger.GetByFolio(txCtx, folio)
		switch {
		case err == nil:
			id, found = rec.RequestID, true
			if err := s.deps.Ledger.DeleteByFolio(txCtx, folio); err != nil {
				return 0, err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return 0, err
		}

		if !found {
			return 0, domain.ErrNotFound
		}
		return id, s.enqueuePurged(txCtx, id, folio)
	})
	if err != nil {
		return domain.TransactionError(err)
	}
	s.afterPurge(ctx, id, folio)
	return nil
}

func (s *RequestService) enqueuePurged(ctx context.Context, id int64, folio string) error {
	ev := events.RequestPurged{RequestID: id, Folio: folio, OccurredAt: s.deps.Now()}
	return s.deps.Outbox.Enqueue(ctx, events.TopicRequestPurged, folio, ev)
}

// afterPurge removes stored artifacts. Failures are logged: the records
// are already gone and an orphaned file is harmless.
func (s *RequestService) afterPurge(ctx context.Context, id int64, folio string) {
	if s.documents != nil {
		if err := s.documents.Remove(ctx, folio); err != nil {
			composables.UseLogger(ctx).WithError(err).WithField("folio", folio).Warn("failed to delete artifacts")
		}
	}
	s.deps.publish(ctx, &events.RequestPurged{RequestID: id, Folio: folio, OccurredAt: s.deps.Now()})
}
