package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/domain/events"
	"github.com/vecinal/certdesk/pkg/composables"
)

// strictTransitions is the graph enforced when strict mode is on.
// Terminal states have no outgoing edges in either mode.
var strictTransitions = map[request.State][]request.State{
	request.Pending:     {request.UnderReview, request.Approved, request.Rejected},
	request.UnderReview: {request.Pending, request.Approved, request.Rejected},
}

type ChangeStateCommand struct {
	RequestID   int64
	State       string
	Comment     string
	ValidatorID *int64
}

// TransitionResult is a committed transition. DocumentError is set when
// the record was approved but the certificate could not be produced; the
// transition itself stands and the retry stays queued.
type TransitionResult struct {
	Record        history.Record
	From          request.State
	DocumentURL   string
	DocumentError error
}

type StateMachine struct {
	deps      Deps
	documents *DocumentService
	strict    bool
}

func NewStateMachine(deps Deps, documents *DocumentService, strict bool) *StateMachine {
	return &StateMachine{deps: deps.withDefaults(), documents: documents, strict: strict}
}

func (m *StateMachine) allowed(from, to request.State) bool {
	if from.IsTerminal() {
		return false
	}
	if !m.strict {
		return true
	}
	for _, s := range strictTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ChangeState moves a request to a new state. The ledger write and the
// removal of the active row commit together; on approval the certificate
// is generated after commit.
func (m *StateMachine) ChangeState(ctx context.Context, cmd ChangeStateCommand) (TransitionResult, error) {
	to, err := request.ParseState(cmd.State)
	if err != nil {
		return TransitionResult{}, err
	}

	res, err := inTxResult(ctx, m.deps.InTx, func(txCtx context.Context) (TransitionResult, error) {
		return m.move(txCtx, cmd, to)
	})
	if err != nil {
		return TransitionResult{}, domain.TransactionError(err)
	}

	recordTransition(res.From, res.Record.State)
	changed := events.NewStateChanged(res.From, res.Record)
	m.deps.publish(ctx, &changed)

	if to != request.Approved || m.documents == nil {
		return res, nil
	}
	info, err := m.documents.Generate(ctx, res.Record)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).WithFields(logrus.Fields{
			"folio": res.Record.Folio,
		}).Error("certificate generation failed; retry queued")
		res.DocumentError = err
		return res, nil
	}
	res.DocumentURL = info.URL
	res.Record.DocumentURL = info.URL
	return res, nil
}

func (m *StateMachine) move(ctx context.Context, cmd ChangeStateCommand, to request.State) (TransitionResult, error) {
	now := m.deps.Now()

	var (
		from  request.State
		saved history.Record
	)
	req, err := m.deps.Requests.GetByID(ctx, cmd.RequestID)
	switch {
	case err == nil:
		from = req.State
		if !m.allowed(from, to) {
			return TransitionResult{}, invalidTransition(from, to)
		}
		saved, err = m.deps.Ledger.Upsert(ctx, history.Snapshot(req, to, cmd.Comment, cmd.ValidatorID, now))
		if err != nil {
			return TransitionResult{}, err
		}
		// A concurrent transition that already removed the row makes this
		// one fail and roll back its upsert.
		if err := m.deps.Requests.Delete(ctx, cmd.RequestID); err != nil {
			return TransitionResult{}, err
		}
	case errors.Is(err, domain.ErrNotFound):
		rec, err := m.deps.Ledger.GetByRequestID(ctx, cmd.RequestID)
		if err != nil {
			return TransitionResult{}, err
		}
		if rec.State.IsTerminal() {
			return TransitionResult{}, domain.ErrNotFound
		}
		from = rec.State
		if !m.allowed(from, to) {
			return TransitionResult{}, invalidTransition(from, to)
		}
		saved, err = m.deps.Ledger.TransitionIfState(ctx, from, rec.Transition(to, cmd.Comment, cmd.ValidatorID, now))
		if err != nil {
			return TransitionResult{}, err
		}
	default:
		return TransitionResult{}, err
	}

	if err := m.deps.Outbox.Enqueue(ctx, events.TopicRequestTransitioned, saved.Folio, events.NewStateChanged(from, saved)); err != nil {
		return TransitionResult{}, err
	}
	if to == request.Approved {
		ev := events.DocumentRequested{Folio: saved.Folio, OccurredAt: now}
		if err := m.deps.Outbox.Enqueue(ctx, events.TopicDocumentRequested, saved.Folio, ev); err != nil {
			return TransitionResult{}, err
		}
	}
	return TransitionResult{Record: saved, From: from}, nil
}

func invalidTransition(from, to request.State) error {
	return domain.Wrap(domain.ErrInvalidState, errors.Errorf("transition %s -> %s is not allowed", from, to))
}

