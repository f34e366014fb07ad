package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/pkg/constants"
	"github.com/vecinal/certdesk/pkg/eventbus"
	"github.com/vecinal/certdesk/pkg/serrors"
	"github.com/vecinal/certdesk/pkg/storage/memory"
)

const baseURL = "http://localhost:3200/uploads"

type harness struct {
	db        *memDB
	store     *memory.Store
	renderer  *stubRenderer
	registry  *stubRegistry
	bus       eventbus.EventBusWithError
	requests  *RequestService
	machine   *StateMachine
	history   *HistoryService
	documents *DocumentService
}

func newHarness(t *testing.T, strict bool) *harness {
	t.Helper()
	tr, err := serrors.NewTranslator(constants.Validate)
	require.NoError(t, err)

	h := &harness{
		db:       newMemDB(),
		store:    memory.New(baseURL),
		renderer: &stubRenderer{},
		registry: &stubRegistry{phones: map[string]string{}},
		bus:      eventbus.NewEventPublisher(nil),
	}
	deps := h.db.deps()
	deps.Bus = h.bus
	h.documents = NewDocumentService(deps.Ledger, h.renderer, h.store)
	h.requests = NewRequestService(deps, tr, h.registry, h.documents)
	h.machine = NewStateMachine(deps, h.documents, strict)
	h.history = NewHistoryService(deps)
	return h
}

func (h *harness) create(t *testing.T, nationalID string) request.Request {
	t.Helper()
	created, err := h.requests.Create(context.Background(), &request.CreateDTO{
		Name:          "Ana Pérez",
		NationalID:    nationalID,
		Address:       "Los Aromos 123",
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	return created
}

func (h *harness) change(t *testing.T, id int64, state string) TransitionResult {
	t.Helper()
	res, err := h.machine.ChangeState(context.Background(), ChangeStateCommand{RequestID: id, State: state})
	require.NoError(t, err)
	return res
}
