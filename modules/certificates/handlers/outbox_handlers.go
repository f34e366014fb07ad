package handlers

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates/domain/events"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/outbox"
)

type DocumentEnsurer interface {
	EnsureGenerated(ctx context.Context, folio string) (bool, error)
}

// DocumentRequestedHandler retries certificate generation for messages
// relayed from the outbox. A returned error makes the relay retry.
type DocumentRequestedHandler struct {
	pool      *pgxpool.Pool
	documents DocumentEnsurer
	logger    *logrus.Entry
}

func NewDocumentRequestedHandler(pool *pgxpool.Pool, documents DocumentEnsurer, logger *logrus.Entry) *DocumentRequestedHandler {
	return &DocumentRequestedHandler{pool: pool, documents: documents, logger: logger}
}

func (h *DocumentRequestedHandler) Handle(ctx context.Context, meta *outbox.Meta, payload json.RawMessage) error {
	if meta == nil || meta.Topic != events.TopicDocumentRequested {
		return nil
	}
	var ev events.DocumentRequested
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(err, "decode document request")
	}
	if ev.Folio == "" {
		ev.Folio = meta.AggregateKey
	}
	if h.pool != nil {
		ctx = composables.WithPool(ctx, h.pool)
	}
	generated, err := h.documents.EnsureGenerated(ctx, ev.Folio)
	if err != nil {
		return err
	}
	h.logger.WithFields(logrus.Fields{
		"folio":     ev.Folio,
		"attempts":  meta.Attempts,
		"generated": generated,
	}).Info("document request handled")
	return nil
}

// AuditHandler writes the request audit trail to the log.
type AuditHandler struct {
	logger *logrus.Entry
}

func NewAuditHandler(logger *logrus.Entry) *AuditHandler {
	return &AuditHandler{logger: logger}
}

func (h *AuditHandler) Handle(_ context.Context, meta *outbox.Meta, payload json.RawMessage) error {
	if meta == nil || !events.IsAudit(meta.Topic) {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return errors.Wrap(err, "decode audit event")
	}
	h.logger.WithFields(logrus.Fields{
		"topic":    meta.Topic,
		"event_id": meta.EventID.String(),
		"folio":    meta.AggregateKey,
		"sequence": meta.Sequence,
		"payload":  body,
	}).Info("certificate audit event")
	return nil
}
