package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates/domain/events"
)

type Invalidator interface {
	Invalidate(ctx context.Context, folio string) error
}

// VerificationCacheHandler drops cached verification answers whenever a
// folio changes.
type VerificationCacheHandler struct {
	cache  Invalidator
	logger *logrus.Entry
}

func NewVerificationCacheHandler(cache Invalidator, logger *logrus.Entry) *VerificationCacheHandler {
	return &VerificationCacheHandler{cache: cache, logger: logger}
}

func (h *VerificationCacheHandler) OnCreated(ctx context.Context, ev *events.RequestCreated) {
	h.invalidate(ctx, ev.Folio)
}

func (h *VerificationCacheHandler) OnStateChanged(ctx context.Context, ev *events.StateChanged) {
	h.invalidate(ctx, ev.Folio)
}

func (h *VerificationCacheHandler) OnCorrected(ctx context.Context, ev *events.RecordCorrected) {
	h.invalidate(ctx, ev.Folio)
}

func (h *VerificationCacheHandler) OnPurged(ctx context.Context, ev *events.RequestPurged) {
	h.invalidate(ctx, ev.Folio)
}

func (h *VerificationCacheHandler) invalidate(ctx context.Context, folio string) {
	if err := h.cache.Invalidate(ctx, folio); err != nil {
		h.logger.WithError(err).WithField("folio", folio).Warn("failed to invalidate verification cache")
	}
}
