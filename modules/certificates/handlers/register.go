package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/pkg/application"
)

// Register subscribes the certificate handlers on the application bus.
func Register(app application.Application, documents DocumentEnsurer, cache Invalidator, logger *logrus.Logger) {
	entry := logrus.NewEntry(logger).WithField("module", "certificates")
	bus := app.EventPublisher()

	bus.Subscribe(NewDocumentRequestedHandler(app.DB(), documents, entry).Handle)
	bus.Subscribe(NewAuditHandler(entry).Handle)

	invalidator := NewVerificationCacheHandler(cache, entry)
	bus.Subscribe(invalidator.OnCreated)
	bus.Subscribe(invalidator.OnStateChanged)
	bus.Subscribe(invalidator.OnCorrected)
	bus.Subscribe(invalidator.OnPurged)
}
