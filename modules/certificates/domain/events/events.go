// Package events defines the certificate desk's audit topics and the
// in-process events published after a change commits.
package events

import (
	"encoding/json"
	"time"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
)

const (
	TopicRequestCreated      = "certificates.request.created"
	TopicRequestTransitioned = "certificates.request.transitioned"
	TopicRequestCorrected    = "certificates.request.corrected"
	TopicRequestPurged       = "certificates.request.purged"
	TopicDocumentRequested   = "certificates.document.requested"
)

// IsAudit reports whether topic belongs to the request audit trail.
func IsAudit(topic string) bool {
	switch topic {
	case TopicRequestCreated, TopicRequestTransitioned, TopicRequestCorrected, TopicRequestPurged:
		return true
	}
	return false
}

type RequestCreated struct {
	RequestID  int64         `json:"request_id"`
	Folio      string        `json:"folio"`
	State      request.State `json:"state"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type StateChanged struct {
	RequestID   int64         `json:"request_id"`
	Folio       string        `json:"folio"`
	From        request.State `json:"from"`
	To          request.State `json:"to"`
	Comment     string        `json:"comment,omitempty"`
	ValidatorID *int64        `json:"validator_id,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// RecordCorrected carries an RFC 6902 patch from the old snapshot to the new.
type RecordCorrected struct {
	RequestID  int64           `json:"request_id"`
	Folio      string          `json:"folio"`
	Source     string          `json:"source"`
	Patch      json.RawMessage `json:"patch"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type RequestPurged struct {
	RequestID  int64     `json:"request_id"`
	Folio      string    `json:"folio"`
	OccurredAt time.Time `json:"occurred_at"`
}

type DocumentRequested struct {
	Folio      string    `json:"folio"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewStateChanged builds the transition event for rec.
func NewStateChanged(from request.State, rec history.Record) StateChanged {
	return StateChanged{
		RequestID:   rec.RequestID,
		Folio:       rec.Folio,
		From:        from,
		To:          rec.State,
		Comment:     rec.Comment,
		ValidatorID: rec.ValidatorID,
		OccurredAt:  rec.ChangedAt,
	}
}
