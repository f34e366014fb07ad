// Package history is the durable ledger of request dispositions: at most
// one record per request, overwritten on every transition.
package history

import (
	"time"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
)

type Record struct {
	ID                int64
	RequestID         int64
	Folio             string
	RequestorName     string
	NationalID        string
	Address           string
	Email             string
	Phone             string
	PaymentMethod     request.PaymentMethod
	ProofOfPaymentURL string
	Notes             string
	State             request.State
	Comment           string
	ValidatorID       *int64
	RequestedAt       time.Time
	ChangedAt         time.Time
	DocumentURL       string
}

// Snapshot copies r's descriptive fields into a record carrying state.
func Snapshot(r request.Request, state request.State, comment string, validatorID *int64, changedAt time.Time) Record {
	return Record{
		RequestID:         r.ID,
		Folio:             r.Folio,
		RequestorName:     r.RequestorName,
		NationalID:        r.NationalID,
		Address:           r.Address,
		Email:             r.Email,
		Phone:             r.Phone,
		PaymentMethod:     r.PaymentMethod,
		ProofOfPaymentURL: r.ProofOfPaymentURL,
		Notes:             r.Notes,
		State:             state,
		Comment:           comment,
		ValidatorID:       validatorID,
		RequestedAt:       r.CreatedAt,
		ChangedAt:         changedAt,
	}
}

// Transition returns rec moved to state. The document URL is cleared
// because any earlier artifact no longer describes the record.
func (rec Record) Transition(state request.State, comment string, validatorID *int64, changedAt time.Time) Record {
	rec.State = state
	rec.Comment = comment
	rec.ValidatorID = validatorID
	rec.ChangedAt = changedAt
	rec.DocumentURL = ""
	return rec
}

type FindParams struct {
	State *request.State
}

func (p *FindParams) StateFilter() (request.State, bool) {
	if p == nil || p.State == nil {
		return "", false
	}
	return *p.State, true
}
