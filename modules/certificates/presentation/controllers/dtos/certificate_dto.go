package dtos

import (
	"time"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/pkg/serrors"
)

type RequestResponse struct {
	ID                int64     `json:"id"`
	Folio             string    `json:"folio"`
	Name              string    `json:"name"`
	NationalID        string    `json:"national_id"`
	Address           string    `json:"address"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	PaymentMethod     string    `json:"payment_method"`
	ProofOfPaymentURL string    `json:"proof_of_payment_url"`
	State             string    `json:"state"`
	Notes             string    `json:"notes"`
	CreatedAt         time.Time `json:"created_at"`
}

func RequestFromEntity(r request.Request) RequestResponse {
	return RequestResponse{
		ID:                r.ID,
		Folio:             r.Folio,
		Name:              r.RequestorName,
		NationalID:        r.NationalID,
		Address:           r.Address,
		Email:             r.Email,
		Phone:             r.Phone,
		PaymentMethod:     string(r.PaymentMethod),
		ProofOfPaymentURL: r.ProofOfPaymentURL,
		State:             string(r.State),
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
	}
}

func RequestsFromEntities(in []request.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(in))
	for _, r := range in {
		out = append(out, RequestFromEntity(r))
	}
	return out
}

type RecordResponse struct {
	ID                int64     `json:"id"`
	RequestID         int64     `json:"request_id"`
	Folio             string    `json:"folio"`
	Name              string    `json:"name"`
	NationalID        string    `json:"national_id"`
	Address           string    `json:"address"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	PaymentMethod     string    `json:"payment_method"`
	ProofOfPaymentURL string    `json:"proof_of_payment_url"`
	Notes             string    `json:"notes"`
	State             string    `json:"state"`
	Comment           string    `json:"comment"`
	ValidatorID       *int64    `json:"validator_id"`
	RequestedAt       time.Time `json:"requested_at"`
	ChangedAt         time.Time `json:"changed_at"`
	DocumentURL       string    `json:"document_url,omitempty"`
}

func RecordFromEntity(rec history.Record) RecordResponse {
	return RecordResponse{
		ID:                rec.ID,
		RequestID:         rec.RequestID,
		Folio:             rec.Folio,
		Name:              rec.RequestorName,
		NationalID:        rec.NationalID,
		Address:           rec.Address,
		Email:             rec.Email,
		Phone:             rec.Phone,
		PaymentMethod:     string(rec.PaymentMethod),
		ProofOfPaymentURL: rec.ProofOfPaymentURL,
		Notes:             rec.Notes,
		State:             string(rec.State),
		Comment:           rec.Comment,
		ValidatorID:       rec.ValidatorID,
		RequestedAt:       rec.RequestedAt,
		ChangedAt:         rec.ChangedAt,
		DocumentURL:       rec.DocumentURL,
	}
}

func RecordsFromEntities(in []history.Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(in))
	for _, rec := range in {
		out = append(out, RecordFromEntity(rec))
	}
	return out
}

// FolioResponse carries exactly one of Request or Record, named by Source.
type FolioResponse struct {
	Source  string           `json:"source"`
	State   string           `json:"state"`
	Request *RequestResponse `json:"request,omitempty"`
	Record  *RecordResponse  `json:"record,omitempty"`
}

type ChangeStateDTO struct {
	State       string `json:"state"`
	Comment     string `json:"comment"`
	ValidatorID *int64 `json:"validator_id"`
}

type DocumentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func DocumentErrorFrom(err error) *DocumentError {
	if err == nil {
		return nil
	}
	code := serrors.Code(err)
	if code == "" {
		code = "CERT_DOCUMENT_WRITE_FAILED"
	}
	return &DocumentError{Code: code, Message: err.Error()}
}

type TransitionResponse struct {
	Record        RecordResponse `json:"record"`
	From          string         `json:"from"`
	DocumentURL   string         `json:"document_url,omitempty"`
	DocumentError *DocumentError `json:"document_error,omitempty"`
}

type DocumentResponse struct {
	Folio       string `json:"folio"`
	DocumentURL string `json:"document_url"`
	Size        int64  `json:"size"`
}

type HistoryQuery struct {
	State string `form:"state"`
}
