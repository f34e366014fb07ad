package persistence

import (
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/persistence/models"
)

func toDBRequest(r request.Request) models.CertificateRequest {
	return models.CertificateRequest{
		ID:                r.ID,
		Folio:             r.Folio,
		RequestorName:     r.RequestorName,
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

func toDomainRequest(row *models.CertificateRequest) request.Request {
	return request.Request{
		ID:                row.ID,
		Folio:             row.Folio,
		RequestorName:     row.RequestorName,
		NationalID:        row.NationalID,
		Address:           row.Address,
		Email:             row.Email,
		Phone:             row.Phone,
		PaymentMethod:     request.PaymentMethod(row.PaymentMethod),
		ProofOfPaymentURL: row.ProofOfPaymentURL,
		State:             request.State(row.State),
		Notes:             row.Notes,
		CreatedAt:         row.CreatedAt,
	}
}

func toDBHistory(rec history.Record) models.HistoryRecord {
	return models.HistoryRecord{
		ID:                rec.ID,
		RequestID:         rec.RequestID,
		Folio:             rec.Folio,
		RequestorName:     rec.RequestorName,
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

func toDomainHistory(row *models.HistoryRecord) history.Record {
	return history.Record{
		ID:                row.ID,
		RequestID:         row.RequestID,
		Folio:             row.Folio,
		RequestorName:     row.RequestorName,
		NationalID:        row.NationalID,
		Address:           row.Address,
		Email:             row.Email,
		Phone:             row.Phone,
		PaymentMethod:     request.PaymentMethod(row.PaymentMethod),
		ProofOfPaymentURL: row.ProofOfPaymentURL,
		Notes:             row.Notes,
		State:             request.State(row.State),
		Comment:           row.Comment,
		ValidatorID:       row.ValidatorID,
		RequestedAt:       row.RequestedAt,
		ChangedAt:         row.ChangedAt,
		DocumentURL:       row.DocumentURL,
	}
}
