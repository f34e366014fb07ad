package models

import "time"

type CertificateRequest struct {
	ID                int64
	Folio             string
	RequestorName     string
	NationalID        string
	Address           string
	Email             string
	Phone             string
	PaymentMethod     string
	ProofOfPaymentURL string
	State             string
	Notes             string
	CreatedAt         time.Time
}

type HistoryRecord struct {
	ID                int64
	RequestID         int64
	Folio             string
	RequestorName     string
	NationalID        string
	Address           string
	Email             string
	Phone             string
	PaymentMethod     string
	ProofOfPaymentURL string
	Notes             string
	State             string
	Comment           string
	ValidatorID       *int64
	RequestedAt       time.Time
	ChangedAt         time.Time
	DocumentURL       string
}
