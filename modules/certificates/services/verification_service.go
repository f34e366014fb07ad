package services

import (
	"context"
	"time"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/pkg/composables"
)

// Verification is the public answer for a scanned certificate QR code.
type Verification struct {
	Folio         string        `json:"folio"`
	State         request.State `json:"state"`
	RequestorName string        `json:"requestor_name"`
	IssuedAt      *time.Time    `json:"issued_at"`
	Valid         bool          `json:"valid"`
}

type VerificationService struct {
	ledger history.Repository
	cache  VerifyCache
}

// NewVerificationService builds the service; cache may be nil.
func NewVerificationService(ledger history.Repository, cache VerifyCache) *VerificationService {
	return &VerificationService{ledger: ledger, cache: cache}
}

func (s *VerificationService) Verify(ctx context.Context, folio string) (Verification, error) {
	if s.cache != nil {
		var cached Verification
		hit, err := s.cache.Get(ctx, folio, &cached)
		if err != nil {
			composables.UseLogger(ctx).WithError(err).Warn("verification cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	rec, err := s.ledger.GetByFolio(ctx, folio)
	if err != nil {
		return Verification{}, err
	}
	v := Verification{
		Folio:         rec.Folio,
		State:         rec.State,
		RequestorName: rec.RequestorName,
		Valid:         rec.State == request.Approved,
	}
	if v.Valid {
		issued := rec.ChangedAt
		v.IssuedAt = &issued
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, folio, v); err != nil {
			composables.UseLogger(ctx).WithError(err).Warn("verification cache write failed")
		}
	}
	return v, nil
}

// Invalidate drops the cached answer for folio.
func (s *VerificationService) Invalidate(ctx context.Context, folio string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, folio)
}
