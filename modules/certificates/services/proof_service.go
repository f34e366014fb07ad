package services

import (
	"bytes"
	"context"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/pkg/storage"
	"github.com/vecinal/certdesk/pkg/types"
)

// proofTypes maps accepted proof content types to their stored extension.
var proofTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

var proofExtensions = []string{".pdf", ".jpg", ".png"}

type ProofService struct {
	requests *RequestService
	ledger   *HistoryService
	store    storage.Store
	maxSize  int64
}

func NewProofService(requests *RequestService, ledger *HistoryService, store storage.Store, maxSize int64) *ProofService {
	return &ProofService{requests: requests, ledger: ledger, store: store, maxSize: maxSize}
}

// Upload stores a proof of payment and links it to the request. While the
// request is active both stores get the URL; once it has transitioned only
// its ledger record does. The content type is sniffed from the bytes,
// never taken from the client.
func (s *ProofService) Upload(ctx context.Context, requestID int64, r io.Reader) (FolioView, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return FolioView{}, errors.Wrap(err, "read proof")
	}
	if int64(len(data)) > s.maxSize {
		return FolioView{}, domain.ErrProofTooLarge
	}
	mt := mimetype.Detect(data)
	ext, ok := "", false
	for ct, e := range proofTypes {
		if mt.Is(ct) {
			ext, ok = e, true
			break
		}
	}
	if !ok {
		return FolioView{}, domain.Wrap(domain.ErrProofUnsupportedType, errors.Errorf("detected %s", mt.String()))
	}

	folio, active, err := s.resolve(ctx, requestID)
	if err != nil {
		return FolioView{}, err
	}
	info, err := s.store.Put(ctx, ProofKey(folio, ext), bytes.NewReader(data), mt.String())
	if err != nil {
		return FolioView{}, domain.Wrap(domain.ErrDocumentWrite, err)
	}

	if active {
		updated, err := s.requests.Update(ctx, requestID, request.Patch{ProofOfPaymentURL: types.Some(info.URL)})
		if err == nil {
			return FolioView{Source: SourceActive, Request: &updated}, nil
		}
		// A transition may have moved the request meanwhile.
		if !errors.Is(err, domain.ErrNotFound) {
			return FolioView{}, err
		}
	}
	rec, err := s.ledger.UpdateLatestByFolio(ctx, folio, history.Patch{ProofOfPaymentURL: types.Some(info.URL)})
	if err != nil {
		return FolioView{}, err
	}
	return FolioView{Source: SourceHistory, Record: &rec}, nil
}

// resolve finds the folio of requestID and whether it is still active.
func (s *ProofService) resolve(ctx context.Context, requestID int64) (string, bool, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err == nil {
		return req.Folio, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", false, err
	}
	rec, err := s.requests.deps.Ledger.GetByRequestID(ctx, requestID)
	if err != nil {
		return "", false, err
	}
	return rec.Folio, false, nil
}
