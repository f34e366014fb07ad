package services

import (
	"bytes"
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/storage"
)

const pdfContentType = "application/pdf"

// DocumentKey is where the certificate for folio is stored. Every
// generation for the folio overwrites it.
func DocumentKey(folio string) string {
	return "certificates/" + folio + "/Certificado_Residencia_" + folio + ".pdf"
}

// ProofKey is where the proof of payment for folio is stored; ext keeps
// its leading dot.
func ProofKey(folio, ext string) string {
	return "proofs/" + folio + "/comprobante_" + folio + ext
}

type DocumentService struct {
	ledger   history.Repository
	renderer Renderer
	store    storage.Store
}

func NewDocumentService(ledger history.Repository, renderer Renderer, store storage.Store) *DocumentService {
	return &DocumentService{ledger: ledger, renderer: renderer, store: store}
}

// Generate renders rec and writes it with a single Put, then records the
// URL on the ledger. Render errors keep their code; everything else is a
// document write failure.
func (s *DocumentService) Generate(ctx context.Context, rec history.Record) (storage.Info, error) {
	start := time.Now()
	data, err := s.renderer.Render(ctx, rec)
	observeRender(start)
	if err != nil {
		recordDocument("render_error")
		if domain.IsCoded(err, domain.ErrTemplateLoad) {
			return storage.Info{}, err
		}
		return storage.Info{}, domain.Wrap(domain.ErrDocumentWrite, err)
	}

	info, err := s.store.Put(ctx, DocumentKey(rec.Folio), bytes.NewReader(data), pdfContentType)
	if err != nil {
		recordDocument("write_error")
		return storage.Info{}, domain.Wrap(domain.ErrDocumentWrite, err)
	}
	if err := s.ledger.SetDocumentURL(ctx, rec.Folio, info.URL); err != nil {
		recordDocument("write_error")
		return storage.Info{}, domain.Wrap(domain.ErrDocumentWrite, errors.Wrap(err, "record document url"))
	}

	recordDocument("ok")
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"folio": rec.Folio,
		"key":   info.Key,
		"size":  info.Size,
	}).Info("certificate generated")
	return info, nil
}

// Regenerate renders the certificate for an approved folio again.
func (s *DocumentService) Regenerate(ctx context.Context, folio string) (storage.Info, error) {
	rec, err := s.ledger.GetByFolio(ctx, folio)
	if err != nil {
		return storage.Info{}, err
	}
	if rec.State != request.Approved {
		return storage.Info{}, domain.Wrap(domain.ErrInvalidState, errors.Errorf("folio %s is %s, not approved", folio, rec.State))
	}
	return s.Generate(ctx, rec)
}

// EnsureGenerated is the idempotent retry path. It skips folios that are
// no longer approved and ones whose artifact is already stored and linked.
func (s *DocumentService) EnsureGenerated(ctx context.Context, folio string) (bool, error) {
	rec, err := s.ledger.GetByFolio(ctx, folio)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.State != request.Approved {
		return false, nil
	}
	if rec.DocumentURL != "" {
		exists, err := s.store.Exists(ctx, DocumentKey(folio))
		if err != nil {
			return false, domain.Wrap(domain.ErrDocumentWrite, err)
		}
		if exists {
			return false, nil
		}
	}
	if _, err := s.Generate(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes every stored artifact of folio: the certificate and any
// proof of payment. It tries all keys and reports the first failure.
func (s *DocumentService) Remove(ctx context.Context, folio string) error {
	keys := []string{DocumentKey(folio)}
	for _, ext := range proofExtensions {
		keys = append(keys, ProofKey(folio, ext))
	}
	var first error
	for _, key := range keys {
		err := s.store.Delete(ctx, key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) && first == nil {
			first = errors.Wrapf(err, "delete %s", key)
		}
	}
	return first
}
