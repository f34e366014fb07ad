package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/services"
	"github.com/vecinal/certdesk/pkg/httpapi"
	"github.com/vecinal/certdesk/pkg/serrors"
	"github.com/vecinal/certdesk/pkg/storage"
)

type stubRequests struct {
	created    *request.CreateDTO
	listParams *request.FindParams
	view       services.FolioView
	err        error
	patch      request.Patch
	deleted    []string
}

func (s *stubRequests) Create(_ context.Context, dto *request.CreateDTO) (request.Request, error) {
	s.created = dto
	if s.err != nil {
		return request.Request{}, s.err
	}
	r := dto.ToEntity()
	r.ID, r.Folio = 1, "C-00100"
	return r, nil
}

func (s *stubRequests) List(_ context.Context, params *request.FindParams) ([]request.Request, error) {
	s.listParams = params
	return []request.Request{{ID: 1, Folio: "C-00100", State: request.Pending}}, s.err
}

func (s *stubRequests) GetByFolio(context.Context, string) (services.FolioView, error) {
	return s.view, s.err
}

func (s *stubRequests) Update(_ context.Context, id int64, patch request.Patch) (request.Request, error) {
	s.patch = patch
	return request.Request{ID: id, Folio: "C-00100", Phone: patch.Phone.Value}, s.err
}

func (s *stubRequests) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, "id")
	return s.err
}

func (s *stubRequests) DeleteByFolio(_ context.Context, folio string) error {
	s.deleted = append(s.deleted, folio)
	return s.err
}

type stubMachine struct {
	cmd services.ChangeStateCommand
	res services.TransitionResult
	err error
}

func (s *stubMachine) ChangeState(_ context.Context, cmd services.ChangeStateCommand) (services.TransitionResult, error) {
	s.cmd = cmd
	return s.res, s.err
}

type stubHistory struct {
	params *history.FindParams
	patch  history.Patch
}

func (s *stubHistory) List(_ context.Context, params *history.FindParams) ([]history.Record, error) {
	s.params = params
	return []history.Record{{Folio: "C-00100", State: request.Approved}}, nil
}

func (s *stubHistory) UpdateLatestByFolio(_ context.Context, folio string, patch history.Patch) (history.Record, error) {
	s.patch = patch
	return history.Record{Folio: folio, State: request.Approved, Comment: patch.Comment.Value}, nil
}

type stubProofs struct {
	data        []byte
	err         error
	transitioned bool
}

func (s *stubProofs) Upload(_ context.Context, id int64, r io.Reader) (services.FolioView, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return services.FolioView{}, err
	}
	s.data = data
	url := "http://x/proofs/C-00100/comprobante_C-00100.pdf"
	if s.transitioned {
		return services.FolioView{
			Source: services.SourceHistory,
			Record: &history.Record{RequestID: id, Folio: "C-00100", State: request.Approved, ProofOfPaymentURL: url},
		}, s.err
	}
	return services.FolioView{
		Source:  services.SourceActive,
		Request: &request.Request{ID: id, Folio: "C-00100", State: request.Pending, ProofOfPaymentURL: url},
	}, s.err
}

type stubDocuments struct{ err error }

func (s *stubDocuments) Regenerate(_ context.Context, folio string) (storage.Info, error) {
	return storage.Info{Key: "certificates/" + folio, URL: "http://x/" + folio + ".pdf", Size: 10}, s.err
}

type stubExport struct{}

func (stubExport) HistoryXLSX(context.Context, *history.FindParams) ([]byte, error) {
	return []byte("PK\x03\x04"), nil
}

type apiFixture struct {
	router   *mux.Router
	requests *stubRequests
	machine  *stubMachine
	history  *stubHistory
	proofs   *stubProofs
	docs     *stubDocuments
}

func newAPIFixture(maxUpload int64) *apiFixture {
	f := &apiFixture{
		router:   mux.NewRouter(),
		requests: &stubRequests{},
		machine:  &stubMachine{},
		history:  &stubHistory{},
		proofs:   &stubProofs{},
		docs:     &stubDocuments{},
	}
	NewCertificatesAPIController(APIServices{
		Requests:  f.requests,
		Machine:   f.machine,
		History:   f.history,
		Proofs:    f.proofs,
		Documents: f.docs,
		Export:    stubExport{},
	}, APIOptions{RequestIDHeader: "X-Request-ID", MaxUploadSize: maxUpload}).Register(f.router)
	return f
}

func (f *apiFixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpapi.ErrorEnvelope {
	t.Helper()
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreateRequest_JSON(t *testing.T) {
	f := newAPIFixture(0)
	body := `{"name":"Ana","national_id":"12.345.678-5","address":"Los Aromos 123","payment_method":"bank_transfer"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/requests", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "12.345.678-5", f.requests.created.NationalID)
	assert.Contains(t, rec.Body.String(), `"folio":"C-00100"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateRequest_Form(t *testing.T) {
	f := newAPIFixture(0)
	form := url.Values{
		"name":           {"Ana"},
		"national_id":    {"123456785"},
		"address":        {"Los Aromos 123"},
		"payment_method": {"in_person"},
	}
	req := httptest.NewRequest(http.MethodPost, "/certificates/api/requests", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "in_person", f.requests.created.PaymentMethod)
}

func TestCreateRequest_ValidationEnvelope(t *testing.T) {
	f := newAPIFixture(0)
	f.requests.err = serrors.NewValidationError(domain.ErrValidation, map[string]string{"name": "name es un campo requerido"})
	req := httptest.NewRequest(http.MethodPost, "/certificates/api/requests", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "req-1")
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "CERT_VALIDATION_FAILED", env.Code)
	assert.Equal(t, "req-1", env.Meta["request_id"])
	assert.Contains(t, env.Fields, "name")
}

func TestListRequests_StateFilter(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/certificates/api/requests?state=Pendiente", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.requests.listParams.State)
	assert.Equal(t, request.Pending, *f.requests.listParams.State)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/certificates/api/requests?state=archived", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CERT_INVALID_STATE", decodeEnvelope(t, rec).Code)
}

func TestListHistory_NoFilter(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/certificates/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.history.params)
	assert.Nil(t, f.history.params.State)
	assert.Contains(t, rec.Body.String(), `"state":"approved"`)
}

func TestGetByFolio_Sources(t *testing.T) {
	f := newAPIFixture(0)
	f.requests.view = services.FolioView{
		Source: services.SourceHistory,
		Record: &history.Record{Folio: "C-00100", State: request.Rejected},
	}
	rec := f.do(httptest.NewRequest(http.MethodGet, "/certificates/api/folios/C-00100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "history", body["source"])
	assert.Equal(t, "rejected", body["state"])
	assert.NotContains(t, body, "request")

	f.requests.err = domain.ErrNotFound
	rec = f.do(httptest.NewRequest(http.MethodGet, "/certificates/api/folios/C-00999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CERT_NOT_FOUND", decodeEnvelope(t, rec).Code)
}

func TestChangeState_Approved(t *testing.T) {
	f := newAPIFixture(0)
	f.machine.res = services.TransitionResult{
		Record:      history.Record{RequestID: 4, Folio: "C-00100", State: request.Approved, ChangedAt: time.Now()},
		From:        request.Pending,
		DocumentURL: "http://localhost:3200/uploads/certificates/C-00100/Certificado_Residencia_C-00100.pdf",
	}
	body := `{"state":"Approved","comment":" ok ","validator_id":7}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/requests/4/state", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), f.machine.cmd.RequestID)
	assert.Equal(t, "ok", f.machine.cmd.Comment)
	require.NotNil(t, f.machine.cmd.ValidatorID)
	assert.Equal(t, int64(7), *f.machine.cmd.ValidatorID)
	assert.Contains(t, rec.Body.String(), "/Certificado_Residencia_C-00100.pdf")
	assert.NotContains(t, rec.Body.String(), "document_error")
}

func TestChangeState_DocumentFailureStill200(t *testing.T) {
	f := newAPIFixture(0)
	f.machine.res = services.TransitionResult{
		Record:        history.Record{Folio: "C-00100", State: request.Approved},
		From:          request.Pending,
		DocumentError: domain.Wrap(domain.ErrTemplateLoad, io.ErrUnexpectedEOF),
	}
	rec := f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/requests/4/state", strings.NewReader(`{"state":"approved"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		DocumentError struct {
			Code string `json:"code"`
		} `json:"document_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CERT_TEMPLATE_LOAD_FAILED", body.DocumentError.Code)
}

func TestChangeState_Errors(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/requests/4/state", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Fields, "state")

	f.machine.err = domain.ErrNotFound
	rec = f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/requests/4/state", strings.NewReader(`{"state":"rejected"}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)

	f.machine.err = domain.Wrap(domain.ErrTransaction, io.EOF)
	rec = f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/requests/4/state", strings.NewReader(`{"state":"rejected"}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CERT_TRANSACTION_FAILED", decodeEnvelope(t, rec).Code)
}

func TestUpdateRequest_PresentAbsent(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodPatch, "/certificates/api/requests/3", strings.NewReader(`{"phone":""}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.requests.patch.Phone.Set)
	assert.False(t, f.requests.patch.Email.Set)
}

func TestUpdateHistory(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodPatch, "/certificates/api/history/C-00100", strings.NewReader(`{"comment":"corregido"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"comment":"corregido"`)
	assert.True(t, f.history.patch.Comment.Set)
}

func TestDeleteEndpoints(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodDelete, "/certificates/api/requests/3", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(httptest.NewRequest(http.MethodDelete, "/certificates/api/folios/C-00100", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"id", "C-00100"}, f.requests.deleted)

	f.requests.err = domain.ErrNotFound
	rec = f.do(httptest.NewRequest(http.MethodDelete, "/certificates/api/folios/C-00100", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile(field, "comprobante.pdf")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUploadProof(t *testing.T) {
	f := newAPIFixture(0)
	body, ct := multipartBody(t, "file", []byte("%PDF-1.4\n"))
	req := httptest.NewRequest(http.MethodPost, "/certificates/api/requests/3/proof", body)
	req.Header.Set("Content-Type", ct)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("%PDF-1.4\n"), f.proofs.data)
	assert.Contains(t, rec.Body.String(), "comprobante_C-00100.pdf")
	assert.Contains(t, rec.Body.String(), `"source":"active"`)

	f.proofs.transitioned = true
	body, ct = multipartBody(t, "file", []byte("%PDF-1.4\n"))
	req = httptest.NewRequest(http.MethodPost, "/certificates/api/requests/3/proof", body)
	req.Header.Set("Content-Type", ct)
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"history"`)
	assert.Contains(t, rec.Body.String(), `"state":"approved"`)
}

func TestUploadProof_Errors(t *testing.T) {
	f := newAPIFixture(0)
	body, ct := multipartBody(t, "other", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/certificates/api/requests/3/proof", body)
	req.Header.Set("Content-Type", ct)
	rec := f.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Fields, "file")

	f.proofs.err = domain.ErrProofUnsupportedType
	body, ct = multipartBody(t, "file", []byte("GIF89a"))
	req = httptest.NewRequest(http.MethodPost, "/certificates/api/requests/3/proof", body)
	req.Header.Set("Content-Type", ct)
	rec = f.do(req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	small := newAPIFixture(16)
	body, ct = multipartBody(t, "file", bytes.Repeat([]byte("a"), 512))
	req = httptest.NewRequest(http.MethodPost, "/certificates/api/requests/3/proof", body)
	req.Header.Set("Content-Type", ct)
	rec = small.do(req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "CERT_PROOF_TOO_LARGE", decodeEnvelope(t, rec).Code)
}

func TestRegenerateDocument(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/folios/C-00100/document", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"document_url":"http://x/C-00100.pdf"`)

	f.docs.err = domain.ErrInvalidState
	rec = f.do(httptest.NewRequest(http.MethodPost, "/certificates/api/folios/C-00100/document", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHistory(t *testing.T) {
	f := newAPIFixture(0)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/certificates/api/history/export.xlsx?state=approved", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "PK\x03\x04", rec.Body.String())
}

func TestWriteServiceError_Conflict(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, "", domain.Wrap(domain.ErrConflict, io.EOF))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	writeServiceError(rec, "r", io.EOF)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, internalCode, decodeEnvelope(t, rec).Code)
}
