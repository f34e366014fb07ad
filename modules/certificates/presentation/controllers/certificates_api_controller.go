package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/presentation/controllers/dtos"
	"github.com/vecinal/certdesk/modules/certificates/services"
	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/httpapi"
	"github.com/vecinal/certdesk/pkg/storage"
)

type RequestAPI interface {
	Create(ctx context.Context, dto *request.CreateDTO) (request.Request, error)
	List(ctx context.Context, params *request.FindParams) ([]request.Request, error)
	GetByFolio(ctx context.Context, folio string) (services.FolioView, error)
	Update(ctx context.Context, id int64, patch request.Patch) (request.Request, error)
	Delete(ctx context.Context, id int64) error
	DeleteByFolio(ctx context.Context, folio string) error
}

type Transitioner interface {
	ChangeState(ctx context.Context, cmd services.ChangeStateCommand) (services.TransitionResult, error)
}

type HistoryAPI interface {
	List(ctx context.Context, params *history.FindParams) ([]history.Record, error)
	UpdateLatestByFolio(ctx context.Context, folio string, patch history.Patch) (history.Record, error)
}

type ProofUploader interface {
	Upload(ctx context.Context, requestID int64, r io.Reader) (services.FolioView, error)
}

type DocumentRegenerator interface {
	Regenerate(ctx context.Context, folio string) (storage.Info, error)
}

type HistoryExporter interface {
	HistoryXLSX(ctx context.Context, params *history.FindParams) ([]byte, error)
}

type APIServices struct {
	Requests  RequestAPI
	Machine   Transitioner
	History   HistoryAPI
	Proofs    ProofUploader
	Documents DocumentRegenerator
	Export    HistoryExporter
}

type APIOptions struct {
	RequestIDHeader string
	MaxUploadSize   int64
	MaxUploadMemory int64
}

type CertificatesAPIController struct {
	svc       APIServices
	opts      APIOptions
	apiPrefix string
}

func NewCertificatesAPIController(svc APIServices, opts APIOptions) application.Controller {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 32 << 20
	}
	if opts.MaxUploadMemory <= 0 {
		opts.MaxUploadMemory = 8 << 20
	}
	return &CertificatesAPIController{svc: svc, opts: opts, apiPrefix: "/certificates/api"}
}

func (c *CertificatesAPIController) Key() string {
	return c.apiPrefix
}

func (c *CertificatesAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/requests", c.ListRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests", c.CreateRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id:[0-9]+}", c.UpdateRequest).Methods(http.MethodPatch)
	api.HandleFunc("/requests/{id:[0-9]+}", c.DeleteRequest).Methods(http.MethodDelete)
	api.HandleFunc("/requests/{id:[0-9]+}/state", c.ChangeState).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id:[0-9]+}/proof", c.UploadProof).Methods(http.MethodPost)

	api.HandleFunc("/history", c.ListHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/export.xlsx", c.ExportHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{folio}", c.UpdateHistory).Methods(http.MethodPatch)

	api.HandleFunc("/folios/{folio}", c.GetByFolio).Methods(http.MethodGet)
	api.HandleFunc("/folios/{folio}", c.DeleteByFolio).Methods(http.MethodDelete)
	api.HandleFunc("/folios/{folio}/document", c.RegenerateDocument).Methods(http.MethodPost)
}

func (c *CertificatesAPIController) requestID(w http.ResponseWriter, r *http.Request) string {
	return httpapi.RequestID(w, r, c.opts.RequestIDHeader)
}

func (c *CertificatesAPIController) ListRequests(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	state, ok := stateFilter(w, r, requestID)
	if !ok {
		return
	}
	items, err := c.svc.Requests.List(r.Context(), &request.FindParams{State: state})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.RequestsFromEntities(items))
}

func (c *CertificatesAPIController) ListHistory(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	state, ok := stateFilter(w, r, requestID)
	if !ok {
		return
	}
	items, err := c.svc.History.List(r.Context(), &history.FindParams{State: state})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.RecordsFromEntities(items))
}

func (c *CertificatesAPIController) GetByFolio(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	view, err := c.svc.Requests.GetByFolio(r.Context(), mux.Vars(r)["folio"])
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, folioResponse(view))
}

func folioResponse(view services.FolioView) dtos.FolioResponse {
	resp := dtos.FolioResponse{Source: view.Source, State: string(view.State())}
	if view.Request != nil {
		v := dtos.RequestFromEntity(*view.Request)
		resp.Request = &v
	}
	if view.Record != nil {
		v := dtos.RecordFromEntity(*view.Record)
		resp.Record = &v
	}
	return resp
}

func (c *CertificatesAPIController) CreateRequest(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)

	dto := &request.CreateDTO{}
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, domain.ErrValidation.Code, "invalid json body")
			return
		}
	} else {
		var err error
		if dto, err = composables.UseForm(dto, r); err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, domain.ErrValidation.Code, "invalid form body")
			return
		}
	}

	created, err := c.svc.Requests.Create(r.Context(), dto)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.RequestFromEntity(created))
}

func (c *CertificatesAPIController) ChangeState(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	id, ok := pathID(w, r, requestID)
	if !ok {
		return
	}
	var body dtos.ChangeStateDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, domain.ErrValidation.Code, "invalid json body")
		return
	}
	if strings.TrimSpace(body.State) == "" {
		writeFieldError(w, requestID, "state", "state es un campo requerido")
		return
	}

	res, err := c.svc.Machine.ChangeState(r.Context(), services.ChangeStateCommand{
		RequestID:   id,
		State:       body.State,
		Comment:     strings.TrimSpace(body.Comment),
		ValidatorID: body.ValidatorID,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.TransitionResponse{
		Record:        dtos.RecordFromEntity(res.Record),
		From:          string(res.From),
		DocumentURL:   res.DocumentURL,
		DocumentError: dtos.DocumentErrorFrom(res.DocumentError),
	})
}

func (c *CertificatesAPIController) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	id, ok := pathID(w, r, requestID)
	if !ok {
		return
	}
	var patch request.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, domain.ErrValidation.Code, "invalid json body")
		return
	}
	updated, err := c.svc.Requests.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.RequestFromEntity(updated))
}

func (c *CertificatesAPIController) UpdateHistory(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	var patch history.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, domain.ErrValidation.Code, "invalid json body")
		return
	}
	rec, err := c.svc.History.UpdateLatestByFolio(r.Context(), mux.Vars(r)["folio"], patch)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.RecordFromEntity(rec))
}

func (c *CertificatesAPIController) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	id, ok := pathID(w, r, requestID)
	if !ok {
		return
	}
	if err := c.svc.Requests.Delete(r.Context(), id); err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CertificatesAPIController) DeleteByFolio(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	if err := c.svc.Requests.DeleteByFolio(r.Context(), mux.Vars(r)["folio"]); err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CertificatesAPIController) UploadProof(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	id, ok := pathID(w, r, requestID)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, c.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(c.opts.MaxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeServiceError(w, requestID, domain.ErrProofTooLarge)
			return
		}
		writeFieldError(w, requestID, "file", "se requiere un formulario multipart con el campo file")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeFieldError(w, requestID, "file", "file es un campo requerido")
		return
	}
	defer func() { _ = file.Close() }()

	view, err := c.svc.Proofs.Upload(r.Context(), id, file)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, folioResponse(view))
}

func (c *CertificatesAPIController) RegenerateDocument(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	folio := mux.Vars(r)["folio"]
	info, err := c.svc.Documents.Regenerate(r.Context(), folio)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	composables.UseLogger(r.Context()).WithFields(logrus.Fields{
		"folio": folio,
		"key":   info.Key,
	}).Info("certificate regenerated on demand")
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.DocumentResponse{Folio: folio, DocumentURL: info.URL, Size: info.Size})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (c *CertificatesAPIController) ExportHistory(w http.ResponseWriter, r *http.Request) {
	requestID := c.requestID(w, r)
	state, ok := stateFilter(w, r, requestID)
	if !ok {
		return
	}
	data, err := c.svc.Export.HistoryXLSX(r.Context(), &history.FindParams{State: state})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="historial_certificados.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// stateFilter reads the optional ?state= filter. It writes the error
// response itself and reports false when the value is unknown.
func stateFilter(w http.ResponseWriter, r *http.Request, requestID string) (*request.State, bool) {
	q, err := composables.UseQuery(&dtos.HistoryQuery{}, r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, domain.ErrValidation.Code, "invalid query")
		return nil, false
	}
	if strings.TrimSpace(q.State) == "" {
		return nil, true
	}
	state, err := request.ParseState(q.State)
	if err != nil {
		writeServiceError(w, requestID, err)
		return nil, false
	}
	return &state, true
}

func pathID(w http.ResponseWriter, r *http.Request, requestID string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeFieldError(w, requestID, "id", "id inválido")
		return 0, false
	}
	return id, true
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json"
}
