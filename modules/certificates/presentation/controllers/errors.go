package controllers

import (
	"errors"
	"net/http"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/pkg/httpapi"
	"github.com/vecinal/certdesk/pkg/serrors"
)

var statusByCode = map[string]int{
	domain.ErrValidation.Code:           http.StatusBadRequest,
	domain.ErrInvalidState.Code:         http.StatusBadRequest,
	domain.ErrNotFound.Code:             http.StatusNotFound,
	domain.ErrConflict.Code:             http.StatusConflict,
	domain.ErrProofUnsupportedType.Code: http.StatusUnsupportedMediaType,
	domain.ErrProofTooLarge.Code:        http.StatusRequestEntityTooLarge,
	domain.ErrTransaction.Code:          http.StatusInternalServerError,
	domain.ErrTemplateLoad.Code:         http.StatusInternalServerError,
	domain.ErrDocumentWrite.Code:        http.StatusInternalServerError,
}

const internalCode = "CERT_INTERNAL"

func requestMeta(requestID string) map[string]string {
	if requestID == "" {
		return nil
	}
	return map[string]string{"request_id": requestID}
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var verr *serrors.ValidationError
	if errors.As(err, &verr) {
		_ = httpapi.WriteValidationError(w, verr.Base.Code, verr.Base.Message, verr.Fields, requestMeta(requestID))
		return
	}
	code := serrors.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		_ = httpapi.WriteError(w, http.StatusInternalServerError, internalCode, err.Error(), requestMeta(requestID))
		return
	}
	_ = httpapi.WriteError(w, status, code, err.Error(), requestMeta(requestID))
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	_ = httpapi.WriteError(w, status, code, message, requestMeta(requestID))
}

func writeFieldError(w http.ResponseWriter, requestID, field, reason string) {
	_ = httpapi.WriteValidationError(
		w,
		domain.ErrValidation.Code,
		domain.ErrValidation.Message,
		map[string]string{field: reason},
		requestMeta(requestID),
	)
}
