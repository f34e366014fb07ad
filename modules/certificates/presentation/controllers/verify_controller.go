package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vecinal/certdesk/modules/certificates/services"
	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/httpapi"
)

type Verifier interface {
	Verify(ctx context.Context, folio string) (services.Verification, error)
}

// VerifyController answers the URL encoded in a certificate's QR code.
type VerifyController struct {
	verifier        Verifier
	requestIDHeader string
}

func NewVerifyController(verifier Verifier, requestIDHeader string) application.Controller {
	return &VerifyController{verifier: verifier, requestIDHeader: requestIDHeader}
}

func (c *VerifyController) Key() string {
	return "/certificates/verify"
}

func (c *VerifyController) Register(r *mux.Router) {
	r.HandleFunc("/certificates/{folio:C-[0-9]+}", c.Verify).Methods(http.MethodGet)
}

func (c *VerifyController) Verify(w http.ResponseWriter, r *http.Request) {
	requestID := httpapi.RequestID(w, r, c.requestIDHeader)
	v, err := c.verifier.Verify(r.Context(), mux.Vars(r)["folio"])
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	_ = httpapi.WriteJSON(w, http.StatusOK, v)
}
