package request

import (
	"strings"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/pkg/constants"
	"github.com/vecinal/certdesk/pkg/serrors"
)

type CreateDTO struct {
	Name              string `json:"name" form:"name" validate:"required"`
	NationalID        string `json:"national_id" form:"national_id" validate:"required"`
	Address           string `json:"address" form:"address" validate:"required"`
	Email             string `json:"email" form:"email"`
	Phone             string `json:"phone" form:"phone"`
	PaymentMethod     string `json:"payment_method" form:"payment_method" validate:"required"`
	ProofOfPaymentURL string `json:"proof_of_payment_url" form:"proof_of_payment_url"`
	Notes             string `json:"notes" form:"notes"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.NationalID = strings.TrimSpace(d.NationalID)
	d.Address = strings.TrimSpace(d.Address)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.PaymentMethod = strings.TrimSpace(d.PaymentMethod)
	d.ProofOfPaymentURL = strings.TrimSpace(d.ProofOfPaymentURL)
	d.Notes = strings.TrimSpace(d.Notes)
}

// Validate returns a *serrors.ValidationError keyed by json field name.
func (d *CreateDTO) Validate(tr *serrors.Translator) error {
	d.Normalize()
	fields := tr.ProcessValidatorErrors(constants.Validate.Struct(d))
	if _, ok := fields["payment_method"]; !ok {
		if _, ok := ParsePaymentMethod(d.PaymentMethod); !ok {
			fields["payment_method"] = paymentMethodReason
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return serrors.NewValidationError(domain.ErrValidation, fields)
}

const paymentMethodReason = "payment_method debe ser bank_transfer o in_person"

func (d *CreateDTO) ToEntity() Request {
	method, _ := ParsePaymentMethod(d.PaymentMethod)
	return Request{
		RequestorName:     d.Name,
		NationalID:        d.NationalID,
		Address:           d.Address,
		Email:             d.Email,
		Phone:             d.Phone,
		PaymentMethod:     method,
		ProofOfPaymentURL: d.ProofOfPaymentURL,
		State:             Pending,
		Notes:             d.Notes,
	}
}
