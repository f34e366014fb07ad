package request

import (
	"strings"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/pkg/serrors"
	"github.com/vecinal/certdesk/pkg/types"
)

// Patch updates descriptive fields only. Absent fields are left alone;
// present fields, including empty ones, overwrite.
type Patch struct {
	RequestorName     types.Optional[string] `json:"name"`
	NationalID        types.Optional[string] `json:"national_id"`
	Address           types.Optional[string] `json:"address"`
	Email             types.Optional[string] `json:"email"`
	Phone             types.Optional[string] `json:"phone"`
	PaymentMethod     types.Optional[string] `json:"payment_method"`
	ProofOfPaymentURL types.Optional[string] `json:"proof_of_payment_url"`
	Notes             types.Optional[string] `json:"notes"`
}

func (p Patch) IsEmpty() bool {
	return !p.RequestorName.Set && !p.NationalID.Set && !p.Address.Set && !p.Email.Set &&
		!p.Phone.Set && !p.PaymentMethod.Set && !p.ProofOfPaymentURL.Set && !p.Notes.Set
}

// Validate rejects blanking a required field or an unknown payment method.
func (p Patch) Validate() error {
	fields := map[string]string{}
	required := map[string]types.Optional[string]{
		"name":        p.RequestorName,
		"national_id": p.NationalID,
		"address":     p.Address,
	}
	for name, f := range required {
		if f.Set && strings.TrimSpace(f.Value) == "" {
			fields[name] = name + " es un campo requerido"
		}
	}
	if p.PaymentMethod.Set {
		if _, ok := ParsePaymentMethod(p.PaymentMethod.Value); !ok {
			fields["payment_method"] = paymentMethodReason
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return serrors.NewValidationError(domain.ErrValidation, fields)
}

// Apply returns r with the present fields applied. Call Validate first.
func (p Patch) Apply(r Request) Request {
	trimmed := func(o types.Optional[string]) types.Optional[string] {
		if o.Set {
			o.Value = strings.TrimSpace(o.Value)
		}
		return o
	}
	trimmed(p.RequestorName).Apply(&r.RequestorName)
	trimmed(p.NationalID).Apply(&r.NationalID)
	trimmed(p.Address).Apply(&r.Address)
	trimmed(p.Email).Apply(&r.Email)
	trimmed(p.Phone).Apply(&r.Phone)
	trimmed(p.ProofOfPaymentURL).Apply(&r.ProofOfPaymentURL)
	trimmed(p.Notes).Apply(&r.Notes)
	if p.PaymentMethod.Set {
		if m, ok := ParsePaymentMethod(p.PaymentMethod.Value); ok {
			r.PaymentMethod = m
		}
	}
	return r
}
