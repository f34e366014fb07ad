package history

import (
	"strings"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/pkg/serrors"
	"github.com/vecinal/certdesk/pkg/types"
)

// Patch is a corrective edit of a ledger record. It has no state field:
// dispositions change only through transitions.
type Patch struct {
	RequestorName     types.Optional[string] `json:"name"`
	NationalID        types.Optional[string] `json:"national_id"`
	Address           types.Optional[string] `json:"address"`
	Email             types.Optional[string] `json:"email"`
	Phone             types.Optional[string] `json:"phone"`
	PaymentMethod     types.Optional[string] `json:"payment_method"`
	ProofOfPaymentURL types.Optional[string] `json:"proof_of_payment_url"`
	Notes             types.Optional[string] `json:"notes"`
	Comment           types.Optional[string] `json:"comment"`
	ValidatorID       types.Optional[*int64] `json:"validator_id"`
}

// FromRequestPatch carries an active-request edit over to its ledger snapshot.
func FromRequestPatch(p request.Patch) Patch {
	return Patch{
		RequestorName:     p.RequestorName,
		NationalID:        p.NationalID,
		Address:           p.Address,
		Email:             p.Email,
		Phone:             p.Phone,
		PaymentMethod:     p.PaymentMethod,
		ProofOfPaymentURL: p.ProofOfPaymentURL,
		Notes:             p.Notes,
	}
}

func (p Patch) IsEmpty() bool {
	return !p.RequestorName.Set && !p.NationalID.Set && !p.Address.Set && !p.Email.Set && !p.Phone.Set &&
		!p.PaymentMethod.Set && !p.ProofOfPaymentURL.Set && !p.Notes.Set && !p.Comment.Set && !p.ValidatorID.Set
}

func (p Patch) Validate() error {
	fields := map[string]string{}
	if p.RequestorName.Set && strings.TrimSpace(p.RequestorName.Value) == "" {
		fields["name"] = "name es un campo requerido"
	}
	if p.NationalID.Set && strings.TrimSpace(p.NationalID.Value) == "" {
		fields["national_id"] = "national_id es un campo requerido"
	}
	if p.Address.Set && strings.TrimSpace(p.Address.Value) == "" {
		fields["address"] = "address es un campo requerido"
	}
	if p.PaymentMethod.Set {
		if _, ok := request.ParsePaymentMethod(p.PaymentMethod.Value); !ok {
			fields["payment_method"] = "payment_method debe ser bank_transfer o in_person"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return serrors.NewValidationError(domain.ErrValidation, fields)
}

func (p Patch) Apply(rec Record) Record {
	set := func(o types.Optional[string], dst *string) {
		if o.Set {
			*dst = strings.TrimSpace(o.Value)
		}
	}
	set(p.RequestorName, &rec.RequestorName)
	set(p.NationalID, &rec.NationalID)
	set(p.Address, &rec.Address)
	set(p.Email, &rec.Email)
	set(p.Phone, &rec.Phone)
	set(p.ProofOfPaymentURL, &rec.ProofOfPaymentURL)
	set(p.Notes, &rec.Notes)
	set(p.Comment, &rec.Comment)
	p.ValidatorID.Apply(&rec.ValidatorID)
	if p.PaymentMethod.Set {
		if m, ok := request.ParsePaymentMethod(p.PaymentMethod.Value); ok {
			rec.PaymentMethod = m
		}
	}
	return rec
}
