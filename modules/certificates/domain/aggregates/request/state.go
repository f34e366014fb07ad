package request

import (
	"fmt"
	"strings"

	"github.com/vecinal/certdesk/modules/certificates/domain"
)

type State string

const (
	Pending     State = "pending"
	UnderReview State = "under_review"
	Approved    State = "approved"
	Rejected    State = "rejected"
)

var keyReplacer = strings.NewReplacer(" ", "_", "-", "_", "ó", "o")

func aliasKey(raw string) string {
	return keyReplacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

var stateAliases = map[string]State{
	"pending":      Pending,
	"pendiente":    Pending,
	"under_review": UnderReview,
	"underreview":  UnderReview,
	"en_revision":  UnderReview,
	"approved":     Approved,
	"aprobado":     Approved,
	"aprobada":     Approved,
	"rejected":     Rejected,
	"rechazado":    Rejected,
	"rechazada":    Rejected,
}

// ParseState accepts canonical names as well as the display forms the back
// office sends ("Approved", "UnderReview", "En revisión").
func ParseState(raw string) (State, error) {
	if s, ok := stateAliases[aliasKey(raw)]; ok {
		return s, nil
	}
	return "", domain.Wrap(domain.ErrInvalidState, fmt.Errorf("unknown state %q", raw))
}

func (s State) Valid() bool {
	switch s {
	case Pending, UnderReview, Approved, Rejected:
		return true
	}
	return false
}

// IsTerminal reports a final disposition.
func (s State) IsTerminal() bool {
	return s == Approved || s == Rejected
}

func (s State) String() string {
	return string(s)
}

type PaymentMethod string

const (
	BankTransfer PaymentMethod = "bank_transfer"
	InPerson     PaymentMethod = "in_person"
)

var paymentAliases = map[string]PaymentMethod{
	"bank_transfer": BankTransfer,
	"banktransfer":  BankTransfer,
	"transferencia": BankTransfer,
	"in_person":     InPerson,
	"inperson":      InPerson,
	"presencial":    InPerson,
}

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	m, ok := paymentAliases[aliasKey(raw)]
	return m, ok
}
