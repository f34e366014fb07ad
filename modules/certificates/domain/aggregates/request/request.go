package request

import (
	"fmt"
	"time"
)

// Request is an in-flight certificate request. It exists only until its
// first state change moves it into the history ledger.
type Request struct {
	ID                int64
	Folio             string
	RequestorName     string
	NationalID        string
	Address           string
	Email             string
	Phone             string
	PaymentMethod     PaymentMethod
	ProofOfPaymentURL string
	State             State
	Notes             string
	CreatedAt         time.Time
}

type FindParams struct {
	State *State
}

func (p *FindParams) StateFilter() (State, bool) {
	if p == nil || p.State == nil {
		return "", false
	}
	return *p.State, true
}

// FormatFolio renders a folio sequence value, e.g. 100 -> "C-00100".
func FormatFolio(n int64) string {
	return fmt.Sprintf("C-%05d", n)
}
