// Package domain holds the certificate desk's coded errors.
package domain

import (
	"errors"
	"fmt"

	"github.com/vecinal/certdesk/pkg/serrors"
)

var (
	ErrValidation           = serrors.NewError("CERT_VALIDATION_FAILED", "validation failed")
	ErrNotFound             = serrors.NewError("CERT_NOT_FOUND", "certificate request not found")
	ErrInvalidState         = serrors.NewError("CERT_INVALID_STATE", "invalid state")
	ErrTransaction          = serrors.NewError("CERT_TRANSACTION_FAILED", "transaction failed")
	ErrTemplateLoad         = serrors.NewError("CERT_TEMPLATE_LOAD_FAILED", "certificate template could not be loaded")
	ErrDocumentWrite        = serrors.NewError("CERT_DOCUMENT_WRITE_FAILED", "certificate document could not be written")
	ErrProofUnsupportedType = serrors.NewError("CERT_PROOF_UNSUPPORTED_TYPE", "proof of payment must be a PDF, JPEG or PNG file")
	ErrProofTooLarge        = serrors.NewError("CERT_PROOF_TOO_LARGE", "proof of payment exceeds the size limit")
	ErrConflict             = serrors.NewError("CERT_CONFLICT", "certificate request conflicts with an existing one")
)

// Wrap attaches cause to a coded error so both match errors.Is.
func Wrap(code *serrors.BaseError, cause error) error {
	if cause == nil {
		return code
	}
	return fmt.Errorf("%w: %w", code, cause)
}

// TransactionError passes coded errors through and marks everything else
// as a storage failure.
func TransactionError(err error) error {
	if err == nil {
		return nil
	}
	if serrors.Code(err) != "" {
		return err
	}
	return Wrap(ErrTransaction, err)
}

// IsCoded reports whether err carries one of the given codes.
func IsCoded(err error, codes ...*serrors.BaseError) bool {
	for _, c := range codes {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}
