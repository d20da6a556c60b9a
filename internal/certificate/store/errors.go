package store

import (
	"fmt"

	"meritledger/internal/certificate/models"
	"meritledger/pkg/platform/sentinel"
)

// ErrNotFound is returned when a certificate does not exist.
var ErrNotFound = sentinel.ErrNotFound

// DuplicateIdentifierError reports which identifier namespace rejected the
// certificate. It unwraps to sentinel.ErrAlreadyUsed.
type DuplicateIdentifierError struct {
	Kind  models.IdentifierKind
	Value string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s identifier %q already used", e.Kind, e.Value)
}

func (e *DuplicateIdentifierError) Unwrap() error {
	return sentinel.ErrAlreadyUsed
}
