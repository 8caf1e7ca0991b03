package apperr

import (
	"errors"

	"gorm.io/gorm"
)

// FromStore classifies an error returned by a store operation. Taxonomy
// errors pass through, unique violations become conflicts and everything
// else is an opaque transaction failure.
func FromStore(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict("%s: duplicate key", op)
	default:
		return Transaction(op, err)
	}
}
