// Package validator wraps go-playground/validator so operation params are
// checked against their struct tags and failures surface as BadRequest.
package validator

import (
	"fmt"

	"journal/internal/errs"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks i against its struct tags. Violations map to the
// BadRequest error kind so callers abort before any write.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return fmt.Errorf("invalid params: %v: %w", err, errs.ErrBadRequest)
	}
	return nil
}
