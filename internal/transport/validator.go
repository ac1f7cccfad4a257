package transport

import "github.com/go-playground/validator/v10"

// Validator plugs go-playground/validator into echo so handlers can
// c.Validate(&req) after binding.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}
