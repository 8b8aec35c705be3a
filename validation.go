package llmtools

import (
	"reflect"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validatable is implemented by argument records that need custom business validation.
// Called after schema validation and decoding.
type Validatable interface {
	Validate() error
}

// schemaValidator validates a decoded JSON value (map[string]any, []any, json.Number, ...).
// *jsonschema.Schema from santhosh-tekuri/jsonschema implements it.
type schemaValidator interface {
	Validate(v any) error
}

var _ schemaValidator = (*jsv.Schema)(nil)

// validateAgainstSchema runs Layer 1 validation on already-decoded arguments.
func validateAgainstSchema(validate schemaValidator, v any) error {
	if validate == nil {
		return nil
	}
	if err := validate.Validate(v); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation, Cause: err}
	}
	return nil
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// runLayer2Validation runs Validatable.Validate() on args; if args does not implement Validatable,
// it tries &args for value types (pointer receiver). Never calls Validate twice for the same receiver.
func runLayer2Validation[T any](args T) error {
	if err := validateCustom(any(args)); err != nil {
		return asValidationError(err)
	}
	if _, ok := any(args).(Validatable); ok {
		return nil
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return asValidationError(validateCustom(any(&args)))
}

func asValidationError(err error) error {
	if err == nil || IsClientError(err) {
		return err
	}
	return &ClientError{Reason: err.Error(), Err: ErrValidation, Cause: err}
}
