package model

import (
	"math"

	"github.com/petrophysics/sonicdt/pkg/errors"
)

// IntParam converts a hyperparameter value into an int. Whole float64 values
// are accepted so parameters decoded from JSON or YAML work unchanged.
func IntParam(name string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// OptionalIntParam is IntParam where nil means "no limit" and maps to 0.
func OptionalIntParam(name string, v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	return IntParam(name, v)
}

// StringParam converts a hyperparameter value into a string. nil maps to "".
func StringParam(name string, v interface{}) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return "", errors.NewValidationError(name, "must be a string", v)
}

// BoolParam converts a hyperparameter value into a bool.
func BoolParam(name string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewValidationError(name, "must be a boolean", v)
}

// OptionalInt renders 0 as nil, the inverse of OptionalIntParam.
func OptionalInt(v int) interface{} {
	if v <= 0 {
		return nil
	}
	return v
}
