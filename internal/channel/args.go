package channel

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/five82/videocompress/internal/errors"
)

// Args holds call arguments decoded from JSON. Numbers may arrive as
// float64, json.Number, any Go integer type or a numeric string.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", errors.NewInvalidArgumentError(name, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.NewInvalidArgumentError(name, fmt.Sprintf("must be a string, got %T", v))
	}
	return s, nil
}

// Float returns a required numeric argument.
func (a Args) Float(name string) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, errors.NewInvalidArgumentError(name, "is required")
	}
	return toFloat(name, v)
}

// Int returns a required integer argument. Fractions are truncated.
func (a Args) Int(name string) (int, error) {
	f, err := a.Float(name)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Bool returns a boolean argument, false when absent.
func (a Args) Bool(name string) (bool, error) {
	p, err := a.OptionalBool(name)
	if err != nil || p == nil {
		return false, err
	}
	return *p, nil
}

// OptionalFloat returns nil when the argument is absent or null.
func (a Args) OptionalFloat(name string) (*float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := toFloat(name, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// OptionalInt returns nil when the argument is absent or null.
func (a Args) OptionalInt(name string) (*int, error) {
	f, err := a.OptionalFloat(name)
	if err != nil || f == nil {
		return nil, err
	}
	i := int(*f)
	return &i, nil
}

// OptionalBool returns nil when the argument is absent or null.
func (a Args) OptionalBool(name string) (*bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case bool:
		return &b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return nil, errors.NewInvalidArgumentError(name, "must be a boolean")
		}
		return &parsed, nil
	default:
		return nil, errors.NewInvalidArgumentError(name, fmt.Sprintf("must be a boolean, got %T", v))
	}
}

func toFloat(name string, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, errors.NewInvalidArgumentError(name, "must be a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, errors.NewInvalidArgumentError(name, "must be a number")
		}
		f = parsed
	default:
		return 0, errors.NewInvalidArgumentError(name, fmt.Sprintf("must be a number, got %T", v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewInvalidArgumentError(name, "must be finite")
	}
	return f, nil
}
