package mission

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrRowOutOfRange = errors.New("row out of range")
	ErrLocked        = errors.New("waypoint is locked")
	ErrInvalidField  = errors.New("invalid field")
	ErrInvalidValue  = errors.New("invalid value")
)

// Kind tags the payload carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindFloat
	KindInt
	KindBool
)

// Value is a field value exchanged through the generic get/set interface.
type Value struct {
	kind Kind
	s    string
	f    float64
	i    int64
	b    bool
}

func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }
func (v Value) Equal(o Value) bool { return v == o }

// Float converts numeric and numeric-text values to float64.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v.s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidValue, v.kind)
}

// Int converts integral values to int64. Floats must have no fractional part.
func (v Value) Int() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		if v.f != math.Trunc(v.f) || math.IsInf(v.f, 0) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v.f)
		}
		return int64(v.f), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v.s)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidValue, v.kind)
}

// Bool converts booleans, integers and "true"/"false" text.
func (v Value) Bool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i != 0, nil
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v.s)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: %s is not a boolean", ErrInvalidValue, v.kind)
}

// String formats the payload as text.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Interface returns the payload as a plain Go value, nil when invalid.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	}
	return "invalid"
}
