// Package codec converts the bridge's value types to and from the JSON text
// exchanged with the remote backend. Decoding validates the document shape
// against an embedded JSON Schema before unmarshalling, so a payload with a
// foreign field set is rejected instead of silently zero-filled.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrFormat is matched by every decode failure.
var ErrFormat = errors.New("format error")

// FormatError describes a payload that does not match the expected shape.
type FormatError struct {
	Type string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Type, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) hold for any FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Encode returns the JSON text of v.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// EncodeString is Encode for string-typed command arguments.
func EncodeString(v any) (string, error) {
	data, err := Encode(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TypeOf returns the reflect.Type used as registry key for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Decode validates data against the schema registered for T, if any, and
// unmarshals it.
func Decode[T any](data []byte) (T, error) {
	var out T
	t := TypeOf[T]()
	if len(data) == 0 {
		return out, &FormatError{Type: t.String(), Err: errors.New("empty payload")}
	}

	if err := validate(t, data); err != nil {
		return out, &FormatError{Type: t.String(), Err: err}
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, &FormatError{Type: t.String(), Err: err}
	}
	return out, nil
}
