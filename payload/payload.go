// Package payload provides path-based helpers for JSON dispatch
// payloads.
//
// Handlers frequently receive payloads as JSON documents (string or
// []byte). These helpers read and write fields by dotted path without
// unmarshalling the whole document, and build payload validators for
// registry entries from path requirements.
package payload

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Sentinel errors for payload helpers.
var (
	// ErrNotJSON indicates the payload is neither a string nor a []byte
	// holding a JSON document.
	ErrNotJSON = errors.New("payload: not a JSON document")

	// ErrMissingField indicates a required field is absent.
	ErrMissingField = errors.New("payload: required field missing")
)

// document coerces a payload to its JSON text, if it carries one.
func document(p any) (string, bool) {
	switch v := p.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Get reads the value at a dotted path. The second return is false if
// the payload is not JSON or the path does not exist.
func Get(p any, path string) (gjson.Result, bool) {
	doc, ok := document(p)
	if !ok {
		return gjson.Result{}, false
	}
	res := gjson.Get(doc, path)
	return res, res.Exists()
}

// Field reads the value at a dotted path as a plain Go value.
func Field(p any, path string) (any, bool) {
	res, ok := Get(p, path)
	if !ok {
		return nil, false
	}
	return res.Value(), true
}

// StringField reads a string field, with "" for missing or non-string.
func StringField(p any, path string) string {
	res, ok := Get(p, path)
	if !ok {
		return ""
	}
	return res.String()
}

// Set writes a value at a dotted path and returns the updated payload,
// preserving the input's string or []byte kind.
func Set(p any, path string, value any) (any, error) {
	switch v := p.(type) {
	case string:
		return sjson.Set(v, path, value)
	case []byte:
		return sjson.SetBytes(v, path, value)
	default:
		return nil, ErrNotJSON
	}
}

// Delete removes the field at a dotted path and returns the updated
// payload, preserving the input's string or []byte kind.
func Delete(p any, path string) (any, error) {
	switch v := p.(type) {
	case string:
		return sjson.Delete(v, path)
	case []byte:
		return sjson.DeleteBytes(v, path)
	default:
		return nil, ErrNotJSON
	}
}

// RequireFields builds an entry validator that rejects payloads missing
// any of the given paths.
func RequireFields(paths ...string) func(payload any) error {
	return func(payload any) error {
		doc, ok := document(payload)
		if !ok {
			return ErrNotJSON
		}
		for _, path := range paths {
			if !gjson.Get(doc, path).Exists() {
				return fmt.Errorf("%w: %s", ErrMissingField, path)
			}
		}
		return nil
	}
}

// FieldEquals builds an entry validator that rejects payloads whose
// field at path does not equal want.
func FieldEquals(path string, want any) func(payload any) error {
	return func(payload any) error {
		got, ok := Field(payload, path)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingField, path)
		}
		if got != want {
			return fmt.Errorf("payload: field %s is %v, want %v", path, got, want)
		}
		return nil
	}
}
