package utils

import "sort"

// FieldErrors maps a request field to its validation messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Err returns nil when nothing was added.
func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return &ValidationError{Fields: e}
}

// ValidationError is returned by services for input the caller must fix.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msg := "validation error"
	for _, k := range keys {
		msg += "; " + k + ": " + v.Fields[k][0]
	}
	return msg
}
