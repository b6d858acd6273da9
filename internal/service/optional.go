// internal/service/optional.go
package service

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a JSON field that was omitted from one explicitly
// set to null. Set is true whenever the field appeared in the document;
// Value is nil when it appeared as null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Or returns the supplied value when set, otherwise fallback.
func (o Optional[T]) Or(fallback *T) *T {
	if o.Set {
		return o.Value
	}
	return fallback
}
