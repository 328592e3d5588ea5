package handler

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// nullableString tells an absent JSON field apart from an explicit null.
// Set is true whenever the key was present; Value is nil for null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// nullableStringValue exposes the wrapped string to validator tags; absent
// and null both validate as empty.
func nullableStringValue(field reflect.Value) any {
	n, ok := field.Interface().(nullableString)
	if !ok || n.Value == nil {
		return nil
	}
	return *n.Value
}
