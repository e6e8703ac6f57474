package model

import (
	"bytes"
	"encoding/json"
)

// Opt 表示一个可能缺失的字段值：present(value) | missing
type Opt[T any] struct {
	val   T
	valid bool
}

// Some wraps a present value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{val: v, valid: true}
}

// None returns a missing value.
func None[T any]() Opt[T] {
	return Opt[T]{}
}

// OptFromPtr converts a nullable column value.
func OptFromPtr[T any](p *T) Opt[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.val, o.valid
}

// Present reports whether the value is present.
func (o Opt[T]) Present() bool {
	return o.valid
}

// Or returns the value, or def when missing.
func (o Opt[T]) Or(def T) T {
	if o.valid {
		return o.val
	}
	return def
}

// Ptr returns a pointer to a copy of the value, nil when missing.
func (o Opt[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.val
	return &v
}

// MarshalJSON 缺失值编码为 null
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.val)
}

// UnmarshalJSON decodes null as missing.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
