package data

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TypeSpec is the set of types a port accepts. A single element is an exact
// type; several elements form a union.
type TypeSpec []DataType

// Types builds a TypeSpec.
func Types(ts ...DataType) TypeSpec { return TypeSpec(ts) }

// Accepts reports whether a value of type t can be placed on the port as is.
func (s TypeSpec) Accepts(t DataType) bool {
	for _, a := range s {
		if a == t || a == Unknown {
			return true
		}
		if a == Unknown.Array() && t.IsArray() {
			return true
		}
	}
	return false
}

// Primary is the first declared type, used when a port has to pick one.
func (s TypeSpec) Primary() DataType {
	if len(s) == 0 {
		return Unknown
	}
	return s[0]
}

func (s TypeSpec) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}

// Coerce infers a DataType for an arbitrary Go value.
func Coerce(v any) Data {
	switch x := v.(type) {
	case Data:
		return x
	case *Data:
		if x == nil {
			return Data{Type: Unknown}
		}
		return *x
	case nil:
		return Data{Type: Unknown}
	case string:
		return Data{Type: String, Value: x}
	case bool:
		return Data{Type: Boolean, Value: x}
	case []byte:
		return Data{Type: Blob, Value: x}
	case map[string]any:
		return Data{Type: Object, Value: x}
	case Document, *Document:
		return Data{Type: Context, Value: x}
	case Message, *Message:
		return Data{Type: ChatMessage, Value: x}
	}
	if _, ok := toFloat(v); ok {
		return Data{Type: Number, Value: v}
	}
	if items, ok := toSlice(v); ok {
		return coerceSlice(items)
	}
	return Data{Type: Unknown, Value: v}
}

func coerceSlice(items []any) Data {
	if len(items) == 0 {
		return Data{Type: Unknown.Array(), Value: items}
	}
	elem := Coerce(items[0]).Type
	values := make([]any, len(items))
	for i, item := range items {
		d := Coerce(item)
		if d.Type != elem || d.Type.IsArray() {
			elem = Unknown
		}
		values[i] = d.Value
	}
	return Data{Type: elem.Array(), Value: values}
}

// CanConvert reports whether Convert can move a value of type from onto a port
// accepting spec. It is a static check and may still fail on a concrete value,
// for example a multi-element array flowing into a scalar port.
func CanConvert(from DataType, spec TypeSpec) bool {
	if spec.Accepts(from) {
		return true
	}
	for _, to := range spec {
		if convertible(from, to) {
			return true
		}
	}
	return false
}

func convertible(from, to DataType) bool {
	switch {
	case from == Unknown || from == Unknown.Array():
		return true
	case to.IsArray() && from.IsArray():
		return convertible(from.Elem(), to.Elem())
	case to.IsArray() && !from.IsArray():
		return from == to.Elem() || convertible(from, to.Elem())
	case !to.IsArray() && from.IsArray():
		return convertible(from.Elem(), to)
	case to == String:
		return from != Blob && !from.IsArray()
	case to == Number || to == Boolean:
		return from == String
	}
	return false
}

// Convert moves d onto a port accepting spec, converting when needed.
func Convert(d Data, spec TypeSpec) (Data, error) {
	if len(spec) == 0 || spec.Accepts(d.Type) {
		return d, nil
	}
	var lastErr error
	for _, to := range spec {
		out, err := convertTo(d, to)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return Data{}, fmt.Errorf("cannot convert %s to %s: %w", d.Type, spec, lastErr)
}

func convertTo(d Data, to DataType) (Data, error) {
	if d.Type == to {
		return d, nil
	}
	if d.Type == Unknown {
		inferred := Coerce(d.Value)
		if inferred.Type == Unknown {
			return Data{}, ErrTypeMismatch
		}
		return convertTo(inferred, to)
	}
	if to.IsArray() && !d.Type.IsArray() {
		elem, err := convertTo(d, to.Elem())
		if err != nil {
			return Data{}, err
		}
		return Data{Type: to, Value: []any{elem.Value}}, nil
	}
	if d.Type.IsArray() {
		items, _ := d.Items()
		if to.IsArray() {
			values := make([]any, len(items))
			for i, item := range items {
				c, err := convertTo(item, to.Elem())
				if err != nil {
					return Data{}, err
				}
				values[i] = c.Value
			}
			return Data{Type: to, Value: values}, nil
		}
		if len(items) != 1 {
			return Data{}, fmt.Errorf("%w: %d elements do not fit a %s port", ErrTypeMismatch, len(items), to)
		}
		return convertTo(items[0], to)
	}
	switch to {
	case String:
		if d.Type != Blob {
			return Data{Type: String, Value: stringify(d)}, nil
		}
	case Number:
		if s, ok := d.Value.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return Data{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
			}
			if !finite(Number, f) {
				return Data{}, fmt.Errorf("%w: %q is not a finite number", ErrTypeMismatch, s)
			}
			return Data{Type: Number, Value: f}, nil
		}
	case Boolean:
		if s, ok := d.Value.(string); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return Data{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
			}
			return Data{Type: Boolean, Value: b}, nil
		}
	}
	return Data{}, fmt.Errorf("%w: %s to %s", ErrTypeMismatch, d.Type, to)
}

func stringify(d Data) string {
	switch v := d.Value.(type) {
	case string:
		return v
	case Document:
		return v.PageContent
	case *Document:
		return v.PageContent
	case Message:
		return v.Content
	case *Message:
		return v.Content
	case map[string]any:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(d.Value)
}
