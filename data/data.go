package data

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// DataType names the shape of a value travelling on a port.
type DataType string

const (
	String      DataType = "string"
	Number      DataType = "number"
	Boolean     DataType = "boolean"
	Unknown     DataType = "unknown"
	Object      DataType = "object"
	Blob        DataType = "blob"
	Context     DataType = "context"
	ChatMessage DataType = "chat-message"
)

const arraySuffix = "[]"

// ScalarTypes lists every scalar type. Each one also has an array form.
var ScalarTypes = []DataType{String, Number, Boolean, Unknown, Object, Blob, Context, ChatMessage}

// ErrTypeMismatch is returned when a value does not have the shape its type promises.
var ErrTypeMismatch = errors.New("data type mismatch")

// IsArray reports whether t is the array form of a scalar type.
func (t DataType) IsArray() bool {
	return strings.HasSuffix(string(t), arraySuffix)
}

// Elem returns the scalar type of an array type, or t itself.
func (t DataType) Elem() DataType {
	return DataType(strings.TrimSuffix(string(t), arraySuffix))
}

// Array returns the array form of t.
func (t DataType) Array() DataType {
	if t.IsArray() {
		return t
	}
	return t + arraySuffix
}

// Valid reports whether t belongs to the closed set of data types.
func (t DataType) Valid() bool {
	elem := t.Elem()
	if t.IsArray() && elem.IsArray() {
		return false
	}
	for _, s := range ScalarTypes {
		if s == elem {
			return true
		}
	}
	return false
}

func (t DataType) String() string { return string(t) }

// Document is the value of a context typed port: content plus metadata.
type Document = schema.Document

// Message is the value of a chat-message typed port.
type Message struct {
	Role    llms.ChatMessageType `json:"role"`
	Content string               `json:"content"`
}

// Data is a typed value.
type Data struct {
	Type  DataType `json:"type"`
	Value any      `json:"value"`
}

// New builds a Data after checking that v has the shape t promises.
func New(t DataType, v any) (Data, error) {
	d := Data{Type: t, Value: v}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Must is like New but panics on a mismatch. Meant for literals in tests and builders.
func Must(t DataType, v any) Data {
	d, err := New(t, v)
	if err != nil {
		panic(err)
	}
	return d
}

// Text is shorthand for a string Data.
func Text(s string) Data { return Data{Type: String, Value: s} }

// Validate checks the runtime shape of d.Value against d.Type.
func (d Data) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrTypeMismatch, d.Type)
	}
	if !d.Type.IsArray() {
		if !scalarMatches(d.Type, d.Value) {
			return fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, d.Value, d.Type)
		}
		if !finite(d.Type, d.Value) {
			return fmt.Errorf("%w: %v is not a finite number", ErrTypeMismatch, d.Value)
		}
		return nil
	}
	items, ok := toSlice(d.Value)
	if !ok {
		return fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, d.Value, d.Type)
	}
	elem := d.Type.Elem()
	for i, item := range items {
		if !scalarMatches(elem, item) {
			return fmt.Errorf("%w: element %d (%T) is not %s", ErrTypeMismatch, i, item, elem)
		}
		if !finite(elem, item) {
			return fmt.Errorf("%w: element %d (%v) is not a finite number", ErrTypeMismatch, i, item)
		}
	}
	return nil
}

// Items returns the elements of an array Data as scalar Data values.
func (d Data) Items() ([]Data, bool) {
	if !d.Type.IsArray() {
		return nil, false
	}
	items, ok := toSlice(d.Value)
	if !ok {
		return nil, false
	}
	elem := d.Type.Elem()
	out := make([]Data, len(items))
	for i, item := range items {
		out[i] = Data{Type: elem, Value: item}
	}
	return out, true
}

// AsString returns the value as a string if it is one.
func (d Data) AsString() (string, bool) {
	s, ok := d.Value.(string)
	return s, ok && d.Type == String
}

// AsNumber returns the value as a float64 if d is a number.
func (d Data) AsNumber() (float64, bool) {
	if d.Type != Number {
		return 0, false
	}
	return toFloat(d.Value)
}

func (d Data) String() string {
	return fmt.Sprintf("%s(%v)", d.Type, d.Value)
}

func scalarMatches(t DataType, v any) bool {
	switch t {
	case Unknown:
		return true
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		_, ok := toFloat(v)
		return ok
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Object:
		if v == nil {
			return true
		}
		_, ok := v.(map[string]any)
		return ok
	case Blob:
		_, ok := v.([]byte)
		return ok
	case Context:
		switch v.(type) {
		case Document, *Document:
			return true
		}
		return false
	case ChatMessage:
		switch v.(type) {
		case Message, *Message:
			return true
		}
		return false
	}
	return false
}

// finite rejects NaN and infinities, which have no JSON encoding.
func finite(t DataType, v any) bool {
	if t != Number {
		return true
	}
	f, _ := toFloat(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []any:
		return s, true
	case []string:
		return anySlice(s), true
	case []float64:
		return anySlice(s), true
	case []int:
		return anySlice(s), true
	case []bool:
		return anySlice(s), true
	case []map[string]any:
		return anySlice(s), true
	case [][]byte:
		return anySlice(s), true
	case []Document:
		return anySlice(s), true
	case []Message:
		return anySlice(s), true
	case []Data:
		out := make([]any, len(s))
		for i, d := range s {
			out[i] = d.Value
		}
		return out, true
	}
	return nil, false
}

func anySlice[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
