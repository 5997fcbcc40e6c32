package data

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/vmihailenco/msgpack/v5"
)

// wireData is the serialized form of Data. Values are reduced to plain maps,
// slices and scalars so any JSON or msgpack reader can consume them.
type wireData struct {
	Type  DataType `json:"type" msgpack:"type"`
	Value any      `json:"value" msgpack:"value"`
}

// MarshalJSON encodes d with documents as {content, metadata, score} and
// chat messages as {role, content}.
func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireData{Type: d.Type, Value: plain(d.Value)})
}

// UnmarshalJSON restores the Go representation of the encoded type.
func (d *Data) UnmarshalJSON(b []byte) error {
	var w wireData
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return d.restoreFrom(w)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (d Data) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(wireData{Type: d.Type, Value: plain(d.Value)})
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (d *Data) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w wireData
	if err := dec.Decode(&w); err != nil {
		return err
	}
	return d.restoreFrom(w)
}

func (d *Data) restoreFrom(w wireData) error {
	if w.Type == "" {
		*d = Coerce(w.Value)
		return nil
	}
	v, err := restore(w.Type, w.Value)
	if err != nil {
		return err
	}
	out := Data{Type: w.Type, Value: v}
	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}

func plain(v any) any {
	switch x := v.(type) {
	case Document:
		return documentMap(x)
	case *Document:
		if x == nil {
			return nil
		}
		return documentMap(*x)
	case Message:
		return map[string]any{"role": string(x.Role), "content": x.Content}
	case *Message:
		if x == nil {
			return nil
		}
		return map[string]any{"role": string(x.Role), "content": x.Content}
	case []byte, string, nil:
		return x
	}
	if items, ok := toSlice(v); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

func documentMap(doc Document) map[string]any {
	m := map[string]any{"content": doc.PageContent}
	if len(doc.Metadata) > 0 {
		m["metadata"] = doc.Metadata
	}
	if doc.Score != 0 {
		m["score"] = doc.Score
	}
	return m
}

func restore(t DataType, v any) (any, error) {
	if t.IsArray() {
		if v == nil {
			return []any{}, nil
		}
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
		}
		out := make([]any, len(items))
		for i, item := range items {
			r, err := restore(t.Elem(), item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	}

	switch t {
	case Number:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case Blob:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return base64.StdEncoding.DecodeString(x)
		}
	case Context:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		doc := Document{}
		doc.PageContent, _ = m["content"].(string)
		doc.Metadata, _ = m["metadata"].(map[string]any)
		if score, ok := toFloat(m["score"]); ok {
			doc.Score = float32(score)
		}
		return doc, nil
	case ChatMessage:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		return Message{Role: llms.ChatMessageType(role), Content: content}, nil
	default:
		return v, nil
	}
	return nil, fmt.Errorf("%w: cannot decode %T as %s", ErrTypeMismatch, v, t)
}

// FromJSON decodes raw as a tagged {type, value} object when it is one,
// otherwise as a plain JSON value whose type is inferred with Coerce.
func FromJSON(raw []byte) (Data, error) {
	var probe map[string]json.RawMessage
	if json.Unmarshal(raw, &probe) == nil {
		if _, tagged := probe["type"]; tagged {
			if _, ok := probe["value"]; ok && len(probe) == 2 {
				var d Data
				err := json.Unmarshal(raw, &d)
				return d, err
			}
		}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Data{}, err
	}
	return Coerce(v), nil
}
