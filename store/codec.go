package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns records into bytes for stores that keep opaque blobs.
type Codec interface {
	Encode(r *Record) ([]byte, error)
	Decode(b []byte) (*Record, error)
	Name() string
}

// JSONCodec stores records as JSON. Readable, but the largest encoding.
type JSONCodec struct{}

func (JSONCodec) Encode(r *Record) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) Decode(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (JSONCodec) Name() string { return "json" }

// MsgpackCodec stores records as msgpack, optionally zstd compressed.
type MsgpackCodec struct {
	Compress bool
}

// DefaultCodec is msgpack with zstd compression.
var DefaultCodec Codec = MsgpackCodec{Compress: true}

func (c MsgpackCodec) Encode(r *Record) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("msgpack encoding failed: %w", err)
	}
	if !c.Compress {
		return b, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(b, nil), nil
}

func (c MsgpackCodec) Decode(b []byte) (*Record, error) {
	if c.Compress {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if b, err = dec.DecodeAll(b, nil); err != nil {
			return nil, fmt.Errorf("decompression failed: %w", err)
		}
	}
	var r Record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("msgpack decoding failed: %w", err)
	}
	return &r, nil
}

func (c MsgpackCodec) Name() string {
	if c.Compress {
		return "msgpack+zstd"
	}
	return "msgpack"
}
