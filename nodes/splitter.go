package nodes

import (
	"context"
	"fmt"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter cuts text into overlapping chunks with langchaingo's recursive
// character splitter.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter builds a splitter from args "chunkSize", "chunkOverlap" and
// "separators".
func NewSplitter(args map[string]any) (*Splitter, error) {
	size, err := argInt(args, "chunkSize", textsplitter.DefaultOptions().ChunkSize)
	if err != nil {
		return nil, err
	}
	overlap, err := argInt(args, "chunkOverlap", 0)
	if err != nil {
		return nil, err
	}
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("invalid chunk size %d with overlap %d", size, overlap)
	}

	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	}
	seps, err := argStrings(args, "separators")
	if err != nil {
		return nil, err
	}
	if len(seps) > 0 {
		opts = append(opts, textsplitter.WithSeparators(seps))
	}
	return &Splitter{splitter: textsplitter.NewRecursiveCharacter(opts...)}, nil
}

func (s *Splitter) Kind() (string, string) { return "splitter", "recursive" }

func (s *Splitter) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "text", Types: data.Types(data.String, data.Context), Required: true}},
		[]node.PortDef{
			{Name: "chunks", Types: data.Types(data.String.Array())},
			{Name: "documents", Types: data.Types(data.Context.Array())},
		}
}

func (s *Splitter) Process(_ context.Context, in node.Values, pc *node.ProcessContext) (node.Values, error) {
	var (
		text     string
		metadata map[string]any
	)
	switch v := in["text"].Value.(type) {
	case string:
		text = v
	case data.Document:
		text, metadata = v.PageContent, v.Metadata
	case *data.Document:
		text, metadata = v.PageContent, v.Metadata
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	texts := make([]any, len(chunks))
	docs := make([]any, len(chunks))
	for i, c := range chunks {
		texts[i] = c
		md := make(map[string]any, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md["chunk"] = i
		docs[i] = data.Document{PageContent: c, Metadata: md}
	}
	pc.Trace("split %d characters into %d chunks", len(text), len(chunks))
	return node.Values{
		"chunks":    data.Data{Type: data.String.Array(), Value: texts},
		"documents": data.Data{Type: data.Context.Array(), Value: docs},
	}, nil
}
