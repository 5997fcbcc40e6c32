// Package flow reads and writes JSON graph descriptors and builds runnable
// graphs from them through a node registry.
package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallnest/nodeflow/registry"
)

// ErrInvalidDescriptor is matched by every descriptor validation failure.
var ErrInvalidDescriptor = errors.New("invalid graph descriptor")

// Descriptor is the serialized form of a graph.
type Descriptor struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name" validate:"required"`
	Nodes       []NodeDescriptor `json:"nodes" validate:"required,min=1,dive"`
	Connections []Connection     `json:"connections,omitempty" validate:"dive"`
}

// NodeDescriptor describes one node. Sub-graph nodes carry their graph
// inline and have type "subgraph".
type NodeDescriptor struct {
	ID      string         `json:"id" validate:"required,node_id"`
	Type    string         `json:"type" validate:"required"`
	SubType string         `json:"subType,omitempty"`
	Title   string         `json:"title,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Graph   *Descriptor    `json:"graph,omitempty" validate:"required_if=Type subgraph"`
}

// Connection links an output port to an input port.
type Connection struct {
	FromNodeID   string `json:"fromNodeId" validate:"required"`
	FromPortName string `json:"fromPortName" validate:"required"`
	ToNodeID     string `json:"toNodeId" validate:"required"`
	ToPortName   string `json:"toPortName" validate:"required"`
}

var (
	validate  *validator.Validate
	nodeIDPat = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("node_id", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return len(id) <= 100 && nodeIDPat.MatchString(id)
	})
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// FieldError is one descriptor validation failure.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors lists every failure found in a descriptor.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "invalid graph descriptor: " + strings.Join(msgs, "; ")
}

func (e ValidationErrors) Is(target error) bool { return target == ErrInvalidDescriptor }

// Validate checks the shape of d. It does not check graph structure such
// as cycles or port names; the processor reports those as graphError.
func Validate(d *Descriptor) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	out := make(ValidationErrors, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   strings.TrimPrefix(fe.Namespace(), "Descriptor."),
			Message: message(fe),
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "required_if":
		return "field is required for sub-graph nodes"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "node_id":
		return "must be a node identifier (letters, digits, underscore, hyphen)"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

// Parse decodes and validates a descriptor.
func Parse(b []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Decode reads and validates a descriptor from r.
func Decode(r io.Reader) (*Descriptor, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func isSubGraph(n NodeDescriptor) bool {
	return n.Type == registry.SubGraphType
}
