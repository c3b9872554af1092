package api

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ReturnOutputName is the port name used for the single unnamed output of
// an operation or step.
const ReturnOutputName = "return"

// PortMeta describes a declared input or output of an operation or
// workflow boundary port.
type PortMeta struct {
	// DataType is an optional type constraint: one of "int", "float",
	// "string", "bool", "map", "list". Empty means unconstrained.
	DataType string

	// Default is used when no value is bound at invocation time.
	// Only meaningful for inputs.
	Default any

	// Required inputs without a value or default fail validation.
	Required bool

	// Description is free-form documentation.
	Description string
}

// OpMetaInfo is the declared metadata of an operation: its qualified name,
// a free-form header, and the shapes of its inputs and outputs.
type OpMetaInfo struct {
	QualifiedName string
	Header        map[string]any
	Inputs        map[string]PortMeta
	Outputs       map[string]PortMeta
}

// HasNamedOutputs reports whether the operation declares more than the
// single "return" output.
func (m OpMetaInfo) HasNamedOutputs() bool {
	if len(m.Outputs) > 1 {
		return true
	}
	for name := range m.Outputs {
		if name != ReturnOutputName {
			return true
		}
	}
	return false
}

// InputNames returns the declared input names in sorted order.
func (m OpMetaInfo) InputNames() []string {
	names := make([]string, 0, len(m.Inputs))
	for name := range m.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateInputs checks resolved input values against the declared input
// metadata. It returns an InvalidInputError naming the first offending
// port.
func (m OpMetaInfo) ValidateInputs(values map[string]any) error {
	for _, name := range m.InputNames() {
		meta := m.Inputs[name]
		v, ok := values[name]
		if !ok || v == nil {
			if meta.Required && meta.Default == nil {
				return &InvalidInputError{Port: name, Reason: "required input has no value"}
			}
			continue
		}
		if meta.DataType == "" {
			continue
		}
		if !valueMatchesType(v, meta.DataType) {
			return &InvalidInputError{
				Port:   name,
				Reason: fmt.Sprintf("expected %s, got %T", meta.DataType, v),
			}
		}
	}
	return nil
}

func valueMatchesType(v any, dataType string) bool {
	rv := reflect.ValueOf(v)
	switch dataType {
	case "int":
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float64, reflect.Float32:
			// JSON decodes numbers as float64; accept integral floats.
			return rv.Float() == float64(int64(rv.Float()))
		}
		return false
	case "float":
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
		return false
	case "string":
		return rv.Kind() == reflect.String
	case "bool":
		return rv.Kind() == reflect.Bool
	case "map":
		return rv.Kind() == reflect.Map
	case "list":
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	}
	// Unknown type names are not enforced.
	return true
}

// OpFunc is the callable behind a registered operation. It receives
// resolved input values by name and returns either a single value (for a
// sole declared output) or a map[string]any keyed by output name.
type OpFunc func(ctx context.Context, monitor Monitor, inputs map[string]any) (any, error)

// Operation pairs declared metadata with its callable.
type Operation struct {
	Meta OpMetaInfo
	Func OpFunc
}

// Registry resolves operation qualified names to Operations. It is a
// read-only collaborator during execution and safe for concurrent use by
// multiple invocations.
type Registry interface {
	// Get returns the operation registered under qualifiedName, or an
	// UnknownOperationError.
	Get(qualifiedName string) (Operation, error)

	// Register adds an operation under its qualified name. Registering a
	// name twice is an error.
	Register(op Operation) error

	// Ops returns the registered qualified names in sorted order.
	Ops() []string
}

type registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty in-memory operation registry.
func NewRegistry() Registry {
	return &registry{ops: make(map[string]Operation)}
}

func (r *registry) Get(qualifiedName string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[qualifiedName]
	if !ok {
		return Operation{}, &UnknownOperationError{QualifiedName: qualifiedName}
	}
	return op, nil
}

func (r *registry) Register(op Operation) error {
	if op.Meta.QualifiedName == "" {
		return fmt.Errorf("operation qualified name is required")
	}
	if op.Func == nil {
		return fmt.Errorf("operation %q has nil function", op.Meta.QualifiedName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[op.Meta.QualifiedName]; exists {
		return fmt.Errorf("operation already registered: %s", op.Meta.QualifiedName)
	}
	r.ops[op.Meta.QualifiedName] = op
	return nil
}

func (r *registry) Ops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
