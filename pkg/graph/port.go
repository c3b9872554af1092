package graph

import (
	"github.com/mkardel/flowgraph/pkg/api"
)

// SourceKind says where a port's value comes from.
type SourceKind string

const (
	// SourceNone marks a port with no source bound yet. Step output ports
	// are usually unbound; their values are produced by the step itself.
	SourceNone SourceKind = ""

	// SourceConstant ports carry a literal value.
	SourceConstant SourceKind = "constant"

	// SourceWorkflowInput ports reference a declared input of the
	// enclosing workflow by name (stored in RefPort).
	SourceWorkflowInput SourceKind = "workflowInput"

	// SourceStepOutput ports reference the output port of another step by
	// (RefStep, RefPort).
	SourceStepOutput SourceKind = "stepOutput"
)

// Port is a named slot on a step or workflow boundary, holding either a
// literal value or a reference to another port's output.
type Port struct {
	Name string
	Kind SourceKind

	// Value is the literal for SourceConstant ports, or the default value
	// for workflow boundary inputs.
	Value any

	// RefStep and RefPort identify the referenced entity. For
	// SourceWorkflowInput only RefPort is set.
	RefStep string
	RefPort string
}

// Constant returns a port bound to a literal value.
func Constant(name string, value any) *Port {
	return &Port{Name: name, Kind: SourceConstant, Value: value}
}

// FromInput returns a port referencing the enclosing workflow's input.
func FromInput(name, workflowInput string) *Port {
	return &Port{Name: name, Kind: SourceWorkflowInput, RefPort: workflowInput}
}

// FromStep returns a port referencing another step's output port.
func FromStep(name, stepID, portName string) *Port {
	return &Port{Name: name, Kind: SourceStepOutput, RefStep: stepID, RefPort: portName}
}

// Unbound returns a port with no source. Used for step outputs.
func Unbound(name string) *Port {
	return &Port{Name: name}
}

// ref renders the reference for error messages, e.g. "s1.out".
func (p *Port) ref() string {
	switch p.Kind {
	case SourceWorkflowInput:
		return "." + p.RefPort
	case SourceStepOutput:
		return p.RefStep + "." + p.RefPort
	default:
		return p.Name
	}
}

// runContext holds the resolved values accumulated during one workflow
// invocation: the bound workflow inputs and the outputs of every step
// executed so far. Each invocation owns its own runContext, so concurrent
// invocations of the same Workflow value do not share mutable state.
type runContext struct {
	inputs      map[string]any
	stepOutputs map[string]map[string]any

	// failed tracks steps whose failure was contained (expression errors)
	// so that dependents can be skipped rather than run against missing
	// outputs.
	failed map[string]error
}

func newRunContext(inputs map[string]any) *runContext {
	return &runContext{
		inputs:      inputs,
		stepOutputs: make(map[string]map[string]any),
		failed:      make(map[string]error),
	}
}

// Resolve returns the port's effective value given the invocation context.
func (p *Port) Resolve(rc *runContext) (any, error) {
	switch p.Kind {
	case SourceConstant:
		return p.Value, nil
	case SourceWorkflowInput:
		v, ok := rc.inputs[p.RefPort]
		if !ok {
			return nil, &api.UnresolvedInputError{Input: p.RefPort}
		}
		return v, nil
	case SourceStepOutput:
		outputs, ok := rc.stepOutputs[p.RefStep]
		if !ok {
			// Validation guarantees the referenced step exists and runs
			// first; reaching this point is an ordering bug.
			return nil, &api.UnresolvedReferenceError{Port: p.Name, Ref: p.ref()}
		}
		v, ok := outputs[p.RefPort]
		if !ok {
			return nil, &api.UnresolvedReferenceError{Port: p.Name, Ref: p.ref()}
		}
		return v, nil
	default:
		return p.Value, nil
	}
}
