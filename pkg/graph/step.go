package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mkardel/flowgraph/pkg/api"
)

// Step kind tags as they appear in workflow documents.
const (
	KindOperation  = "operation"
	KindExpression = "expression"
	KindSubProcess = "subprocess"
	KindWorkflow   = "workflow"
	KindNoOp       = "noop"
)

// Step is one unit of work in a workflow. Implementations are the five
// step variants; the interface is closed in practice because decoding
// dispatches through the kind registry below.
type Step interface {
	// ID is the step identifier, unique within its workflow.
	ID() string

	// Kind is the document kind tag.
	Kind() string

	// InputPorts and OutputPorts return the step's ports keyed by name.
	// The maps are owned by the step; callers must not mutate them.
	InputPorts() map[string]*Port
	OutputPorts() map[string]*Port

	// Weight is the step's share of workflow progress. Defaults to 1.
	Weight() float64

	// Invoke runs the step with already-resolved input values and returns
	// its output values keyed by output port name.
	Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error)

	// encode fills the kind-specific fields of the step document.
	encode(doc *stepDoc)
}

// stepDecoder builds a step variant from its document.
type stepDecoder func(doc stepDoc, dc *decodeContext) (Step, error)

// stepDecoders is the kind-tag dispatch table. Decoding an unknown tag
// fails with UnknownStepKindError. Populated in init rather than in the
// declaration: decodeWorkflowStep decodes nested documents and so refers
// back to the table.
var stepDecoders = make(map[string]stepDecoder)

func init() {
	stepDecoders[KindOperation] = decodeOpStep
	stepDecoders[KindExpression] = decodeExpressionStep
	stepDecoders[KindSubProcess] = decodeSubProcessStep
	stepDecoders[KindWorkflow] = decodeWorkflowStep
	stepDecoders[KindNoOp] = decodeNoOpStep
}

// baseStep carries the state shared by all step variants.
type baseStep struct {
	id      string
	weight  float64
	inputs  map[string]*Port
	outputs map[string]*Port
}

func newBaseStep(id, kind string) baseStep {
	if id == "" {
		id = genStepID(kind)
	}
	return baseStep{
		id:      id,
		weight:  1,
		inputs:  make(map[string]*Port),
		outputs: make(map[string]*Port),
	}
}

func genStepID(kind string) string {
	return fmt.Sprintf("%s_%s", kind, uuid.NewString()[:8])
}

func (b *baseStep) ID() string                    { return b.id }
func (b *baseStep) InputPorts() map[string]*Port  { return b.inputs }
func (b *baseStep) OutputPorts() map[string]*Port { return b.outputs }

func (b *baseStep) Weight() float64 {
	if b.weight <= 0 {
		return 1
	}
	return b.weight
}

// SetWeight sets the step's progress weight. Non-positive values reset it
// to the default of 1.
func (b *baseStep) SetWeight(w float64) { b.weight = w }

// BindInput attaches a source to the named input port.
func (b *baseStep) BindInput(port *Port) {
	b.inputs[port.Name] = port
}

// DeclareOutput declares an output port by name if not already present.
func (b *baseStep) DeclareOutput(name string) {
	if _, ok := b.outputs[name]; !ok {
		b.outputs[name] = Unbound(name)
	}
}

func (b *baseStep) inputNames() []string {
	names := make([]string, 0, len(b.inputs))
	for name := range b.inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *baseStep) outputNames() []string {
	names := make([]string, 0, len(b.outputs))
	for name := range b.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bindPorts populates input and output ports from the step document.
func (b *baseStep) bindPorts(doc stepDoc) error {
	for name, spec := range doc.Inputs {
		port, err := spec.toPort(name)
		if err != nil {
			return fmt.Errorf("step %q input %q: %w", b.id, name, err)
		}
		b.inputs[name] = port
	}
	for name, spec := range doc.Outputs {
		port, err := spec.toPort(name)
		if err != nil {
			return fmt.Errorf("step %q output %q: %w", b.id, name, err)
		}
		b.outputs[name] = port
	}
	if doc.Weight > 0 {
		b.weight = doc.Weight
	}
	return nil
}

// distributeResult maps a step's raw result onto its declared output
// ports. With a single declared output the bare value is captured; with
// several, the result must be a map carrying a value for every declared
// output name.
func distributeResult(stepID string, outputNames []string, result any) (map[string]any, error) {
	switch len(outputNames) {
	case 0:
		return map[string]any{}, nil
	case 1:
		return map[string]any{outputNames[0]: result}, nil
	}

	named, ok := result.(map[string]any)
	if !ok {
		return nil, &api.OutputArityError{
			StepID: stepID,
			Reason: fmt.Sprintf("%d outputs declared but result is %T, not a named-value map", len(outputNames), result),
		}
	}
	outputs := make(map[string]any, len(outputNames))
	for _, name := range outputNames {
		v, ok := named[name]
		if !ok {
			return nil, &api.OutputArityError{
				StepID: stepID,
				Reason: fmt.Sprintf("result has no value for declared output %q", name),
			}
		}
		outputs[name] = v
	}
	return outputs, nil
}
