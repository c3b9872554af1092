package graph

import (
	"context"
	"fmt"

	"github.com/mkardel/flowgraph/pkg/api"
)

// OpStep invokes a registered operation by qualified name.
type OpStep struct {
	baseStep
	op api.Operation
}

// NewOpStep resolves qualifiedName in registry and returns a step whose
// input and output ports mirror the operation's declared metadata. An
// empty id is replaced with a generated one.
func NewOpStep(id, qualifiedName string, registry api.Registry) (*OpStep, error) {
	if registry == nil {
		return nil, fmt.Errorf("operation step %q: no operation registry configured", id)
	}
	op, err := registry.Get(qualifiedName)
	if err != nil {
		return nil, err
	}

	s := &OpStep{baseStep: newBaseStep(id, KindOperation), op: op}
	for name := range op.Meta.Inputs {
		s.inputs[name] = Unbound(name)
	}
	for name := range op.Meta.Outputs {
		s.outputs[name] = Unbound(name)
	}
	if len(s.outputs) == 0 {
		s.outputs[api.ReturnOutputName] = Unbound(api.ReturnOutputName)
	}
	return s, nil
}

func (s *OpStep) Kind() string { return KindOperation }

// QualifiedName returns the name of the operation this step invokes.
func (s *OpStep) QualifiedName() string { return s.op.Meta.QualifiedName }

func (s *OpStep) Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error) {
	if monitor.Cancelled() {
		return nil, &api.CancelledError{}
	}

	// Fill declared defaults for inputs the workflow left unbound.
	for name, meta := range s.op.Meta.Inputs {
		if _, ok := inputs[name]; !ok && meta.Default != nil {
			inputs[name] = meta.Default
		}
	}
	if err := s.op.Meta.ValidateInputs(inputs); err != nil {
		return nil, err
	}

	result, err := s.op.Func(ctx, monitor, inputs)
	if err != nil {
		return nil, err
	}
	return distributeResult(s.id, s.outputNames(), result)
}

func (s *OpStep) encode(doc *stepDoc) {
	doc.Op = s.op.Meta.QualifiedName
}

func decodeOpStep(doc stepDoc, dc *decodeContext) (Step, error) {
	if doc.Op == "" {
		return nil, fmt.Errorf("operation step %q: missing %q field", doc.ID, "op")
	}
	s, err := NewOpStep(doc.ID, doc.Op, dc.registry)
	if err != nil {
		return nil, err
	}
	if err := s.bindPorts(doc); err != nil {
		return nil, err
	}
	return s, nil
}
