package graph

import (
	"context"

	"github.com/mkardel/flowgraph/pkg/api"
)

// NoOpStep passes resolved input values through to output ports of the
// same name. It is useful for renaming or duplicating values, and as a
// placeholder for a step to be filled in later. Outputs with no matching
// input remain unset.
type NoOpStep struct {
	baseStep
}

// NewNoOpStep returns a no-op step with the given declared outputs.
// When outputs is empty a single "return" output is declared.
func NewNoOpStep(id string, outputs ...string) *NoOpStep {
	s := &NoOpStep{baseStep: newBaseStep(id, KindNoOp)}
	if len(outputs) == 0 {
		outputs = []string{api.ReturnOutputName}
	}
	for _, name := range outputs {
		s.outputs[name] = Unbound(name)
	}
	return s
}

func (s *NoOpStep) Kind() string { return KindNoOp }

func (s *NoOpStep) Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error) {
	if monitor.Cancelled() {
		return nil, &api.CancelledError{}
	}
	outputs := make(map[string]any, len(s.outputs))
	for name := range s.outputs {
		if v, ok := inputs[name]; ok {
			outputs[name] = v
		}
	}
	return outputs, nil
}

func (s *NoOpStep) encode(doc *stepDoc) {}

func decodeNoOpStep(doc stepDoc, dc *decodeContext) (Step, error) {
	s := NewNoOpStep(doc.ID)
	if len(doc.Outputs) > 0 {
		delete(s.outputs, api.ReturnOutputName)
	}
	if err := s.bindPorts(doc); err != nil {
		return nil, err
	}
	return s, nil
}
