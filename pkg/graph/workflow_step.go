package graph

import (
	"context"
	"fmt"

	"github.com/mkardel/flowgraph/pkg/api"
)

// WorkflowStep invokes a nested workflow loaded from an external resource.
// The nested document is resolved, decoded, and validated when this step
// is constructed, so a malformed or cyclic resource chain fails at decode
// time rather than mid-execution.
type WorkflowStep struct {
	baseStep
	resource string
	workflow *Workflow
}

// NewWorkflowStep loads the workflow document behind resource via loader
// and returns a step whose ports mirror the nested workflow's boundary.
func NewWorkflowStep(id, resource string, registry api.Registry, loader api.ResourceLoader) (*WorkflowStep, error) {
	dc := newDecodeContext(registry, loader)
	return newWorkflowStep(id, resource, dc)
}

func newWorkflowStep(id, resource string, dc *decodeContext) (*WorkflowStep, error) {
	if resource == "" {
		return nil, fmt.Errorf("workflow step %q: resource must be given", id)
	}
	nested, err := loadNestedWorkflow(resource, dc)
	if err != nil {
		return nil, err
	}

	s := &WorkflowStep{
		baseStep: newBaseStep(id, KindWorkflow),
		resource: resource,
		workflow: nested,
	}
	for name := range nested.Meta.Inputs {
		s.inputs[name] = Unbound(name)
	}
	for name := range nested.outputs {
		s.outputs[name] = Unbound(name)
	}
	return s, nil
}

func (s *WorkflowStep) Kind() string { return KindWorkflow }

// Resource returns the nested workflow's resource locator.
func (s *WorkflowStep) Resource() string { return s.resource }

// Workflow returns the decoded nested workflow.
func (s *WorkflowStep) Workflow() *Workflow { return s.workflow }

func (s *WorkflowStep) Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error) {
	if monitor.Cancelled() {
		return nil, &api.CancelledError{}
	}
	// The nested workflow's declared outputs become this step's outputs.
	return s.workflow.Invoke(ctx, monitor, inputs)
}

func (s *WorkflowStep) encode(doc *stepDoc) {
	doc.Resource = s.resource
}

func decodeWorkflowStep(doc stepDoc, dc *decodeContext) (Step, error) {
	if doc.Resource == "" {
		return nil, fmt.Errorf("workflow step %q: missing %q field", doc.ID, "resource")
	}
	s, err := newWorkflowStep(doc.ID, doc.Resource, dc)
	if err != nil {
		return nil, err
	}
	if err := s.bindPorts(doc); err != nil {
		return nil, err
	}
	return s, nil
}
