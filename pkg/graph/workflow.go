package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mkardel/flowgraph/pkg/api"
)

// Workflow is a composite of connected steps. It owns its steps, exposes
// input and output ports at its boundary, and executes the steps in
// dependency order.
//
// The graph is built once, by decoding a document or by direct
// construction, and may be mutated with AddStep/RemoveStep before the
// first invocation. During an Invoke call the topology must not change.
// A Workflow may be invoked many times; each invocation owns its own
// resolution context, so concurrent invocations do not share mutable
// port values.
type Workflow struct {
	// Meta carries the qualified name, header, and the declared input and
	// output shapes of the workflow boundary.
	Meta api.OpMetaInfo

	// outputs are the boundary output ports; each references a value in
	// the step graph and is resolved like any other port.
	outputs map[string]*Port

	steps []Step
	byID  map[string]Step
}

// New returns an empty workflow with the given qualified name.
func New(qualifiedName string) *Workflow {
	return &Workflow{
		Meta: api.OpMetaInfo{
			QualifiedName: qualifiedName,
			Inputs:        make(map[string]api.PortMeta),
			Outputs:       make(map[string]api.PortMeta),
		},
		outputs: make(map[string]*Port),
		byID:    make(map[string]Step),
	}
}

// QualifiedName returns the workflow's qualified name.
func (w *Workflow) QualifiedName() string { return w.Meta.QualifiedName }

// DeclareInput declares a workflow boundary input.
func (w *Workflow) DeclareInput(name string, meta api.PortMeta) {
	w.Meta.Inputs[name] = meta
}

// DeclareOutput declares a workflow boundary output resolved from port,
// which must reference a step output or a workflow input.
func (w *Workflow) DeclareOutput(name string, port *Port) {
	port.Name = name
	w.outputs[name] = port
	if _, ok := w.Meta.Outputs[name]; !ok {
		w.Meta.Outputs[name] = api.PortMeta{}
	}
}

// OutputPorts returns the boundary output ports keyed by name. The map is
// owned by the workflow; callers must not mutate it.
func (w *Workflow) OutputPorts() map[string]*Port { return w.outputs }

// Steps returns the steps in declaration order.
func (w *Workflow) Steps() []Step {
	return append([]Step(nil), w.steps...)
}

// Step returns the step with the given id.
func (w *Workflow) Step(id string) (Step, bool) {
	s, ok := w.byID[id]
	return s, ok
}

// AddStep appends a step. Step ids must be unique within the workflow.
func (w *Workflow) AddStep(s Step) error {
	if s.ID() == "" {
		return fmt.Errorf("step id must be given")
	}
	if _, exists := w.byID[s.ID()]; exists {
		return fmt.Errorf("step %q already exists", s.ID())
	}
	w.steps = append(w.steps, s)
	w.byID[s.ID()] = s
	return nil
}

// RemoveStep removes the step with the given id and unbinds any port that
// still references it. It returns the removed step, if any.
func (w *Workflow) RemoveStep(id string) (Step, bool) {
	removed, ok := w.byID[id]
	if !ok {
		return nil, false
	}
	delete(w.byID, id)
	for i, s := range w.steps {
		if s.ID() == id {
			w.steps = append(w.steps[:i], w.steps[i+1:]...)
			break
		}
	}
	unbind := func(ports map[string]*Port) {
		for name, port := range ports {
			if port.Kind == SourceStepOutput && port.RefStep == id {
				ports[name] = Unbound(name)
			}
		}
	}
	unbind(w.outputs)
	for _, s := range w.steps {
		unbind(s.InputPorts())
	}
	return removed, true
}

// Validate checks referential and cyclic integrity: step ids are unique,
// every port reference names an existing step output or declared workflow
// input, and the induced dependency graph is acyclic. It is called by the
// codec after decoding and by Invoke before execution; a workflow that
// fails validation never runs.
func (w *Workflow) Validate() error {
	seen := make(map[string]bool, len(w.steps))
	for _, s := range w.steps {
		if seen[s.ID()] {
			return fmt.Errorf("duplicate step id %q in workflow %q", s.ID(), w.Meta.QualifiedName)
		}
		seen[s.ID()] = true
	}

	checkPort := func(port *Port) error {
		switch port.Kind {
		case SourceWorkflowInput:
			if _, ok := w.Meta.Inputs[port.RefPort]; !ok {
				return &api.UnresolvedReferenceError{Port: port.Name, Ref: port.ref()}
			}
		case SourceStepOutput:
			target, ok := w.byID[port.RefStep]
			if !ok {
				return &api.UnresolvedReferenceError{Port: port.Name, Ref: port.ref()}
			}
			if _, ok := target.OutputPorts()[port.RefPort]; !ok {
				return &api.UnresolvedReferenceError{Port: port.Name, Ref: port.ref()}
			}
		}
		return nil
	}

	for _, s := range w.steps {
		for _, port := range s.InputPorts() {
			if err := checkPort(port); err != nil {
				return err
			}
		}
	}
	for _, port := range w.outputs {
		if err := checkPort(port); err != nil {
			return err
		}
	}

	return w.checkCycles()
}

// dependencies returns the ids of the steps s directly depends on,
// in sorted order.
func (w *Workflow) dependencies(s Step) []string {
	set := make(map[string]bool)
	for _, port := range s.InputPorts() {
		if port.Kind == SourceStepOutput {
			set[port.RefStep] = true
		}
	}
	deps := make([]string, 0, len(set))
	for id := range set {
		deps = append(deps, id)
	}
	sort.Strings(deps)
	return deps
}

// checkCycles runs a depth-first search over the dependency edges and
// reports the first cycle found, naming the step ids on it.
func (w *Workflow) checkCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(w.steps))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		stack = append(stack, id)
		s := w.byID[id]
		for _, dep := range w.dependencies(s) {
			if _, ok := w.byID[dep]; !ok {
				continue // dangling refs are reported by Validate
			}
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				// Slice the stack from the first occurrence of dep to get
				// the cycle members in traversal order.
				var cycle []string
				for i, sid := range stack {
					if sid == dep {
						cycle = append(cycle, stack[i:]...)
						break
					}
				}
				cycle = append(cycle, dep)
				return &api.CyclicDependencyError{Cycle: cycle}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, s := range w.steps {
		if color[s.ID()] == white {
			if err := visit(s.ID()); err != nil {
				return err
			}
		}
	}
	return nil
}

// SortedSteps returns the steps in an order in which they can be
// executed: every step appears after all steps it depends on, and steps
// with no ordering constraint between them keep their declaration order.
func (w *Workflow) SortedSteps() ([]Step, error) {
	if err := w.checkCycles(); err != nil {
		return nil, err
	}

	emitted := make(map[string]bool, len(w.steps))
	order := make([]Step, 0, len(w.steps))
	for len(order) < len(w.steps) {
		progressed := false
		for _, s := range w.steps {
			if emitted[s.ID()] {
				continue
			}
			ready := true
			for _, dep := range w.dependencies(s) {
				if _, ok := w.byID[dep]; ok && !emitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				emitted[s.ID()] = true
				order = append(order, s)
				progressed = true
			}
		}
		if !progressed {
			// checkCycles above makes this unreachable.
			return nil, &api.CyclicDependencyError{Cycle: []string{w.Meta.QualifiedName}}
		}
	}
	return order, nil
}

// Invoke executes the workflow: it binds the supplied inputs, runs every
// step in dependency order, and collects the declared outputs. Any step
// failure aborts the remaining traversal and is returned as a
// WorkflowExecutionError carrying the failing step's id; outputs of
// completed steps are discarded. Cancellation, whether via ctx or the
// monitor flag, surfaces as a CancelledError.
//
// The one exception to fail-fast is ExpressionError: sibling steps that
// do not depend on the failed expression still run, and the error is
// surfaced once the traversal finishes.
func (w *Workflow) Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error) {
	if monitor == nil {
		monitor = api.NullMonitor{}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	bound, err := w.bindInputs(inputs)
	if err != nil {
		return nil, err
	}

	order, err := w.SortedSteps()
	if err != nil {
		return nil, err
	}

	totalWeight := 0.0
	for _, s := range order {
		totalWeight += s.Weight()
	}
	monitor.Started(fmt.Sprintf("Executing %d workflow step(s)", len(order)), totalWeight)

	rc := newRunContext(bound)
	trace := stepTraceFrom(ctx)

	for i, step := range order {
		if err := checkCancelled(ctx, monitor); err != nil {
			return nil, err
		}

		// Steps downstream of a contained failure are skipped, carrying
		// the original error forward.
		if cause := w.failedDependency(rc, step); cause != nil {
			rc.failed[step.ID()] = cause
			continue
		}

		values := make(map[string]any, len(step.InputPorts()))
		for name, port := range step.InputPorts() {
			v, err := port.Resolve(rc)
			if err != nil {
				return nil, &api.WorkflowExecutionError{StepID: step.ID(), Err: err}
			}
			if port.Kind != SourceNone || v != nil {
				values[name] = v
			}
		}

		child := monitor.Child(step.Weight())
		trace.OnStepStart(step.ID(), i)
		start := time.Now()

		outputs, stepErr := step.Invoke(ctx, child, values)

		trace.OnStepCompleted(step.ID(), i, stepErr, time.Since(start))

		if stepErr != nil {
			if api.IsCancelled(stepErr) {
				return nil, stepErr
			}
			var exprErr *api.ExpressionError
			if errors.As(stepErr, &exprErr) {
				rc.failed[step.ID()] = stepErr
				continue
			}
			return nil, &api.WorkflowExecutionError{StepID: step.ID(), Err: stepErr}
		}

		child.Done()
		rc.stepOutputs[step.ID()] = outputs
	}

	// Surface the first contained failure in execution order.
	for _, step := range order {
		if cause, ok := rc.failed[step.ID()]; ok {
			return nil, &api.WorkflowExecutionError{StepID: step.ID(), Err: cause}
		}
	}

	results := make(map[string]any, len(w.outputs))
	for _, name := range w.outputNames() {
		v, err := w.outputs[name].Resolve(rc)
		if err != nil {
			return nil, err
		}
		results[name] = v
	}

	monitor.Done()
	return results, nil
}

// bindInputs merges caller-supplied values with declared defaults and
// validates them against the declared input metadata.
func (w *Workflow) bindInputs(inputs map[string]any) (map[string]any, error) {
	bound := make(map[string]any, len(w.Meta.Inputs))
	for _, name := range w.Meta.InputNames() {
		meta := w.Meta.Inputs[name]
		if v, ok := inputs[name]; ok {
			bound[name] = v
			continue
		}
		if meta.Default != nil {
			bound[name] = meta.Default
			continue
		}
		if meta.Required {
			return nil, &api.UnresolvedInputError{Input: name}
		}
	}
	if err := w.Meta.ValidateInputs(bound); err != nil {
		return nil, err
	}
	return bound, nil
}

// failedDependency returns the error of the first failed step that step
// depends on, if any.
func (w *Workflow) failedDependency(rc *runContext, step Step) error {
	for _, dep := range w.dependencies(step) {
		if cause, ok := rc.failed[dep]; ok {
			return cause
		}
	}
	return nil
}

func (w *Workflow) outputNames() []string {
	names := make([]string, 0, len(w.outputs))
	for name := range w.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkCancelled(ctx context.Context, monitor api.Monitor) error {
	if err := ctx.Err(); err != nil {
		return &api.CancelledError{Reason: err.Error()}
	}
	if monitor.Cancelled() {
		return &api.CancelledError{}
	}
	return nil
}
