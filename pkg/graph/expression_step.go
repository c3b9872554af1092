package graph

import (
	"context"
	"fmt"

	"github.com/mkardel/flowgraph/internal/expr"
	"github.com/mkardel/flowgraph/pkg/api"
)

// ExpressionStep computes its outputs from a single expression string
// evaluated against a namespace holding only the step's resolved input
// values.
type ExpressionStep struct {
	baseStep
	expression string
}

// NewExpressionStep returns a step evaluating expression. outputs names
// the declared output ports; when empty a single "return" output is
// declared.
func NewExpressionStep(id, expression string, outputs ...string) (*ExpressionStep, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression step %q: expression must be given", id)
	}
	s := &ExpressionStep{baseStep: newBaseStep(id, KindExpression), expression: expression}
	if len(outputs) == 0 {
		outputs = []string{api.ReturnOutputName}
	}
	for _, name := range outputs {
		s.outputs[name] = Unbound(name)
	}
	return s, nil
}

func (s *ExpressionStep) Kind() string { return KindExpression }

// Expression returns the expression string.
func (s *ExpressionStep) Expression() string { return s.expression }

func (s *ExpressionStep) Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error) {
	if monitor.Cancelled() {
		return nil, &api.CancelledError{}
	}

	result, err := expr.Eval(s.expression, inputs)
	if err != nil {
		return nil, &api.ExpressionError{Expression: s.expression, Err: err}
	}
	return distributeResult(s.id, s.outputNames(), result)
}

func (s *ExpressionStep) encode(doc *stepDoc) {
	doc.Expression = s.expression
}

func decodeExpressionStep(doc stepDoc, dc *decodeContext) (Step, error) {
	if doc.Expression == "" {
		return nil, fmt.Errorf("expression step %q: missing %q field", doc.ID, "expression")
	}
	s, err := NewExpressionStep(doc.ID, doc.Expression)
	if err != nil {
		return nil, err
	}
	if len(doc.Outputs) > 0 {
		// Declared outputs replace the implicit "return" port.
		delete(s.outputs, api.ReturnOutputName)
	}
	if err := s.bindPorts(doc); err != nil {
		return nil, err
	}
	return s, nil
}
