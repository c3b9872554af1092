package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mkardel/flowgraph/pkg/graph"
)

// workflowRegistry holds registered workflow definitions by qualified name.
type workflowRegistry struct {
	mu     sync.RWMutex
	byName map[string]*graph.Workflow
}

func newWorkflowRegistry() *workflowRegistry {
	return &workflowRegistry{byName: make(map[string]*graph.Workflow)}
}

func (r *workflowRegistry) Register(wf *graph.Workflow) error {
	name := wf.QualifiedName()
	if name == "" {
		return fmt.Errorf("workflow qualified name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("workflow %q already registered", name)
	}
	r.byName[name] = wf
	return nil
}

func (r *workflowRegistry) Get(name string) (*graph.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown workflow: %s", name)
	}
	return wf, nil
}

func (r *workflowRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
