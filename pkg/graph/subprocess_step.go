package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mkardel/flowgraph/pkg/api"
)

// exitCodeOutputName, when declared as an output port, receives the child
// process exit code.
const exitCodeOutputName = "exitCode"

// cancelPollInterval is how often a running subprocess checks the monitor
// cancellation flag.
const cancelPollInterval = 50 * time.Millisecond

// SubProcessStep runs an external process built from an argument template.
// Occurrences of "{name}" in any argument are replaced with the resolved
// value of the input port of that name. The captured standard output
// becomes the step's text output; an output port named "exitCode", if
// declared, receives the process exit code.
type SubProcessStep struct {
	baseStep
	arguments []string
	cwd       string
	env       map[string]string
}

// NewSubProcessStep returns a step launching the given argument vector.
// arguments[0] is the program.
func NewSubProcessStep(id string, arguments []string) (*SubProcessStep, error) {
	if len(arguments) == 0 {
		return nil, fmt.Errorf("subprocess step %q: arguments must be given", id)
	}
	s := &SubProcessStep{baseStep: newBaseStep(id, KindSubProcess), arguments: arguments}
	s.outputs[api.ReturnOutputName] = Unbound(api.ReturnOutputName)
	return s, nil
}

func (s *SubProcessStep) Kind() string { return KindSubProcess }

// Arguments returns the argument template.
func (s *SubProcessStep) Arguments() []string { return append([]string(nil), s.arguments...) }

// SetDir sets the working directory for the child process.
func (s *SubProcessStep) SetDir(cwd string) { s.cwd = cwd }

// SetEnv sets extra environment variables for the child process. They are
// appended to the parent environment.
func (s *SubProcessStep) SetEnv(env map[string]string) { s.env = env }

func (s *SubProcessStep) Invoke(ctx context.Context, monitor api.Monitor, inputs map[string]any) (map[string]any, error) {
	if monitor.Cancelled() {
		return nil, &api.CancelledError{}
	}

	argv := make([]string, len(s.arguments))
	for i, arg := range s.arguments {
		argv[i] = substitutePlaceholders(arg, inputs)
	}

	// The derived context lets both caller cancellation and the monitor
	// flag terminate the child; CommandContext kills the process when the
	// context is done, so no exit path can leak it.
	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(procCtx, argv[0], argv[1:]...)
	if s.cwd != "" {
		cmd.Dir = s.cwd
	}
	if len(s.env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range s.env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if monitor.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()

	runErr := cmd.Run()

	if monitor.Cancelled() {
		return nil, &api.CancelledError{Reason: "subprocess terminated"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &api.CancelledError{Reason: err.Error()}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("subprocess step %q: %w", s.id, runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	outputs := make(map[string]any, len(s.outputs))
	textOutputs := 0
	for _, name := range s.outputNames() {
		if name == exitCodeOutputName {
			outputs[name] = exitCode
			continue
		}
		outputs[name] = stdout.String()
		textOutputs++
	}
	if textOutputs > 1 {
		return nil, &api.OutputArityError{
			StepID: s.id,
			Reason: "a subprocess produces a single output stream",
		}
	}

	if exitCode != 0 {
		// An explicitly declared exitCode port opts into inspecting
		// failures downstream instead of aborting the workflow.
		if _, declared := s.outputs[exitCodeOutputName]; !declared {
			return nil, &api.SubProcessError{ExitCode: exitCode, Stderr: stderr.String()}
		}
	}
	return outputs, nil
}

func substitutePlaceholders(arg string, inputs map[string]any) string {
	if !strings.Contains(arg, "{") {
		return arg
	}
	for name, value := range inputs {
		arg = strings.ReplaceAll(arg, "{"+name+"}", fmt.Sprint(value))
	}
	return arg
}

func (s *SubProcessStep) encode(doc *stepDoc) {
	doc.Arguments = s.arguments
	doc.Cwd = s.cwd
	if len(s.env) > 0 {
		doc.Env = s.env
	}
}

func decodeSubProcessStep(doc stepDoc, dc *decodeContext) (Step, error) {
	if len(doc.Arguments) == 0 {
		return nil, fmt.Errorf("subprocess step %q: missing %q field", doc.ID, "arguments")
	}
	s, err := NewSubProcessStep(doc.ID, doc.Arguments)
	if err != nil {
		return nil, err
	}
	s.cwd = doc.Cwd
	s.env = doc.Env
	if len(doc.Outputs) > 0 {
		delete(s.outputs, api.ReturnOutputName)
	}
	if err := s.bindPorts(doc); err != nil {
		return nil, err
	}
	return s, nil
}
