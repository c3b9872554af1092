// Package expr evaluates a single Go expression string against a
// restricted namespace of named values.
//
// Each evaluation uses a fresh yaegi interpreter. The interpreter sees
// only the caller-supplied environment; no standard library symbols are
// loaded, so expressions have no access to ambient process state (files,
// network, environment variables).
package expr

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
)

// Eval evaluates expression with the names in env bound as variables.
// The expression is compiled as the body of a synthetic function whose
// parameters carry the environment values, so inputs keep their concrete
// Go types and the usual operators apply to them. Nil values, which have
// no concrete type, are bound as untyped nil variables in the body.
func Eval(expression string, env map[string]any) (any, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	names := make([]string, 0, len(env))
	for name := range env {
		if !validIdentifier(name) {
			return nil, fmt.Errorf("input name %q is not a valid identifier", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]string, 0, len(names))
	args := make([]reflect.Value, 0, len(names))
	var nilDecls strings.Builder
	for _, name := range names {
		value := env[name]
		if value == nil {
			// A nil value has no concrete type to pass by reflection, so
			// the name is declared inside the function body instead.
			fmt.Fprintf(&nilDecls, "var %s any; _ = %s; ", name, name)
			continue
		}
		params = append(params, name+" "+typeLiteral(reflect.TypeOf(value)))
		args = append(args, reflect.ValueOf(value))
	}

	// The literal is bound to a name and then referenced: evaluating a
	// bare func literal yields a pointer value, not a callable func.
	src := fmt.Sprintf("__eval := func(%s) any { %sreturn %s }; __eval",
		strings.Join(params, ", "), nilDecls.String(), expression)

	i := interp.New(interp.Options{})
	fn, err := i.Eval(src)
	if err != nil {
		return nil, err
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("expression did not compile to a function")
	}

	out, err := call(fn, args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || !out[0].IsValid() {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// call invokes the interpreted function, converting interpreter runtime
// panics (index out of range, nil dereference) into errors.
func call(fn reflect.Value, args []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	return fn.Call(args), nil
}

// typeLiteral renders a parameter type for the synthetic function. Named
// types from the host program are not resolvable inside the interpreter;
// their rendered form carries a package qualifier ("pkg.Type"), so any
// dotted type falls back to any. Predeclared types and composites of them
// ("int", "map[string]interface {}") render without a dot.
func typeLiteral(t reflect.Type) string {
	s := t.String()
	if strings.Contains(s, ".") {
		return "any"
	}
	return s
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
