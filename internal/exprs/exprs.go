// Package exprs evaluates the small JavaScript expressions experiment
// manifests embed: block run conditions, loop guards, and derived
// parameter values.
package exprs

import (
	"fmt"
	"log"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// Engine wraps a single goja runtime. Evaluations are serialized; the
// session loop only runs one expression at a time anyway.
type Engine struct {
	mu       sync.Mutex
	runtime  *goja.Runtime
	programs map[string]*goja.Program
	l        *log.Logger
}

// New creates an expression engine. console.log output goes through
// the standard goja_nodejs console printer.
func New(l *log.Logger) *Engine {
	if l == nil {
		l = log.Default()
	}
	runtime := goja.New()
	registry := new(require.Registry)
	registry.Enable(runtime)
	console.Enable(runtime)
	return &Engine{
		runtime:  runtime,
		programs: make(map[string]*goja.Program),
		l:        l,
	}
}

// Set binds a name in the runtime's global scope. Manifest variables
// (participant fields, loop counters, condition rows) are exposed this
// way before each evaluation.
func (e *Engine) Set(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.Set(name, value)
}

// run compiles (or reuses) and executes one expression under the lock.
func (e *Engine) run(expr string, vars map[string]any) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, value := range vars {
		if err := e.runtime.Set(name, value); err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
	}
	prog, ok := e.programs[expr]
	if !ok {
		var err error
		prog, err = goja.Compile("<expr>", expr, true)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", expr, err)
		}
		e.programs[expr] = prog
	}
	v, err := e.runtime.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return v, nil
}

// Eval evaluates an expression and returns its exported value.
// Compiled programs are cached, so re-evaluating the same loop guard
// every iteration does not recompile it.
func (e *Engine) Eval(expr string, vars map[string]any) (any, error) {
	v, err := e.run(expr, vars)
	if err != nil || v == nil {
		return nil, err
	}
	return v.Export(), nil
}

// EvalBool evaluates an expression under JavaScript truthiness. The
// empty expression is true, so manifests can omit conditions.
func (e *Engine) EvalBool(expr string, vars map[string]any) (bool, error) {
	if expr == "" {
		return true, nil
	}
	v, err := e.run(expr, vars)
	if err != nil {
		return false, err
	}
	return v != nil && v.ToBoolean(), nil
}

// Condition returns a nullary guard that re-evaluates expr each call,
// the shape conditional scheduling expects.
func (e *Engine) Condition(expr string) func() (bool, error) {
	return func() (bool, error) {
		return e.EvalBool(expr, nil)
	}
}
