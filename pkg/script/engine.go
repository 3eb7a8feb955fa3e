// Package script provides JavaScript assertion evaluation over observed
// screen state.
package script

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/screenstate/pkg/core"
	"github.com/devicelab-dev/screenstate/pkg/logger"
)

// Engine wraps a goja runtime with the observation globals bound.
type Engine struct {
	runtime *goja.Runtime
	mu      sync.Mutex
}

// New creates an engine with the built-in helpers registered.
func New() *Engine {
	e := &Engine{runtime: goja.New()}
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()

	// json(str) parses a JSON string into a JS object
	e.runtime.Set("json", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		str := call.Arguments[0].String()
		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	})
}

// setupConsole adds console.log, console.error, console.warn.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(prefix string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			if prefix != "" {
				logger.Info("script %s %v", prefix, args)
			} else {
				logger.Info("script: %v", args)
			}
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(""))
	console.Set("error", makeConsoleFunc("ERROR:"))
	console.Set("warn", makeConsoleFunc("WARN:"))
	e.runtime.Set("console", console)
}

// Bind exposes an action result to scripts: the globals `result`,
// `observation`, `changed` and `success`, plus text-matching helpers
// over the observed hierarchy.
func (e *Engine) Bind(result *core.ActionResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exported, err := toJSValue(result)
	if err != nil {
		return err
	}
	e.runtime.Set("result", exported)
	e.runtime.Set("changed", result.Changed)
	e.runtime.Set("success", result.Success)

	obs := result.Observation
	if obs != nil {
		exported, err := toJSValue(obs)
		if err != nil {
			return err
		}
		e.runtime.Set("observation", exported)
	} else {
		e.runtime.Set("observation", goja.Undefined())
	}

	e.runtime.Set("hasText", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 || obs == nil {
			return e.runtime.ToValue(false)
		}
		want := call.Arguments[0].String()
		return e.runtime.ToValue(findNode(obs.Hierarchy, func(n *core.Node) bool {
			return n.Attr(core.AttrText) == want || n.Attr(core.AttrContentDesc) == want
		}) != nil)
	})

	e.runtime.Set("countMatching", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 || obs == nil {
			return e.runtime.ToValue(0)
		}
		substr := call.Arguments[0].String()
		count := 0
		walk(obs.Hierarchy, func(n *core.Node) {
			if strings.Contains(n.Attr(core.AttrText), substr) {
				count++
			}
		})
		return e.runtime.ToValue(count)
	})

	return nil
}

// EvalBool evaluates an expression and coerces the result to a boolean,
// the way JS truthiness works.
func (e *Engine) EvalBool(expr string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	value, err := e.runtime.RunString(expr)
	if err != nil {
		return false, fmt.Errorf("script eval error: %w", err)
	}
	return value.ToBoolean(), nil
}

// Eval evaluates an expression and returns the exported Go value.
func (e *Engine) Eval(expr string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	value, err := e.runtime.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("script eval error: %w", err)
	}
	return value.Export(), nil
}

// toJSValue converts a Go value into plain maps and slices through its JSON
// form, so scripts see the same field names as the persisted cache files.
func toJSValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for script binding: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal for script binding: %w", err)
	}
	return out, nil
}

func findNode(n *core.Node, match func(*core.Node) bool) *core.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for _, child := range n.Children {
		if found := findNode(child, match); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *core.Node, visit func(*core.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children {
		walk(child, visit)
	}
}
