package script

import (
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

func boundEngine(t *testing.T) *Engine {
	t.Helper()

	result := core.NewActionResult("tap")
	result.Success = true
	result.Changed = true
	result.Observation = &core.Observation{
		Timestamp:  time.Now(),
		ScreenSize: core.Size{Width: 1080, Height: 1920},
		Hierarchy: &core.Node{
			Attrs: map[string]string{core.AttrClass: "android.widget.FrameLayout"},
			Children: []*core.Node{
				{Attrs: map[string]string{core.AttrText: "Sign in", core.AttrClickable: "true"}},
				{Attrs: map[string]string{core.AttrText: "Forgot password?"}},
				{Attrs: map[string]string{core.AttrContentDesc: "Back"}},
			},
		},
	}

	e := New()
	if err := e.Bind(result); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	return e
}

func TestEval(t *testing.T) {
	e := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'a' + 'b'", "ab"},
		{"boolean", "true && false", false},
		{"array length", "[1, 2, 3].length", int64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEvalBoolOverObservation(t *testing.T) {
	e := boundEngine(t)

	tests := []struct {
		name   string
		script string
		want   bool
	}{
		{"changed flag", "changed", true},
		{"success flag", "success", true},
		{"screen width", "observation.screenSize.width === 1080", true},
		{"hierarchy children", "observation.hierarchy.children.length === 3", true},
		{"text lookup hit", "hasText('Sign in')", true},
		{"content-desc lookup hit", "hasText('Back')", true},
		{"text lookup miss", "hasText('Sign out')", false},
		{"count matching", "countMatching('password') === 1", true},
		{"compound assertion", "changed && hasText('Sign in')", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvalBool(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvalBoolTruthiness(t *testing.T) {
	e := New()

	got, err := e.EvalBool("'non-empty string'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected a non-empty string to coerce to true")
	}
}

func TestEvalSyntaxError(t *testing.T) {
	e := New()

	_, err := e.EvalBool("this is not javascript")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !strings.Contains(err.Error(), "script eval error") {
		t.Errorf("expected wrapped eval error, got: %v", err)
	}
}

func TestBindWithoutObservation(t *testing.T) {
	result := core.NewActionResult("back")
	result.Success = true

	e := New()
	if err := e.Bind(result); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	got, err := e.EvalBool("hasText('anything')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("expected hasText to be false without an observation")
	}
}

func TestJSONHelper(t *testing.T) {
	e := New()

	result, err := e.Eval(`json('{"count": 7}').count`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(7) {
		t.Errorf("expected 7, got %v (%T)", result, result)
	}
}
