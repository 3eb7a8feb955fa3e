// Package actions implements the device interactions exposed by the CLI.
// Every action runs through the observer so its result carries the observed
// before/after state.
package actions

import (
	"fmt"

	"github.com/devicelab-dev/screenstate/pkg/core"
	"github.com/devicelab-dev/screenstate/pkg/logger"
	"github.com/devicelab-dev/screenstate/pkg/observer"
)

// InputDevice is the injection surface actions need.
// Implemented by device.AndroidDevice.
type InputDevice interface {
	Tap(x, y int) error
	Swipe(x1, y1, x2, y2, durationMs int) error
	InputText(text string) error
	KeyEvent(code string) error
	Back() error
	LaunchApp(pkg string) error
	StopApp(pkg string) error
	Rotate(rotation int) error
}

// Runner executes actions against one device through one observer.
type Runner struct {
	dev InputDevice
	obs *observer.Observer
}

// NewRunner creates a Runner.
func NewRunner(dev InputDevice, obs *observer.Observer) *Runner {
	return &Runner{dev: dev, obs: obs}
}

// Tap resolves the selector against the baseline hierarchy and taps the
// center of the winning element. An unresolvable selector is an expected
// failure on the result; an empty selector is a contract error.
func (r *Runner) Tap(sel Selector, opts observer.Options) (*core.ActionResult, error) {
	if sel.Empty() {
		return nil, core.ErrMissingSelector
	}

	return r.obs.RunObservedAction(func(baseline *core.Observation) (*core.ActionResult, error) {
		result := core.NewActionResult("tap")
		result.Data = map[string]string{"selector": sel.String()}

		if !baseline.Valid() {
			return result.Fail("no usable baseline observation"), nil
		}
		target := Resolve(baseline.Hierarchy, sel)
		if target == nil {
			return result.Fail(fmt.Sprintf("no element matched %s", sel)), nil
		}
		bounds, ok := target.Bounds()
		if !ok {
			return result.Fail(fmt.Sprintf("element %s has no usable bounds", sel)), nil
		}

		x, y := bounds.Center()
		logger.Debug("tap %s at (%d,%d)", sel, x, y)
		if err := r.dev.Tap(x, y); err != nil {
			return nil, fmt.Errorf("inject tap: %w", err)
		}
		return result, nil
	}, opts)
}

// TapPoint taps absolute screen coordinates.
func (r *Runner) TapPoint(x, y int, opts observer.Options) (*core.ActionResult, error) {
	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		if err := r.dev.Tap(x, y); err != nil {
			return nil, fmt.Errorf("inject tap: %w", err)
		}
		result := core.NewActionResult("tap")
		result.Data = map[string]int{"x": x, "y": y}
		return result, nil
	}, opts)
}

// Swipe injects a swipe between two absolute points.
func (r *Runner) Swipe(x1, y1, x2, y2, durationMs int, opts observer.Options) (*core.ActionResult, error) {
	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		if err := r.dev.Swipe(x1, y1, x2, y2, durationMs); err != nil {
			return nil, fmt.Errorf("inject swipe: %w", err)
		}
		return core.NewActionResult("swipe"), nil
	}, opts)
}

// SwipeDirection swipes across the middle 60% of the screen in the named
// direction (up, down, left, right), using the baseline's screen size.
func (r *Runner) SwipeDirection(direction string, durationMs int, opts observer.Options) (*core.ActionResult, error) {
	return r.obs.RunObservedAction(func(baseline *core.Observation) (*core.ActionResult, error) {
		result := core.NewActionResult("swipe")

		size := baseline.ScreenSize
		if size.Width == 0 || size.Height == 0 {
			return result.Fail("screen size unknown, cannot compute swipe path"), nil
		}

		cx, cy := size.Width/2, size.Height/2
		dx, dy := size.Width*3/10, size.Height*3/10
		var x1, y1, x2, y2 int
		switch direction {
		case "up":
			x1, y1, x2, y2 = cx, cy+dy, cx, cy-dy
		case "down":
			x1, y1, x2, y2 = cx, cy-dy, cx, cy+dy
		case "left":
			x1, y1, x2, y2 = cx+dx, cy, cx-dx, cy
		case "right":
			x1, y1, x2, y2 = cx-dx, cy, cx+dx, cy
		default:
			return nil, core.ErrMissingSelector.WithCause(fmt.Errorf("unknown direction %q", direction))
		}

		if err := r.dev.Swipe(x1, y1, x2, y2, durationMs); err != nil {
			return nil, fmt.Errorf("inject swipe: %w", err)
		}
		return result, nil
	}, opts)
}

// InputText types text into the focused element.
func (r *Runner) InputText(text string, opts observer.Options) (*core.ActionResult, error) {
	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		if err := r.dev.InputText(text); err != nil {
			return nil, fmt.Errorf("inject text: %w", err)
		}
		return core.NewActionResult("inputText"), nil
	}, opts)
}

// Back presses the back button.
func (r *Runner) Back(opts observer.Options) (*core.ActionResult, error) {
	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		if err := r.dev.Back(); err != nil {
			return nil, fmt.Errorf("inject back: %w", err)
		}
		return core.NewActionResult("back"), nil
	}, opts)
}

// Launch starts the package's launcher activity. The launched package also
// becomes the stability hint for the wait that follows.
func (r *Runner) Launch(pkg string, opts observer.Options) (*core.ActionResult, error) {
	if pkg == "" {
		return nil, core.ErrMissingSelector.WithCause(fmt.Errorf("launch requires a package"))
	}
	if opts.PackageHint == "" {
		opts.PackageHint = pkg
	}

	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		result := core.NewActionResult("launch")
		result.Data = map[string]string{"package": pkg}
		if err := r.dev.LaunchApp(pkg); err != nil {
			return result.Fail(err.Error()), nil
		}
		return result, nil
	}, opts)
}

// Stop force-stops the package.
func (r *Runner) Stop(pkg string, opts observer.Options) (*core.ActionResult, error) {
	if pkg == "" {
		return nil, core.ErrMissingSelector.WithCause(fmt.Errorf("stop requires a package"))
	}

	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		if err := r.dev.StopApp(pkg); err != nil {
			return nil, fmt.Errorf("force-stop %s: %w", pkg, err)
		}
		result := core.NewActionResult("stop")
		result.Data = map[string]string{"package": pkg}
		return result, nil
	}, opts)
}

// Rotate sets the display rotation.
func (r *Runner) Rotate(rotation int, opts observer.Options) (*core.ActionResult, error) {
	return r.obs.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		result := core.NewActionResult("rotate")
		if err := r.dev.Rotate(rotation); err != nil {
			return result.Fail(err.Error()), nil
		}
		return result, nil
	}, opts)
}
