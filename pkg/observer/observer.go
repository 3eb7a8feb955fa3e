// Package observer orchestrates before/after screen observation around
// device actions. RunObservedAction is the sole entry point every
// automation action goes through.
package observer

import (
	"time"

	"github.com/devicelab-dev/screenstate/pkg/config"
	"github.com/devicelab-dev/screenstate/pkg/core"
	"github.com/devicelab-dev/screenstate/pkg/device"
	"github.com/devicelab-dev/screenstate/pkg/hierarchy"
	"github.com/devicelab-dev/screenstate/pkg/logger"
	"github.com/devicelab-dev/screenstate/pkg/obscache"
	"github.com/devicelab-dev/screenstate/pkg/stability"
)

// defaultTimeout bounds the post-action stability wait when the caller
// does not supply one.
const defaultTimeout = 10 * time.Second

// Device is the platform surface the orchestrator consumes.
// Implemented by device.AndroidDevice.
type Device interface {
	CaptureScreenshot() ([]byte, error)
	CaptureRawUITree() (string, error)
	ActiveWindowPackage() (string, bool)
	ScreenSize() (core.Size, error)
	SystemInsets() core.Insets
	ResetFrameCounters(pkg string) error
	FrameCountersFor(pkg string) (device.FrameCounters, error)
}

// Options controls one observed action.
type Options struct {
	ChangeExpected bool          // Require the final hierarchy to differ from the baseline
	Timeout        time.Duration // Stability wait budget (0 = default)
	PackageHint    string        // Package to watch; empty = cached/resolved
	TolerancePct   float64       // Fuzzy cache tolerance (<0 = configured default)
}

// Action performs the device interaction, given the baseline observation.
// Errors it returns propagate to the caller unmodified; actions are not
// retried by the orchestrator.
type Action func(baseline *core.Observation) (*core.ActionResult, error)

// Observer coordinates the cache, stability detector and capture pipeline.
type Observer struct {
	dev      Device
	cache    *obscache.Cache
	detector *stability.Detector
	cfg      *config.Config

	lastPackage string // most recently observed foreground package, for speculative init

	sleep func(time.Duration) // test hook
}

// New creates an Observer wired to the given device and cache.
func New(dev Device, cache *obscache.Cache, cfg *config.Config) *Observer {
	return &Observer{
		dev:   dev,
		cache: cache,
		detector: stability.New(dev, stability.Options{
			PollInterval: cfg.PollInterval(),
			Threshold:    cfg.StabilityThreshold(),
		}),
		cfg:   cfg,
		sleep: time.Sleep,
	}
}

// RunObservedAction captures a baseline observation, runs the action, waits
// for the UI to settle, captures the final state and decorates the action's
// result with the observed outcome.
//
// Ordering: the baseline capture strictly precedes the action; the final
// capture strictly follows the join of both concurrent waits. The final
// observation is always captured fresh, never served from the cache.
func (o *Observer) RunObservedAction(action Action, opts Options) (*core.ActionResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	baseline := o.baseline(opts)

	result, err := action(baseline)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = core.NewActionResult("action")
	}

	o.settle(opts)

	final := o.CaptureFresh(opts.tolerance(o.cfg))
	result.Observation = final
	o.rememberPackage(final)

	if baseline.Valid() && final.Valid() {
		result.Changed = !final.Hierarchy.Equal(baseline.Hierarchy)
	}

	if opts.ChangeExpected && baseline.Valid() && final.Valid() {
		if result.Changed {
			if result.Error == "" {
				result.Success = true
			}
		} else {
			result.Fail(core.NoVisualChange)
		}
	} else if result.Error == "" && !result.Success {
		// Change not expected: the action's own outcome decides unless it
		// already declared success or failure explicitly
		result.Success = true
	}

	result.Duration = time.Since(result.StartTime)
	return result, nil
}

// baseline returns the most recent valid cached observation, or a fresh
// cache-first capture when none exists.
func (o *Observer) baseline(opts Options) *core.Observation {
	if cached := o.cache.Latest(); cached.Valid() {
		return cached
	}
	return o.Capture(opts.tolerance(o.cfg))
}

// settle runs the stability detector and the touch-quiescence delay
// concurrently and joins both. Either failing degrades to proceed-anyway.
func (o *Observer) settle(opts Options) {
	hint := opts.PackageHint
	if hint == "" {
		hint = o.lastPackage
	}

	detectorDone := make(chan stability.State, 1)
	go func() {
		detectorDone <- o.detector.WaitSpeculative(hint, o.dev, opts.Timeout)
	}()

	quiesceDone := make(chan struct{})
	go func() {
		o.sleep(o.cfg.TouchSettle())
		close(quiesceDone)
	}()

	state := <-detectorDone
	<-quiesceDone

	if state == stability.Skipped {
		// No package to watch: quiescence is the only signal, so give the
		// UI one more settle interval, bounded by the hard idle limit
		extra := o.cfg.TouchSettle()
		if extra > o.cfg.HardTouchIdleLimit() {
			extra = o.cfg.HardTouchIdleLimit()
		}
		o.sleep(extra)
	}
	logger.Debug("post-action settle done: detector=%s", state)
}

// Capture produces an observation, serving a cached one when a visually
// equivalent screenshot is already known (fuzzy, then storing on miss).
func (o *Observer) Capture(tolerancePct float64) *core.Observation {
	shot, err := o.dev.CaptureScreenshot()
	if err != nil {
		logger.Warn("screenshot capture failed: %v", err)
		return o.observeWithoutScreenshot()
	}

	if cached := o.cache.LookupFuzzy(shot, tolerancePct); cached != nil {
		logger.Debug("observation served from fuzzy cache")
		return cached
	}

	obs := o.observe(shot)
	o.cache.Store(obs, shot)
	return obs
}

// CaptureFresh produces an observation bypassing cache lookup: the result
// always reflects current device state. The capture is still stored, so
// subsequent lookups can reuse it.
func (o *Observer) CaptureFresh(tolerancePct float64) *core.Observation {
	shot, err := o.dev.CaptureScreenshot()
	if err != nil {
		logger.Warn("screenshot capture failed: %v", err)
		return o.observeWithoutScreenshot()
	}

	obs := o.observe(shot)
	o.cache.Store(obs, shot)
	return obs
}

// observe builds a complete observation from a captured screenshot.
func (o *Observer) observe(shot []byte) *core.Observation {
	obs := &core.Observation{Timestamp: time.Now()}

	if size, err := o.dev.ScreenSize(); err == nil {
		obs.ScreenSize = size
	} else {
		logger.Debug("screen size unavailable: %v", err)
	}
	obs.Insets = o.dev.SystemInsets()

	raw, err := o.dev.CaptureRawUITree()
	if err != nil {
		obs.HierarchyErr = err.Error()
		return obs
	}

	root, err := hierarchy.Parse(raw)
	if err != nil {
		obs.HierarchyErr = err.Error()
		return obs
	}

	filtered := hierarchy.Filter(root)
	hierarchy.ComputeVisibility(filtered)
	obs.Hierarchy = filtered
	obs.ScreenshotPath = o.cache.ScreenshotPath(obs.Token())
	if len(shot) == 0 {
		obs.ScreenshotPath = ""
	}

	return obs
}

func (o *Observer) observeWithoutScreenshot() *core.Observation {
	return o.observe(nil)
}

// rememberPackage caches the foreground package for the next action's
// speculative stability init.
func (o *Observer) rememberPackage(obs *core.Observation) {
	if !obs.Valid() {
		return
	}
	if pkg := findPackage(obs.Hierarchy); pkg != "" {
		o.lastPackage = pkg
	}
}

// findPackage returns the first package attribute in pre-order.
func findPackage(n *core.Node) string {
	if n == nil {
		return ""
	}
	if pkg := n.Attr(core.AttrPackage); pkg != "" {
		return pkg
	}
	for _, child := range n.Children {
		if pkg := findPackage(child); pkg != "" {
			return pkg
		}
	}
	return ""
}

// tolerance resolves the effective fuzzy tolerance for this action.
func (opts Options) tolerance(cfg *config.Config) float64 {
	if opts.TolerancePct < 0 {
		return cfg.FuzzyTolerancePercent
	}
	return opts.TolerancePct
}
