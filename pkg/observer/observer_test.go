package observer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/screenstate/pkg/config"
	"github.com/devicelab-dev/screenstate/pkg/core"
	"github.com/devicelab-dev/screenstate/pkg/device"
	"github.com/devicelab-dev/screenstate/pkg/obscache"
)

const treeA = `<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" package="com.example.app" bounds="[0,0][1080,1920]">
    <node class="android.widget.TextView" text="Screen A" clickable="true" bounds="[0,0][1080,200]"/>
  </node>
</hierarchy>`

const treeB = `<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" package="com.example.app" bounds="[0,0][1080,1920]">
    <node class="android.widget.TextView" text="Screen B" clickable="true" bounds="[0,0][1080,200]"/>
  </node>
</hierarchy>`

// fakeDevice replays scripted screenshots and hierarchy dumps and records
// the order of capture calls.
type fakeDevice struct {
	mu    sync.Mutex
	shots [][]byte
	trees []string
	pos   int
	calls []string

	shotErr error
}

func (d *fakeDevice) CaptureScreenshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "screenshot")
	if d.shotErr != nil {
		return nil, d.shotErr
	}
	return d.shots[min(d.pos, len(d.shots)-1)], nil
}

func (d *fakeDevice) CaptureRawUITree() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "tree")
	tree := d.trees[min(d.pos, len(d.trees)-1)]
	if d.pos < len(d.trees)-1 {
		d.pos++
	}
	return tree, nil
}

func (d *fakeDevice) ActiveWindowPackage() (string, bool) { return "com.example.app", true }

func (d *fakeDevice) ScreenSize() (core.Size, error) {
	return core.Size{Width: 1080, Height: 1920}, nil
}

func (d *fakeDevice) SystemInsets() core.Insets { return core.Insets{Top: 63} }

func (d *fakeDevice) ResetFrameCounters(string) error { return nil }

func (d *fakeDevice) FrameCountersFor(string) (device.FrameCounters, error) {
	return device.FrameCounters{MissedVsync: 3, SlowUIThread: 3, FrameDeadlineMissed: 3}, nil
}

func (d *fakeDevice) record(event string) {
	d.mu.Lock()
	d.calls = append(d.calls, event)
	d.mu.Unlock()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CacheRoot = t.TempDir()
	cfg.PollIntervalMs = 1
	cfg.StabilityThresholdMs = 5
	cfg.TouchSettleMs = 1
	return &cfg
}

func newTestObserver(t *testing.T, dev *fakeDevice, cfg *config.Config) *Observer {
	t.Helper()
	cache, err := obscache.New(obscache.Options{
		Root:             cfg.CacheRoot,
		TTL:              cfg.CacheTTL(),
		MaxDiskBytes:     cfg.MaxDiskCacheBytes,
		MemoryCandidates: cfg.MemoryFuzzyCandidates,
		DiskCandidates:   cfg.DiskFuzzyCandidates,
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	return New(dev, cache, cfg)
}

func TestRunObservedActionOrdering(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA, treeB}}
	o := newTestObserver(t, dev, testConfig(t))

	result, err := o.RunObservedAction(func(baseline *core.Observation) (*core.ActionResult, error) {
		if !baseline.Valid() {
			t.Error("expected a valid baseline observation before the action runs")
		}
		dev.record("action")
		return core.NewActionResult("tap"), nil
	}, Options{PackageHint: "com.example.app"})
	if err != nil {
		t.Fatalf("RunObservedAction failed: %v", err)
	}

	// Baseline capture strictly precedes the action; the final capture
	// strictly follows it
	var actionIdx, lastTreeIdx, firstTreeIdx = -1, -1, -1
	for i, call := range dev.calls {
		switch call {
		case "action":
			actionIdx = i
		case "tree":
			if firstTreeIdx < 0 {
				firstTreeIdx = i
			}
			lastTreeIdx = i
		}
	}
	if firstTreeIdx < 0 || actionIdx < 0 || firstTreeIdx > actionIdx {
		t.Errorf("baseline capture must precede the action: %v", dev.calls)
	}
	if lastTreeIdx < actionIdx {
		t.Errorf("final capture must follow the action: %v", dev.calls)
	}

	if result.Observation == nil || !result.Observation.Valid() {
		t.Fatal("expected a valid final observation on the result")
	}
	if !result.Changed {
		t.Error("expected Changed: the hierarchy moved from Screen A to Screen B")
	}
	if result.Duration <= 0 {
		t.Error("expected a measured duration")
	}
}

func TestRunObservedActionBaselineFromCache(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA}}
	o := newTestObserver(t, dev, testConfig(t))

	// Prime the cache with an observation the baseline should reuse
	primed := o.CaptureFresh(0)
	if !primed.Valid() {
		t.Fatal("expected priming capture to be valid")
	}
	capturesBefore := len(dev.calls)

	var baselineToken string
	_, err := o.RunObservedAction(func(baseline *core.Observation) (*core.ActionResult, error) {
		baselineToken = baseline.Token()
		return nil, nil
	}, Options{PackageHint: "com.example.app"})
	if err != nil {
		t.Fatalf("RunObservedAction failed: %v", err)
	}

	if baselineToken != primed.Token() {
		t.Error("expected the baseline to be served from the cache")
	}
	// Only the final capture touches the device before the action returns;
	// the calls between are the post-action capture pair
	for _, call := range dev.calls[capturesBefore:] {
		if call != "screenshot" && call != "tree" {
			t.Errorf("unexpected device call %q", call)
		}
	}
}

func TestRunObservedActionErrorPropagates(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA}}
	o := newTestObserver(t, dev, testConfig(t))

	wantErr := fmt.Errorf("input injection failed")
	result, err := o.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		return nil, wantErr
	}, Options{})
	if err == nil || result != nil {
		t.Fatal("expected the action error to propagate and no result")
	}
}

func TestRunObservedActionChangeExpectedNoChange(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA, treeA}}
	o := newTestObserver(t, dev, testConfig(t))

	result, err := o.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		return core.NewActionResult("tap"), nil
	}, Options{ChangeExpected: true, PackageHint: "com.example.app"})
	if err != nil {
		t.Fatalf("RunObservedAction failed: %v", err)
	}

	if result.Success {
		t.Error("expected failure when a change was required but none observed")
	}
	if result.Error != core.NoVisualChange {
		t.Errorf("expected %q, got %q", core.NoVisualChange, result.Error)
	}
}

func TestRunObservedActionChangeExpectedSucceeds(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA, treeB}}
	o := newTestObserver(t, dev, testConfig(t))

	result, err := o.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		return core.NewActionResult("tap"), nil
	}, Options{ChangeExpected: true, PackageHint: "com.example.app"})
	if err != nil {
		t.Fatalf("RunObservedAction failed: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}
	if !result.Changed {
		t.Error("expected Changed to be set")
	}
}

func TestFinalObservationNeverCacheServed(t *testing.T) {
	// Screenshot bytes never change, but the hierarchy does. A cache-served
	// final observation would report the stale Screen A tree.
	shot := []byte("\x89PNG-not-really-but-stable-bytes")
	dev := &fakeDevice{shots: [][]byte{shot}, trees: []string{treeA, treeB}}
	o := newTestObserver(t, dev, testConfig(t))

	result, err := o.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		return core.NewActionResult("tap"), nil
	}, Options{PackageHint: "com.example.app", TolerancePct: 100})
	if err != nil {
		t.Fatalf("RunObservedAction failed: %v", err)
	}

	final := result.Observation
	if final == nil || !final.Valid() {
		t.Fatal("expected a valid final observation")
	}
	found := false
	var walk func(n *core.Node)
	walk = func(n *core.Node) {
		if n == nil {
			return
		}
		if n.Attr(core.AttrText) == "Screen B" {
			found = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(final.Hierarchy)
	if !found {
		t.Error("final observation reflects stale cached state instead of the device")
	}
}

func TestCaptureServesFuzzyHit(t *testing.T) {
	shot := []byte("stable-screenshot-bytes")
	dev := &fakeDevice{shots: [][]byte{shot}, trees: []string{treeA, treeB}}
	o := newTestObserver(t, dev, testConfig(t))

	first := o.Capture(100)
	o.cache.Flush()
	second := o.Capture(100)

	if first.Token() != second.Token() {
		t.Error("expected the second capture to be served from the fuzzy cache")
	}
}

func TestCaptureScreenshotFailureStillObserves(t *testing.T) {
	dev := &fakeDevice{
		shots:   [][]byte{nil},
		trees:   []string{treeA},
		shotErr: fmt.Errorf("screencap exited 1"),
	}
	o := newTestObserver(t, dev, testConfig(t))

	obs := o.Capture(0)
	if !obs.Valid() {
		t.Fatal("expected a hierarchy-only observation when the screenshot fails")
	}
	if obs.ScreenshotPath != "" {
		t.Error("expected no screenshot path without a screenshot")
	}
}

func TestRememberPackage(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA}}
	o := newTestObserver(t, dev, testConfig(t))

	_, err := o.RunObservedAction(func(*core.Observation) (*core.ActionResult, error) {
		return nil, nil
	}, Options{})
	if err != nil {
		t.Fatalf("RunObservedAction failed: %v", err)
	}

	if o.lastPackage != "com.example.app" {
		t.Errorf("expected the foreground package to be remembered, got %q", o.lastPackage)
	}
}

func TestSettleWaitsTouchQuiescence(t *testing.T) {
	dev := &fakeDevice{shots: [][]byte{nil}, trees: []string{treeA}}
	cfg := testConfig(t)
	o := newTestObserver(t, dev, cfg)

	var slept []time.Duration
	o.sleep = func(d time.Duration) { slept = append(slept, d) }

	o.settle(Options{PackageHint: "com.example.app", Timeout: time.Second})

	if len(slept) == 0 || slept[0] != cfg.TouchSettle() {
		t.Errorf("expected the touch settle delay to be honored, got %v", slept)
	}
}
