// Package stability infers when on-screen rendering has stopped changing
// after an action, by polling per-package frame render counters.
package stability

import (
	"time"

	"github.com/devicelab-dev/screenstate/pkg/device"
	"github.com/devicelab-dev/screenstate/pkg/logger"
)

// State is the detector's terminal or in-flight condition.
type State int

const (
	// WaitingForQuiet is the sole non-terminal state; a wait begins here.
	WaitingForQuiet State = iota
	// Stable means no counter changed for at least the threshold interval.
	Stable
	// TimedOut means the timeout elapsed first. Not an error: callers proceed anyway.
	TimedOut
	// Skipped means no package identifier was available, so no wait ran.
	Skipped
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case WaitingForQuiet:
		return "waiting_for_quiet"
	case Stable:
		return "stable"
	case TimedOut:
		return "timed_out"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CounterSource provides per-package frame render counters.
// Implemented by device.AndroidDevice.
type CounterSource interface {
	ResetFrameCounters(pkg string) error
	FrameCountersFor(pkg string) (device.FrameCounters, error)
}

// PackageResolver answers "which package owns the focused window".
// Implemented by device.AndroidDevice. Best-effort: ok may be false.
type PackageResolver interface {
	ActiveWindowPackage() (string, bool)
}

// Options configures a Detector.
type Options struct {
	PollInterval time.Duration // Counter sampling interval (one display refresh)
	Threshold    time.Duration // Quiet interval required before Stable
}

// Detector decides, without ground truth, that the UI finished reacting.
// A Detector is stateless between waits and safe to reuse.
type Detector struct {
	source CounterSource
	opts   Options

	// injectable for deterministic tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Detector over the given counter source.
func New(source CounterSource, opts Options) *Detector {
	return &Detector{
		source: source,
		opts:   opts,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Wait polls the package's frame counters until they have been quiet for
// the threshold interval (Stable) or the timeout elapses (TimedOut).
// There is no retry inside the detector; both outcomes return to the caller.
func (d *Detector) Wait(pkg string, timeout time.Duration) State {
	if pkg == "" {
		return Skipped
	}

	if err := d.source.ResetFrameCounters(pkg); err != nil {
		logger.Warn("reset frame counters for %s: %v", pkg, err)
	}

	startedAt := d.now()
	lastChangeAt := startedAt
	var prev device.FrameCounters
	seenFirstSample := false

	for {
		counters, err := d.source.FrameCountersFor(pkg)
		switch {
		case err != nil:
			// Conservative: an unreadable sample counts as unchanged, so a
			// flaky counter command cannot spuriously mark the UI stable early
			logger.Debug("frame counter sample for %s failed: %v", pkg, err)
		case !seenFirstSample:
			seenFirstSample = true
			prev = counters
			lastChangeAt = d.now()
		case counters.AnyIncreased(prev):
			prev = counters
			lastChangeAt = d.now()
		default:
			prev = counters
		}

		now := d.now()
		if now.Sub(lastChangeAt) >= d.opts.Threshold {
			return Stable
		}
		if now.Sub(startedAt) >= timeout {
			return TimedOut
		}
		d.sleep(d.opts.PollInterval)
	}
}

// WaitSpeculative begins a wait for the hinted package while concurrently
// resolving the actually focused package.
//
// When the hint is confirmed (or the resolver fails), the speculative run's
// result is used. When the hint was wrong, a fresh non-speculative wait runs
// for the correct package; the speculative run is left to reach its own
// terminal state in the background and its result is logged and discarded,
// never cancelled.
func (d *Detector) WaitSpeculative(hint string, resolver PackageResolver, timeout time.Duration) State {
	if hint == "" {
		pkg, ok := resolver.ActiveWindowPackage()
		if !ok {
			return Skipped
		}
		return d.Wait(pkg, timeout)
	}

	specCh := make(chan State, 1)
	go func() {
		specCh <- d.Wait(hint, timeout)
	}()

	pkg, ok := resolver.ActiveWindowPackage()
	if !ok || pkg == hint {
		return <-specCh
	}

	go func() {
		st := <-specCh
		logger.Debug("speculative stability wait for %s ended %s; discarded (focused: %s)", hint, st, pkg)
	}()
	return d.Wait(pkg, timeout)
}
