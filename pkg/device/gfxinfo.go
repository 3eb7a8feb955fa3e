package device

import (
	"fmt"
	"regexp"
	"strconv"
)

// FrameCounters holds the cumulative per-package render statistics used
// for stability detection. All counters only ever grow between resets.
type FrameCounters struct {
	MissedVsync         int
	SlowUIThread        int
	FrameDeadlineMissed int
}

var (
	missedVsyncRe    = regexp.MustCompile(`Number Missed Vsync:\s*(\d+)`)
	slowUIThreadRe   = regexp.MustCompile(`Number Slow UI thread:\s*(\d+)`)
	deadlineMissedRe = regexp.MustCompile(`Number Frame deadline missed:\s*(\d+)`)
)

// FrameCountersFor reads the render counters for the given package
// via `dumpsys gfxinfo`.
func (d *AndroidDevice) FrameCountersFor(pkg string) (FrameCounters, error) {
	out, err := d.Shell("dumpsys gfxinfo " + pkg)
	if err != nil {
		return FrameCounters{}, err
	}
	return ParseFrameCounters(out)
}

// ResetFrameCounters zeroes the render counters for the given package.
func (d *AndroidDevice) ResetFrameCounters(pkg string) error {
	_, err := d.Shell("dumpsys gfxinfo " + pkg + " reset")
	return err
}

// ParseFrameCounters extracts the stability-relevant counters from
// `dumpsys gfxinfo` output.
func ParseFrameCounters(out string) (FrameCounters, error) {
	var c FrameCounters
	var found bool

	if m := missedVsyncRe.FindStringSubmatch(out); m != nil {
		c.MissedVsync, _ = strconv.Atoi(m[1])
		found = true
	}
	if m := slowUIThreadRe.FindStringSubmatch(out); m != nil {
		c.SlowUIThread, _ = strconv.Atoi(m[1])
		found = true
	}
	if m := deadlineMissedRe.FindStringSubmatch(out); m != nil {
		c.FrameDeadlineMissed, _ = strconv.Atoi(m[1])
		found = true
	}

	if !found {
		return FrameCounters{}, fmt.Errorf("no frame counters in gfxinfo output")
	}
	return c, nil
}

// AnyIncreased reports whether any counter grew relative to prev.
func (c FrameCounters) AnyIncreased(prev FrameCounters) bool {
	return c.MissedVsync > prev.MissedVsync ||
		c.SlowUIThread > prev.SlowUIThread ||
		c.FrameDeadlineMissed > prev.FrameDeadlineMissed
}
