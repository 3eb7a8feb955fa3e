package device

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

const dumpPath = "/sdcard/window_dump.xml"

// CaptureScreenshot captures the current screen as PNG bytes.
func (d *AndroidDevice) CaptureScreenshot() ([]byte, error) {
	data, err := d.ExecOut("screencap -p")
	if err != nil {
		return nil, core.ErrScreenshot.WithCause(err)
	}
	if len(data) == 0 {
		return nil, core.ErrScreenshot
	}
	return data, nil
}

// CaptureRawUITree dumps the accessibility hierarchy and returns the raw XML.
// Fails when the screen is off, locked, or the dump service is unavailable;
// callers surface this as an observation-level error marker, not a hard failure.
func (d *AndroidDevice) CaptureRawUITree() (string, error) {
	out, err := d.Shell(fmt.Sprintf("uiautomator dump %s >/dev/null 2>&1 && cat %s", dumpPath, dumpPath))
	if err != nil {
		return "", core.ErrHierarchyDump.WithCause(err)
	}
	if !strings.Contains(out, "<hierarchy") {
		return "", core.ErrHierarchyDump.WithCause(fmt.Errorf("unexpected dump output: %.80s", out))
	}
	return out, nil
}

// Physical size: 1080x1920 / Override size: 1080x2160
var sizeRe = regexp.MustCompile(`(?m)^(?:Physical|Override) size:\s*(\d+)x(\d+)`)

// ScreenSize returns the current screen dimensions.
// An override size (changed resolution) takes precedence over the physical one.
func (d *AndroidDevice) ScreenSize() (core.Size, error) {
	out, err := d.Shell("wm size")
	if err != nil {
		return core.Size{}, err
	}
	return ParseScreenSize(out)
}

// ParseScreenSize extracts the effective screen size from `wm size` output.
func ParseScreenSize(out string) (core.Size, error) {
	var size core.Size
	for _, m := range sizeRe.FindAllStringSubmatch(out, -1) {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		size = core.Size{Width: w, Height: h}
	}
	if size.Width == 0 || size.Height == 0 {
		return core.Size{}, fmt.Errorf("could not parse screen size from %q", strings.TrimSpace(out))
	}
	return size, nil
}

// stableInsets=Rect(0, 63 - 0, 126)
var insetsRe = regexp.MustCompile(`stableInsets=Rect\((\d+),\s*(\d+)\s*-\s*(\d+),\s*(\d+)\)`)

// SystemInsets returns the stable system insets (status/navigation bars).
// Best-effort: the dumpsys format varies across Android versions, so a
// parse failure yields zero insets rather than an error.
func (d *AndroidDevice) SystemInsets() core.Insets {
	out, err := d.Shell("dumpsys window displays")
	if err != nil {
		return core.Insets{}
	}
	return ParseInsets(out)
}

// ParseInsets extracts the stable insets from dumpsys output, zero on no match.
func ParseInsets(out string) core.Insets {
	m := insetsRe.FindStringSubmatch(out)
	if m == nil {
		return core.Insets{}
	}

	left, _ := strconv.Atoi(m[1])
	top, _ := strconv.Atoi(m[2])
	right, _ := strconv.Atoi(m[3])
	bottom, _ := strconv.Atoi(m[4])
	return core.Insets{Top: top, Right: right, Bottom: bottom, Left: left}
}
