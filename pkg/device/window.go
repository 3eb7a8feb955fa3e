package device

import (
	"regexp"
	"strings"
)

// WindowInfo identifies the currently focused window.
type WindowInfo struct {
	Package  string
	Activity string
}

// mCurrentFocus=Window{6b32f02 u0 com.example.app/com.example.app.MainActivity}
var currentFocusRe = regexp.MustCompile(`mCurrentFocus=Window\{[0-9a-f]+ u\d+ ([^\s/}]+)(?:/([^\s}]+))?\}`)

// mFocusedApp=ActivityRecord{5dc4f88 u0 com.example.app/.MainActivity t42}
var focusedAppRe = regexp.MustCompile(`mFocusedApp=ActivityRecord\{[0-9a-f]+ u\d+ ([^\s/}]+)/(\S+)`)

// ActiveWindow returns the focused window's package and activity.
// ok is false when no focused window could be determined (keyguard,
// transient states, unrecognized dumpsys format).
func (d *AndroidDevice) ActiveWindow() (WindowInfo, bool) {
	out, err := d.Shell("dumpsys window windows")
	if err != nil {
		return WindowInfo{}, false
	}
	return ParseWindowDump(out)
}

// ActiveWindowPackage returns just the focused package name.
func (d *AndroidDevice) ActiveWindowPackage() (string, bool) {
	info, ok := d.ActiveWindow()
	if !ok {
		return "", false
	}
	return info.Package, true
}

// ParseWindowDump extracts the focused window from `dumpsys window windows`
// output. mCurrentFocus is preferred; mFocusedApp is the fallback for devices
// that report focus only at the activity level.
func ParseWindowDump(out string) (WindowInfo, bool) {
	if m := currentFocusRe.FindStringSubmatch(out); m != nil {
		info := WindowInfo{Package: m[1], Activity: expandActivity(m[1], m[2])}
		if !isSystemWindow(info.Package) {
			return info, true
		}
	}

	if m := focusedAppRe.FindStringSubmatch(out); m != nil {
		return WindowInfo{Package: m[1], Activity: expandActivity(m[1], m[2])}, true
	}

	return WindowInfo{}, false
}

// expandActivity resolves the shorthand ".MainActivity" form against the package.
func expandActivity(pkg, activity string) string {
	if activity == "" {
		return ""
	}
	if strings.HasPrefix(activity, ".") {
		return pkg + activity
	}
	return activity
}

// isSystemWindow filters focus holders that are not real applications.
func isSystemWindow(pkg string) bool {
	switch pkg {
	case "StatusBar", "NotificationShade", "InputMethod", "NavigationBar0":
		return true
	}
	return false
}
