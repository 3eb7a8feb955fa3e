package device

import (
	"fmt"
	"strings"
)

// Tap injects a tap at the given screen coordinates.
func (d *AndroidDevice) Tap(x, y int) error {
	_, err := d.Shell(fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe injects a swipe gesture between two points over durationMs.
func (d *AndroidDevice) Swipe(x1, y1, x2, y2, durationMs int) error {
	_, err := d.Shell(fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

// KeyEvent injects a key event by Android keycode name or number
// (e.g. KEYCODE_BACK, 4).
func (d *AndroidDevice) KeyEvent(code string) error {
	_, err := d.Shell("input keyevent " + code)
	return err
}

// Back presses the hardware back button.
func (d *AndroidDevice) Back() error {
	return d.KeyEvent("KEYCODE_BACK")
}

// InputText types the given text into the focused element.
// `input text` does not accept raw spaces; they are escaped as %s.
func (d *AndroidDevice) InputText(text string) error {
	escaped := strings.ReplaceAll(text, " ", "%s")
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	_, err := d.Shell(fmt.Sprintf("input text '%s'", escaped))
	return err
}

// LaunchApp starts the package's launcher activity via monkey, which does
// not require knowing the activity name.
func (d *AndroidDevice) LaunchApp(pkg string) error {
	out, err := d.Shell(fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", pkg))
	if err != nil {
		return err
	}
	if strings.Contains(out, "No activities found") {
		return fmt.Errorf("no launchable activity for package %s", pkg)
	}
	return nil
}

// StopApp force-stops the package.
func (d *AndroidDevice) StopApp(pkg string) error {
	_, err := d.Shell("am force-stop " + pkg)
	return err
}

// Rotate sets the display rotation (0=portrait, 1=landscape, 2, 3),
// disabling accelerometer-driven rotation first so the setting sticks.
func (d *AndroidDevice) Rotate(rotation int) error {
	if rotation < 0 || rotation > 3 {
		return fmt.Errorf("invalid rotation %d: must be 0-3", rotation)
	}
	if _, err := d.Shell("settings put system accelerometer_rotation 0"); err != nil {
		return err
	}
	_, err := d.Shell(fmt.Sprintf("settings put system user_rotation %d", rotation))
	return err
}
