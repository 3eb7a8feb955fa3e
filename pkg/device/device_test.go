package device

import (
	"testing"

	"github.com/devicelab-dev/screenstate/pkg/core"
)

const windowDump = `WINDOW MANAGER WINDOWS (dumpsys window windows)
  Window #0 Window{41ba9a10 u0 NavigationBar0}:
  Window #5 Window{6b32f02 u0 com.example.app/com.example.app.MainActivity}:
    mOwnerUid=10123
  mCurrentFocus=Window{6b32f02 u0 com.example.app/com.example.app.MainActivity}
  mFocusedApp=ActivityRecord{5dc4f88 u0 com.example.app/.MainActivity t42}
`

func TestParseWindowDump(t *testing.T) {
	info, ok := ParseWindowDump(windowDump)
	if !ok {
		t.Fatal("expected focused window to be found")
	}
	if info.Package != "com.example.app" {
		t.Errorf("expected package com.example.app, got %s", info.Package)
	}
	if info.Activity != "com.example.app.MainActivity" {
		t.Errorf("expected full activity name, got %s", info.Activity)
	}
}

func TestParseWindowDumpFocusedAppFallback(t *testing.T) {
	dump := `  mFocusedApp=ActivityRecord{5dc4f88 u0 com.other.app/.Login t7}`
	info, ok := ParseWindowDump(dump)
	if !ok {
		t.Fatal("expected mFocusedApp fallback to match")
	}
	if info.Package != "com.other.app" {
		t.Errorf("expected package com.other.app, got %s", info.Package)
	}
	if info.Activity != "com.other.app.Login" {
		t.Errorf("expected shorthand activity expanded, got %s", info.Activity)
	}
}

func TestParseWindowDumpSystemWindow(t *testing.T) {
	// Keyguard or status bar holding focus should not count as an app window
	dump := `  mCurrentFocus=Window{41ba9a10 u0 StatusBar}`
	if _, ok := ParseWindowDump(dump); ok {
		t.Error("expected no match for system window focus")
	}
}

func TestParseWindowDumpNoMatch(t *testing.T) {
	if _, ok := ParseWindowDump("garbage output"); ok {
		t.Error("expected no match for garbage")
	}
}

const gfxinfoDump = `** Graphics info for pid 4242 [com.example.app] **

Total frames rendered: 1403
Janky frames: 37 (2.64%)
Number Missed Vsync: 5
Number High input latency: 18
Number Slow UI thread: 12
Number Slow bitmap uploads: 1
Number Slow issue draw commands: 4
Number Frame deadline missed: 9
`

func TestParseFrameCounters(t *testing.T) {
	c, err := ParseFrameCounters(gfxinfoDump)
	if err != nil {
		t.Fatalf("ParseFrameCounters failed: %v", err)
	}
	want := FrameCounters{MissedVsync: 5, SlowUIThread: 12, FrameDeadlineMissed: 9}
	if c != want {
		t.Errorf("expected %+v, got %+v", want, c)
	}
}

func TestParseFrameCountersNoData(t *testing.T) {
	if _, err := ParseFrameCounters("No process found for: com.missing"); err == nil {
		t.Error("expected error for missing counters")
	}
}

func TestFrameCountersAnyIncreased(t *testing.T) {
	prev := FrameCounters{MissedVsync: 5, SlowUIThread: 12, FrameDeadlineMissed: 9}

	if prev.AnyIncreased(prev) {
		t.Error("identical counters should not report an increase")
	}
	cur := prev
	cur.SlowUIThread++
	if !cur.AnyIncreased(prev) {
		t.Error("expected increase to be detected")
	}
}

func TestParseScreenSize(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    core.Size
		wantErr bool
	}{
		{"physical", "Physical size: 1080x1920\n", core.Size{Width: 1080, Height: 1920}, false},
		{"override wins", "Physical size: 1080x1920\nOverride size: 720x1280\n", core.Size{Width: 720, Height: 1280}, false},
		{"garbage", "not a size", core.Size{}, true},
	}

	for _, tt := range tests {
		got, err := ParseScreenSize(tt.out)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error state: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.name, tt.want, got)
		}
	}
}

func TestParseInsets(t *testing.T) {
	out := `  mDisplayFrames w=1080 h=2160
    stableInsets=Rect(0, 63 - 0, 126)`
	got := ParseInsets(out)
	want := core.Insets{Top: 63, Right: 0, Bottom: 126, Left: 0}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if ParseInsets("nothing here") != (core.Insets{}) {
		t.Error("expected zero insets on no match")
	}
}
