package cli

import "testing"

func TestParsePoint(t *testing.T) {
	tests := []struct {
		input   string
		x, y    int
		wantErr bool
	}{
		{"540,1200", 540, 1200, false},
		{" 10 , 20 ", 10, 20, false},
		{"540", 0, 0, true},
		{"a,b", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		x, y, err := parsePoint(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePoint(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePoint(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if x != tt.x || y != tt.y {
			t.Errorf("parsePoint(%q) = (%d,%d), want (%d,%d)", tt.input, x, y, tt.x, tt.y)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range []string{
		observeCommand.Name, tapCommand.Name, swipeCommand.Name,
		inputCommand.Name, backCommand.Name, launchCommand.Name,
		stopCommand.Name, rotateCommand.Name, stableCommand.Name,
		cacheCommand.Name,
	} {
		if names[cmd] {
			t.Errorf("duplicate command name %q", cmd)
		}
		names[cmd] = true
	}
}
