package crontainer

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"ERROR", LevelError, true},
		{"warn", LevelWarn, true},
		{"Warning", LevelWarn, true},
		{"INFORMATIONAL", LevelInfo, true},
		{"info", LevelInfo, true},
		{" verbose ", LevelVerbose, true},
		{"DeBuG", LevelDebug, true},
		{"", LevelInfo, false},
		{"trace", LevelInfo, false},
	}

	for _, test := range tests {
		got, err := ParseLevel(test.in)
		if (err == nil) != test.ok {
			t.Errorf("ParseLevel(%q) error = %v, want ok %v", test.in, err, test.ok)
		}
		if got != test.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestLevelEnabled(t *testing.T) {
	if !LevelInfo.Enabled(LevelWarn) {
		t.Error("INFORMATIONAL should show warnings")
	}
	if LevelInfo.Enabled(LevelVerbose) {
		t.Error("INFORMATIONAL should hide verbose lines")
	}
	if !LevelError.Enabled(LevelError) {
		t.Error("ERROR should always show errors")
	}
}
