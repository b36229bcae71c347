package progress

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		percent    int
		hasPercent bool
		speed      string
	}{
		{"bracketed percent", "[ 42%] /sdcard/x.apk", 42, true, ""},
		{"speed only", "  3.2 MB/s", 0, false, "3.2 MB/s"},
		{"percent and speed", "[ 87%] /sdcard/DCIM/a.jpg 12.5 MB/s", 87, true, "12.5 MB/s"},
		{"unbracketed percent", "pulling 7% done", 7, true, ""},
		{"first percent wins", "[ 10%] then 90%", 10, true, ""},
		{"speed without space", "1 file pulled, 0 skipped. 35.1MB/s (1048576 bytes in 0.028s)", 0, false, "35.1MB/s"},
		{"bare bytes per second", "100 B/s", 0, false, "100 B/s"},
		{"kilobytes", "[100%] a 850 KB/s", 100, true, "850 KB/s"},
		{"clamped above 100", "[250%] weird", 100, true, ""},
		{"huge digit run", "99999999999999999999999%", 100, true, ""},
		{"no match", "adb: error: failed to stat remote object", 0, false, ""},
		{"empty", "", 0, false, ""},
		{"percent sign alone", "%", 0, false, ""},
		{"speed missing unit", "3.2 MB", 0, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.line)
			if got.HasPercent != tt.hasPercent {
				t.Errorf("Expected HasPercent=%v, got %v", tt.hasPercent, got.HasPercent)
			}
			if got.Percent != tt.percent {
				t.Errorf("Expected Percent=%d, got %d", tt.percent, got.Percent)
			}
			if got.Speed != tt.speed {
				t.Errorf("Expected Speed=%q, got %q", tt.speed, got.Speed)
			}
		})
	}
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{"\x00\xff%", "[%]", "%%%%", "B/s", ".5 MB/s", "\r\n", "[ -5%]"}
	for _, in := range inputs {
		r := Parse(in)
		if r.Percent < 0 || r.Percent > 100 {
			t.Errorf("Percent out of range for %q: %d", in, r.Percent)
		}
	}
}
