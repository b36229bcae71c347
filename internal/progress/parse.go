package progress

import (
	"regexp"
	"strconv"
)

var (
	// First integer directly followed by '%'. Brackets and padding around it
	// ("[ 42%]") are ignored by not anchoring.
	percentPattern = regexp.MustCompile(`(\d+)%`)

	// "3.2 MB/s", "850KB/s", "12 B/s".
	speedPattern = regexp.MustCompile(`\d+(?:\.\d+)? ?[KMG]?B/s`)
)

// Reading is what a single adb output line says about progress.
// Absent fields are zero (HasPercent false, Speed "").
type Reading struct {
	Percent    int
	HasPercent bool
	Speed      string
}

// Parse extracts a percentage and a speed token from one logical line.
// It never fails; a line that matches nothing yields an empty Reading.
func Parse(line string) Reading {
	var r Reading

	if m := percentPattern.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			r.Percent = clampPercent(n)
			r.HasPercent = true
		} else {
			// Overflowing digit runs are still a percentage marker.
			r.Percent = 100
			r.HasPercent = true
		}
	}

	r.Speed = speedPattern.FindString(line)
	return r
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
