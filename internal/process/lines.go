// Package process runs adb as a child process and streams its output as
// logical lines.
package process

import "bytes"

// ScanLogicalLines is a bufio.SplitFunc for progress-style output. Both '\r'
// and '\n' end a line, so in-place progress updates ("[ 10%]\r[ 11%]\r...")
// arrive one by one. Tokens are whitespace-trimmed and blank segments are
// skipped. A trailing unterminated line is returned at EOF.
//
// It never returns a nil token with a non-zero advance: bufio.Scanner treats
// that as "need more input" and stops for good once the reader is at EOF.
func ScanLogicalLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for {
		i := bytes.IndexAny(data[start:], "\r\n")
		if i < 0 {
			break
		}
		end := start + i
		if t := bytes.TrimSpace(data[start:end]); len(t) > 0 {
			return end + 1, t, nil
		}
		start = end + 1
	}

	if atEOF {
		if t := bytes.TrimSpace(data[start:]); len(t) > 0 {
			return len(data), t, nil
		}
	}

	// Request more data, or nothing left at EOF.
	return 0, nil, nil
}
