package adb

import "strings"

// Entry is one name from "ls -p".
type Entry struct {
	Name  string `json:"name" yaml:"name"`
	IsDir bool   `json:"is_dir" yaml:"is_dir"`
}

// ParseListing parses "ls -p" output. Directory names carry a trailing '/',
// which is stripped into IsDir.
func ParseListing(output string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasSuffix(line, "/") {
			entries = append(entries, Entry{Name: strings.TrimSuffix(line, "/"), IsDir: true})
			continue
		}
		entries = append(entries, Entry{Name: line})
	}
	return entries
}

// IsDirName reports whether a selected name refers to a directory
// (the "ls -p" convention of a trailing '/').
func IsDirName(name string) bool {
	return strings.HasSuffix(name, "/")
}

// ConnectSucceeded reports whether "adb connect" output means success.
// adb exits 0 even when the connection is refused.
func ConnectSucceeded(output string) bool {
	out := strings.ToLower(output)
	return strings.Contains(out, "connected to") && !strings.Contains(out, "failed") && !strings.Contains(out, "cannot")
}

// PairSucceeded reports whether "adb pair" output means success.
func PairSucceeded(output string) bool {
	return strings.Contains(output, "Successfully paired")
}
